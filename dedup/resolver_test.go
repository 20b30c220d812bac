package dedup

import (
	"strings"
	"testing"

	"briefbot/types"
)

func TestResolveGroupsAssignsEachPostOnce(t *testing.T) {
	postA := newPost("post-a", "Title A", "body")
	postB := newPost("post-b", "Title B", "body")

	clusters := []Cluster{
		{
			PrimaryPostID: "post-a",
			PrimaryTitle:  "Title A",
			Members:       []Member{{Post: postB, Score: 1.0, Method: types.DetectionExact}},
		},
		// A later stage claims post-b again under a different primary; the
		// earlier verdict must win.
		{
			PrimaryPostID: "post-c",
			PrimaryTitle:  "Title C",
			Members: []Member{
				{Post: postB, Score: 0.9, Method: types.DetectionSemantic},
				{Post: postA, Score: 0.9, Method: types.DetectionSemantic},
			},
		},
	}

	groups := ResolveGroups("issue-1", clusters)

	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	group := groups[0]
	if group.PrimaryPostID != "post-a" {
		t.Errorf("expected earlier stage's primary, got %s", group.PrimaryPostID)
	}
	if len(group.Members) != 1 || group.Members[0].PostID != "post-b" {
		t.Fatalf("expected post-b once, got %+v", group.Members)
	}
	if group.Members[0].DetectionMethod != types.DetectionExact {
		t.Errorf("expected exact verdict to win, got %s", group.Members[0].DetectionMethod)
	}
}

func TestResolveGroupsPrimaryNeverBecomesMember(t *testing.T) {
	postA := newPost("post-a", "Title A", "body")
	postB := newPost("post-b", "Title B", "body")

	clusters := []Cluster{
		{
			PrimaryPostID: "post-a",
			PrimaryTitle:  "Title A",
			Members:       []Member{{Post: postB, Score: 1.0, Method: types.DetectionExact}},
		},
		{
			PrimaryPostID: "post-b",
			PrimaryTitle:  "Title B",
			Members:       []Member{{Post: postA, Score: 0.85, Method: types.DetectionTitle}},
		},
	}

	groups := ResolveGroups("issue-1", clusters)

	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	for _, group := range groups {
		for _, member := range group.Members {
			if member.PostID == group.PrimaryPostID {
				t.Errorf("post %s is both primary and member of group %s", member.PostID, group.ID)
			}
		}
	}
}

func TestResolveGroupsSkipsClusterWhoseMembersAreTaken(t *testing.T) {
	postB := newPost("post-b", "Title B", "body")

	clusters := []Cluster{
		{
			PrimaryPostID: "post-a",
			PrimaryTitle:  "Title A",
			Members:       []Member{{Post: postB, Score: 1.0, Method: types.DetectionExact}},
		},
		// Every member of this cluster is already claimed, so the group
		// collapses and post-c stays unique.
		{
			PrimaryPostID: "post-c",
			PrimaryTitle:  "Title C",
			Members:       []Member{{Post: postB, Score: 0.8, Method: types.DetectionTitle}},
		},
	}

	groups := ResolveGroups("issue-1", clusters)

	if len(groups) != 1 {
		t.Fatalf("emptied cluster must be dropped, got %d groups", len(groups))
	}
}

func TestResolveGroupsPopulatesIdentifiers(t *testing.T) {
	postB := newPost("post-b", "Title B", "body")

	groups := ResolveGroups("issue-9", []Cluster{
		{
			PrimaryPostID: "post-a",
			PrimaryTitle:  "Title A",
			Members:       []Member{{Post: postB, Score: 1.0, Method: types.DetectionExact, MatchedPostID: "post-old"}},
		},
	})

	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	group := groups[0]
	if group.ID == "" || group.IssueID != "issue-9" || group.CreatedAt.IsZero() {
		t.Errorf("group identifiers not populated: %+v", group)
	}
	member := group.Members[0]
	if member.ID == "" || member.GroupID != group.ID {
		t.Errorf("member identifiers not populated: %+v", member)
	}
	if member.MatchedPostID != "post-old" {
		t.Errorf("matched post id must carry through, got %q", member.MatchedPostID)
	}
}

func TestTopicSignature(t *testing.T) {
	got := topicSignature(Cluster{Topic: "  fed   rate cut  "})
	if got != "fed rate cut" {
		t.Errorf("expected collapsed whitespace, got %q", got)
	}

	got = topicSignature(Cluster{PrimaryTitle: "Fallback Headline"})
	if got != "Fallback Headline" {
		t.Errorf("expected primary title fallback, got %q", got)
	}

	long := strings.Repeat("x", 200)
	got = topicSignature(Cluster{Topic: long})
	if len([]rune(got)) != topicSignatureMaxLen {
		t.Errorf("expected signature capped at %d runes, got %d", topicSignatureMaxLen, len([]rune(got)))
	}
}
