package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"briefbot/types"
)

type fakeHistoryStore struct {
	issues   []types.Issue
	articles []types.IssueArticle
	posts    map[string]*types.Post

	issuesErr error
	postsErr  error

	sawCutoff  time.Time
	sawExclude string
}

func (f *fakeHistoryStore) SentIssuesSince(ctx context.Context, cutoff time.Time, excludeIssueID string) ([]types.Issue, error) {
	f.sawCutoff = cutoff
	f.sawExclude = excludeIssueID
	if f.issuesErr != nil {
		return nil, f.issuesErr
	}
	var out []types.Issue
	for _, issue := range f.issues {
		if issue.Status != types.IssueStatusSent || issue.ID == excludeIssueID {
			continue
		}
		if issue.Date.Before(cutoff) {
			continue
		}
		out = append(out, issue)
	}
	return out, nil
}

func (f *fakeHistoryStore) ArticlesForIssues(ctx context.Context, issueIDs []string) ([]types.IssueArticle, error) {
	wanted := make(map[string]bool, len(issueIDs))
	for _, id := range issueIDs {
		wanted[id] = true
	}
	var out []types.IssueArticle
	for _, article := range f.articles {
		if wanted[article.IssueID] {
			out = append(out, article)
		}
	}
	return out, nil
}

func (f *fakeHistoryStore) PostsByIDs(ctx context.Context, ids []string) ([]*types.Post, error) {
	if f.postsErr != nil {
		return nil, f.postsErr
	}
	var out []*types.Post
	for _, id := range ids {
		if post, ok := f.posts[id]; ok {
			out = append(out, post)
		}
	}
	return out, nil
}

func TestIsCountableHistory(t *testing.T) {
	cases := []struct {
		name     string
		article  types.IssueArticle
		expected bool
	}{
		{"active", types.IssueArticle{IsActive: true, Skipped: false}, true},
		{"archived", types.IssueArticle{IsActive: false, Skipped: false}, false},
		{"skipped", types.IssueArticle{IsActive: true, Skipped: true}, false},
		{"archived and skipped", types.IssueArticle{IsActive: false, Skipped: true}, false},
	}
	for _, tc := range cases {
		if got := IsCountableHistory(tc.article); got != tc.expected {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.expected, got)
		}
	}
}

func TestLoadHistoryBuildsLookup(t *testing.T) {
	issueDate := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	sent := types.Issue{ID: "issue-old", Date: issueDate.AddDate(0, 0, -2), Status: types.IssueStatusSent}

	published := newPost("hist-1", "Old Story", "a story we already ran")
	skippedPost := newPost("hist-2", "Skipped Story", "never actually shipped")

	store := &fakeHistoryStore{
		issues: []types.Issue{sent},
		articles: []types.IssueArticle{
			{ID: "a1", IssueID: sent.ID, PostID: published.ID, IsActive: true},
			{ID: "a2", IssueID: sent.ID, PostID: skippedPost.ID, IsActive: true, Skipped: true},
		},
		posts: map[string]*types.Post{published.ID: published, skippedPost.ID: skippedPost},
	}

	lookup, err := LoadHistory(context.Background(), store, issueDate, 3, "issue-current")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(lookup) != 1 {
		t.Fatalf("expected 1 fingerprint, got %d", len(lookup))
	}
	ref, ok := lookup[Fingerprint(published)]
	if !ok {
		t.Fatalf("published post missing from lookup")
	}
	if ref.PostID != published.ID || ref.IssueID != sent.ID {
		t.Errorf("unexpected ref: %+v", ref)
	}
	if _, ok := lookup[Fingerprint(skippedPost)]; ok {
		t.Errorf("skipped article must not count as history")
	}

	wantCutoff := issueDate.AddDate(0, 0, -3)
	if !store.sawCutoff.Equal(wantCutoff) {
		t.Errorf("expected cutoff %v, got %v", wantCutoff, store.sawCutoff)
	}
	if store.sawExclude != "issue-current" {
		t.Errorf("expected current issue excluded, got %q", store.sawExclude)
	}
}

func TestLoadHistoryEmptyWindowIsNotAnError(t *testing.T) {
	store := &fakeHistoryStore{}

	lookup, err := LoadHistory(context.Background(), store, time.Now(), 3, "issue-1")
	if err != nil {
		t.Fatalf("empty window must not error: %v", err)
	}
	if len(lookup) != 0 {
		t.Fatalf("expected empty lookup, got %d entries", len(lookup))
	}
}

func TestLoadHistorySurfacesQueryErrors(t *testing.T) {
	store := &fakeHistoryStore{issuesErr: errors.New("db down")}

	if _, err := LoadHistory(context.Background(), store, time.Now(), 3, "issue-1"); err == nil {
		t.Fatalf("expected error from failing issue query")
	}
}

func TestChunkIDs(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	chunks := chunkIDs(ids, 2)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[2]) != 1 || chunks[2][0] != "e" {
		t.Errorf("unexpected final chunk: %v", chunks[2])
	}
}
