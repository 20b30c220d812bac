package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"briefbot/types"
)

func pipelineCandidates() []*types.Post {
	return []*types.Post{
		newPost("post-1", "Fed cuts rates", "the fed cut rates today"),
		newPost("post-2", "Fed Cuts Rates", "The   Fed cut rates TODAY"),
		newPost("post-3", "Antitrust probe opens", "regulators opened a probe"),
	}
}

// reportedPostIDs returns every post id a report accounts for: group members
// plus the input candidates that no group claimed.
func reportedPostIDs(report *types.RunReport, candidates []*types.Post) map[string]int {
	claimed := make(map[string]int)
	for _, group := range report.Groups {
		for _, member := range group.Members {
			claimed[member.PostID]++
		}
	}
	for _, post := range candidates {
		if _, ok := claimed[post.ID]; !ok {
			claimed[post.ID] = 1
		}
	}
	return claimed
}

func TestPipelineRunGroupsExactDuplicates(t *testing.T) {
	pipeline := &Pipeline{History: &fakeHistoryStore{}}
	candidates := pipelineCandidates()

	report := pipeline.Run(context.Background(), candidates, "issue-1", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), DefaultOptions())

	if report.RunID == "" || report.IssueID != "issue-1" {
		t.Errorf("report identifiers not populated: %+v", report)
	}
	if !report.HistoryEmpty {
		t.Errorf("empty store should flag HistoryEmpty")
	}
	if len(report.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(report.Groups))
	}
	group := report.Groups[0]
	if group.PrimaryPostID != "post-1" {
		t.Errorf("expected earliest post as primary, got %s", group.PrimaryPostID)
	}

	stats := report.Stats
	if stats.Total != 3 || stats.Duplicate != 1 || stats.Unique != 2 || stats.Exact != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestPipelineRunSurvivesHistoryFailure(t *testing.T) {
	pipeline := &Pipeline{
		History: &fakeHistoryStore{issuesErr: errors.New("db locked")},
	}
	candidates := pipelineCandidates()

	report := pipeline.Run(context.Background(), candidates, "issue-1", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), DefaultOptions())

	if report.Stats.Total != 3 {
		t.Errorf("expected run to continue without history, got %+v", report.Stats)
	}
	// Intra-batch dedup still works without history.
	if len(report.Groups) != 1 {
		t.Errorf("expected batch-local dedup to survive, got %d groups", len(report.Groups))
	}
}

func TestPipelineRunSurvivesSemanticFailure(t *testing.T) {
	pipeline := &Pipeline{
		History:   &fakeHistoryStore{},
		Completer: &fakeCompleter{err: errors.New("provider down")},
	}
	candidates := pipelineCandidates()

	report := pipeline.Run(context.Background(), candidates, "issue-1", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), DefaultOptions())

	claimed := reportedPostIDs(report, candidates)
	if len(claimed) != len(candidates) {
		t.Fatalf("every candidate must be accounted for, got %d of %d", len(claimed), len(candidates))
	}
	for id, n := range claimed {
		if n != 1 {
			t.Errorf("post %s claimed %d times", id, n)
		}
	}
	if report.Stats.Unique+report.Stats.Duplicate != report.Stats.Total {
		t.Errorf("stats do not add up: %+v", report.Stats)
	}
}

func TestPipelineRunSuppressesHistoricalRepeats(t *testing.T) {
	issueDate := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	old := newPost("post-old", "Fed cuts rates", "the fed cut rates today")
	old.IssueID = "issue-0"

	store := &fakeHistoryStore{
		issues: []types.Issue{
			{ID: "issue-0", Date: issueDate.AddDate(0, 0, -1), Status: types.IssueStatusSent},
		},
		articles: []types.IssueArticle{
			{ID: "ia-1", IssueID: "issue-0", PostID: "post-old", IsActive: true},
		},
		posts: map[string]*types.Post{"post-old": old},
	}

	pipeline := &Pipeline{History: store}
	candidates := []*types.Post{
		newPost("post-new", "Fed cuts rates", "THE FED cut rates today"),
		newPost("post-other", "Antitrust probe opens", "regulators opened a probe"),
	}

	report := pipeline.Run(context.Background(), candidates, "issue-1", issueDate, DefaultOptions())

	if report.HistoryEmpty || report.HistoricalCount != 1 {
		t.Errorf("expected one historical fingerprint, got count=%d empty=%v", report.HistoricalCount, report.HistoryEmpty)
	}
	if len(report.Groups) != 1 {
		t.Fatalf("expected 1 historical group, got %d", len(report.Groups))
	}
	group := report.Groups[0]
	if group.PrimaryPostID != "post-old" {
		t.Errorf("historical group must anchor on the prior issue's post, got %s", group.PrimaryPostID)
	}
	member := group.Members[0]
	if member.PostID != "post-new" || member.DetectionMethod != types.DetectionHistorical {
		t.Errorf("unexpected historical member: %+v", member)
	}
	if member.MatchedPostID != "post-old" {
		t.Errorf("expected matched post id post-old, got %q", member.MatchedPostID)
	}
	if report.Stats.Historical != 1 || report.Stats.Unique != 1 {
		t.Errorf("unexpected stats: %+v", report.Stats)
	}
}

func TestPipelineRunStagePriorityOverSemantics(t *testing.T) {
	// The completer tries to regroup everything; exact-stage verdicts must
	// already have claimed the duplicate pair.
	pipeline := &Pipeline{
		History:   &fakeHistoryStore{},
		Completer: &fakeCompleter{response: `{"groups": [[1, 2]], "unique_articles": [], "similarities": [0.99]}`},
	}
	candidates := pipelineCandidates()

	report := pipeline.Run(context.Background(), candidates, "issue-1", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), DefaultOptions())

	claimed := reportedPostIDs(report, candidates)
	for id, n := range claimed {
		if n != 1 {
			t.Errorf("post %s claimed %d times", id, n)
		}
	}
	for _, group := range report.Groups {
		for _, member := range group.Members {
			if member.PostID == group.PrimaryPostID {
				t.Errorf("post %s is both primary and member", member.PostID)
			}
		}
	}
}

func TestPipelineRunEmptyBatch(t *testing.T) {
	pipeline := &Pipeline{History: &fakeHistoryStore{}}

	report := pipeline.Run(context.Background(), nil, "issue-1", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), DefaultOptions())

	if len(report.Groups) != 0 {
		t.Errorf("empty batch must yield no groups")
	}
	if report.Stats.Total != 0 || report.Stats.Unique != 0 {
		t.Errorf("unexpected stats for empty batch: %+v", report.Stats)
	}
}
