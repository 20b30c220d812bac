package types

import "time"

// DetectionMethod identifies which stage of the pipeline flagged a duplicate.
type DetectionMethod string

const (
	// DetectionHistorical marks a content-hash match against a post from a
	// previously sent issue inside the lookback window.
	DetectionHistorical DetectionMethod = "historical"
	// DetectionExact marks a content-hash match within the current batch.
	DetectionExact DetectionMethod = "exact"
	// DetectionTitle marks a lexical near-duplicate title within the issue.
	DetectionTitle DetectionMethod = "title"
	// DetectionSemantic marks an AI-confirmed duplicate topic.
	DetectionSemantic DetectionMethod = "semantic"
)

// DuplicateMember is one non-primary post folded into a duplicate group.
type DuplicateMember struct {
	ID      string `json:"id"`
	GroupID string `json:"group_id"`
	PostID  string `json:"post_id"`
	// SimilarityScore is the score after threshold rounding, persisted for
	// downstream filtering.
	SimilarityScore float64 `json:"similarity_score"`
	// ActualSimilarityScore is the raw score before any rounding, kept for
	// audit and debugging.
	ActualSimilarityScore float64         `json:"actual_similarity_score"`
	DetectionMethod       DetectionMethod `json:"detection_method"`
	// MatchedPostID records which historical post triggered the match, when
	// the method is historical.
	MatchedPostID string `json:"matched_post_id,omitempty"`
}

// DuplicateGroup is one cluster of mutually-duplicate posts for an issue.
// Exactly one post (the primary) survives; the rest are members.
type DuplicateGroup struct {
	ID             string            `json:"id"`
	IssueID        string            `json:"issue_id"`
	PrimaryPostID  string            `json:"primary_post_id"`
	TopicSignature string            `json:"topic_signature"`
	Members        []DuplicateMember `json:"members"`
	CreatedAt      time.Time         `json:"created_at"`
}

// DedupStats summarizes one deduplication run. The issue-build workflow uses
// Unique to decide whether enough content remains to proceed.
type DedupStats struct {
	Total      int `json:"total"`
	Unique     int `json:"unique"`
	Duplicate  int `json:"duplicate"`
	Historical int `json:"historical"`
	Exact      int `json:"exact"`
	Title      int `json:"title"`
	Semantic   int `json:"semantic"`
}

// RunReport is the result of a single dedup run for one issue.
type RunReport struct {
	RunID   string           `json:"run_id"`
	IssueID string           `json:"issue_id"`
	Groups  []DuplicateGroup `json:"groups"`
	Stats   DedupStats       `json:"stats"`
	// HistoricalCount is the number of fingerprints loaded from prior sent
	// issues in the lookback window.
	HistoricalCount int `json:"historical_count"`
	// HistoryEmpty is set when the lookback window contained no sent issues.
	// This is an expected state (first issue ever, review-only issues), not
	// a failure.
	HistoryEmpty bool      `json:"history_empty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}
