package types

import "time"

// Issue lifecycle statuses. Only issues that reached "sent" count as
// published history for deduplication purposes.
const (
	IssueStatusDraft    = "draft"
	IssueStatusInReview = "in_review"
	IssueStatusSent     = "sent"
)

// Post represents a single candidate item ingested from an RSS feed and
// queued for an issue. Posts are read-only input to the dedup engine.
type Post struct {
	ID              string    `json:"id"`
	FeedID          string    `json:"feed_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Content         string    `json:"content,omitempty"`
	FullArticleText string    `json:"full_article_text,omitempty"`
	RelevanceScore  *float64  `json:"relevance_score,omitempty"`
	IssueID         string    `json:"issue_id,omitempty"`
	ProcessedAt     time.Time `json:"processed_at"`
}

// Issue is one newsletter edition.
type Issue struct {
	ID     string    `json:"id"`
	Date   time.Time `json:"date"`
	Status string    `json:"status"`
}

// IssueArticle links a post to the issue it actually ran in. Articles that
// were archived (is_active=false) or skipped by an editor must not count as
// published history.
type IssueArticle struct {
	ID       string `json:"id"`
	IssueID  string `json:"issue_id"`
	PostID   string `json:"post_id"`
	IsActive bool   `json:"is_active"`
	Skipped  bool   `json:"skipped"`
}
