package audit

import (
	"encoding/json"
	"time"

	"briefbot/types"
)

// Entry records the dedup outcome for one candidate post, so editors can see
// why a post was flagged.
type Entry struct {
	PostID string `json:"post_id"`
	Title  string `json:"title"`
	// Status is "unique", "duplicate" or "primary".
	Status          string                `json:"status"`
	DetectionMethod types.DetectionMethod `json:"detection_method,omitempty"`
	SimilarityScore float64               `json:"similarity_score,omitempty"`
	ActualScore     float64               `json:"actual_similarity_score,omitempty"`
	// DuplicateOf is the surviving post this candidate was folded under.
	DuplicateOf    string `json:"duplicate_of,omitempty"`
	GroupID        string `json:"group_id,omitempty"`
	TopicSignature string `json:"topic_signature,omitempty"`
}

// Report is the per-issue audit artifact written after each run.
type Report struct {
	RunID           string           `json:"run_id"`
	IssueID         string           `json:"issue_id"`
	GeneratedAt     time.Time        `json:"generated_at"`
	Stats           types.DedupStats `json:"stats"`
	HistoricalCount int              `json:"historical_count"`
	HistoryEmpty    bool             `json:"history_empty"`
	Entries         []Entry          `json:"entries"`
}

// BuildReport joins the run result back onto the candidate list. Every
// candidate appears exactly once, including the ones that shipped untouched.
func BuildReport(run *types.RunReport, candidates []*types.Post) Report {
	report := Report{
		RunID:           run.RunID,
		IssueID:         run.IssueID,
		GeneratedAt:     time.Now().UTC(),
		Stats:           run.Stats,
		HistoricalCount: run.HistoricalCount,
		HistoryEmpty:    run.HistoryEmpty,
	}

	type verdict struct {
		group  *types.DuplicateGroup
		member *types.DuplicateMember
	}
	verdicts := make(map[string]verdict)
	primaries := make(map[string]*types.DuplicateGroup)
	for i := range run.Groups {
		group := &run.Groups[i]
		primaries[group.PrimaryPostID] = group
		for j := range group.Members {
			member := &group.Members[j]
			verdicts[member.PostID] = verdict{group: group, member: member}
		}
	}

	for _, post := range candidates {
		entry := Entry{PostID: post.ID, Title: post.Title, Status: "unique"}
		if v, ok := verdicts[post.ID]; ok {
			entry.Status = "duplicate"
			entry.DetectionMethod = v.member.DetectionMethod
			entry.SimilarityScore = v.member.SimilarityScore
			entry.ActualScore = v.member.ActualSimilarityScore
			entry.DuplicateOf = v.group.PrimaryPostID
			entry.GroupID = v.group.ID
			entry.TopicSignature = v.group.TopicSignature
		} else if group, ok := primaries[post.ID]; ok {
			entry.Status = "primary"
			entry.GroupID = group.ID
			entry.TopicSignature = group.TopicSignature
		}
		report.Entries = append(report.Entries, entry)
	}

	return report
}

// JSON renders the report for storage or upload.
func (r Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
