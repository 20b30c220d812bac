package dedup

import (
	"sort"

	"briefbot/types"
)

// Member is a candidate folded into a cluster by one of the stages, before
// final group resolution.
type Member struct {
	Post *types.Post
	// Score is the similarity persisted for downstream filtering; Actual is
	// the raw score before any rounding.
	Score  float64
	Actual float64
	Method types.DetectionMethod
	// MatchedPostID is set for historical matches: the prior-issue post the
	// candidate collided with.
	MatchedPostID string
}

// Cluster is one stage's verdict that a set of posts cover the same story.
// The primary survives; members are excluded from the issue.
type Cluster struct {
	PrimaryPostID string
	PrimaryTitle  string
	// Topic carries the semantic stage's label when it provided one.
	Topic   string
	Members []Member
}

// choosePrimary picks the surviving post among duplicates: the highest
// upstream relevance score wins; without scores, the earliest processed post
// does. Returns nil for an empty slice.
func choosePrimary(posts []*types.Post) *types.Post {
	if len(posts) == 0 {
		return nil
	}
	ranked := make([]*types.Post, len(posts))
	copy(ranked, posts)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		switch {
		case a.RelevanceScore != nil && b.RelevanceScore != nil:
			if *a.RelevanceScore != *b.RelevanceScore {
				return *a.RelevanceScore > *b.RelevanceScore
			}
		case a.RelevanceScore != nil:
			return true
		case b.RelevanceScore != nil:
			return false
		}
		return a.ProcessedAt.Before(b.ProcessedAt)
	})
	return ranked[0]
}
