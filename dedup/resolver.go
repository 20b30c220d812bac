package dedup

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"briefbot/types"
)

const topicSignatureMaxLen = 80

// ResolveGroups merges stage clusters into final duplicate groups for an
// issue. Clusters must arrive in stage order (historical, exact, title,
// semantic) so earlier, higher-confidence verdicts win conflicts. The
// resulting groups satisfy: a post belongs to at most one group, and no
// post is both a primary and a member.
func ResolveGroups(issueID string, clusters []Cluster) []types.DuplicateGroup {
	now := time.Now().UTC()

	memberOf := make(map[string]bool)  // post id -> already folded as member
	primaryOf := make(map[string]bool) // post id -> already a primary

	var groups []types.DuplicateGroup
	for _, cluster := range clusters {
		if memberOf[cluster.PrimaryPostID] {
			// Primary was already excluded by an earlier stage; its members
			// were either caught there too or remain unique.
			continue
		}

		groupID := uuid.NewString()
		group := types.DuplicateGroup{
			ID:             groupID,
			IssueID:        issueID,
			PrimaryPostID:  cluster.PrimaryPostID,
			TopicSignature: topicSignature(cluster),
			CreatedAt:      now,
		}

		for _, member := range cluster.Members {
			if member.Post.ID == cluster.PrimaryPostID {
				continue
			}
			if memberOf[member.Post.ID] || primaryOf[member.Post.ID] {
				continue
			}
			memberOf[member.Post.ID] = true
			group.Members = append(group.Members, types.DuplicateMember{
				ID:                    uuid.NewString(),
				GroupID:               groupID,
				PostID:                member.Post.ID,
				SimilarityScore:       member.Score,
				ActualSimilarityScore: member.Actual,
				DetectionMethod:       member.Method,
				MatchedPostID:         member.MatchedPostID,
			})
		}

		if len(group.Members) == 0 {
			continue
		}
		primaryOf[cluster.PrimaryPostID] = true
		groups = append(groups, group)
	}

	return groups
}

// topicSignature derives a human-readable label for the group: the semantic
// stage's topic when it gave one, otherwise the primary's headline.
func topicSignature(cluster Cluster) string {
	label := cluster.Topic
	if label == "" {
		label = cluster.PrimaryTitle
	}
	label = strings.Join(strings.Fields(label), " ")
	runes := []rune(label)
	if len(runes) > topicSignatureMaxLen {
		label = string(runes[:topicSignatureMaxLen])
	}
	return label
}
