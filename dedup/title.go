package dedup

import (
	"strings"

	"briefbot/types"
)

// stopwords excluded from title tokens before comparison; common articles
// and prepositions produce noisy matches.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true,
	"to": true, "of": true, "in": true, "on": true, "for": true, "with": true, "by": true,
	"and": true, "or": true, "as": true, "at": true, "from": true,
	"after": true, "before": true, "amid": true, "over": true, "under": true,
	"into": true, "out": true, "up": true, "down": true,
	"is": true, "are": true, "was": true, "be": true, "it": true, "its": true,
}

// ResolveByTitle merges candidates whose titles are lexically near-identical
// within the current issue's pool. Titles alone are too noisy for safe
// cross-time suppression, so this stage never consults the historical
// corpus. Threshold is the minimum token-Jaccard similarity.
func ResolveByTitle(candidates []*types.Post, threshold float64) ([]Cluster, []*types.Post) {
	if len(candidates) < 2 {
		return nil, candidates
	}

	tokens := make([][]string, len(candidates))
	for i, post := range candidates {
		tokens[i] = titleTokens(post.Title)
	}

	// Union-find over pairs above the threshold, so A~B and B~C land in one
	// group even when A~C falls just under it.
	parent := make([]int, len(candidates))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) {
		parent[find(i)] = find(j)
	}

	similarity := make(map[[2]int]float64)
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			sim := TitleSimilarity(tokens[i], tokens[j])
			if sim >= threshold {
				union(i, j)
				similarity[[2]int{i, j}] = sim
			}
		}
	}

	groups := make(map[int][]int)
	for i := range candidates {
		root := find(i)
		groups[root] = append(groups[root], i)
	}

	var clusters []Cluster
	var remaining []*types.Post
	for i := range candidates {
		root := find(i)
		indices := groups[root]
		if len(indices) < 2 {
			remaining = append(remaining, candidates[i])
			continue
		}
		if i != indices[0] {
			continue // cluster emitted when its first index comes up
		}

		posts := make([]*types.Post, len(indices))
		indexOf := make(map[string]int, len(indices))
		for k, idx := range indices {
			posts[k] = candidates[idx]
			indexOf[candidates[idx].ID] = idx
		}
		primary := choosePrimary(posts)
		primaryIdx := indexOf[primary.ID]

		cluster := Cluster{PrimaryPostID: primary.ID, PrimaryTitle: primary.Title}
		for _, idx := range indices {
			if idx == primaryIdx {
				continue
			}
			score := pairSimilarity(similarity, idx, primaryIdx)
			if score == 0 {
				// Linked transitively; score against the primary directly.
				score = TitleSimilarity(tokens[idx], tokens[primaryIdx])
			}
			cluster.Members = append(cluster.Members, Member{
				Post:   candidates[idx],
				Score:  score,
				Actual: score,
				Method: types.DetectionTitle,
			})
		}
		clusters = append(clusters, cluster)
		remaining = append(remaining, primary)
	}

	return clusters, remaining
}

func pairSimilarity(similarity map[[2]int]float64, i, j int) float64 {
	if i > j {
		i, j = j, i
	}
	return similarity[[2]int{i, j}]
}

// TitleSimilarity computes the Jaccard similarity of two token sets,
// normalized to 0-1.
func TitleSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	seen := make(map[string]struct{}, len(a))
	for _, token := range a {
		seen[token] = struct{}{}
	}

	intersection := 0
	counted := make(map[string]struct{}, len(b))
	for _, token := range b {
		if _, ok := counted[token]; ok {
			continue
		}
		counted[token] = struct{}{}
		if _, ok := seen[token]; ok {
			intersection++
		}
	}

	union := len(seen) + len(counted) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func titleTokens(title string) []string {
	fields := strings.Fields(strings.ToLower(title))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		cleaned := strings.Trim(field, ".,;:!?\"'()[]{}")
		if cleaned == "" || stopwords[cleaned] {
			continue
		}
		tokens = append(tokens, cleaned)
	}
	return tokens
}
