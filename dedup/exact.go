package dedup

import (
	"briefbot/types"
)

// ResolveExact runs the cheap fingerprint stage. Candidates whose hash
// matches a post from a prior sent issue are flagged historical; candidates
// sharing a hash within the current batch collapse to a single primary with
// the rest flagged exact. Unique candidates pass through untouched.
//
// prefilter, when non-nil, is a probabilistic membership test over the
// historical fingerprints (the Redis bloom fast-path); a negative answer
// skips the map probe, a positive one still verifies against the map.
func ResolveExact(candidates []*types.Post, history map[string]HistoryRef, prefilter func(string) bool) ([]Cluster, []*types.Post) {
	var clusters []Cluster
	remaining := make([]*types.Post, 0, len(candidates))

	// Historical pass. Candidates matching the same prior post share one
	// cluster keyed by that post.
	historical := make(map[string]*Cluster)
	var historicalOrder []string
	fresh := make([]*types.Post, 0, len(candidates))

	for _, post := range candidates {
		fp := Fingerprint(post)

		var ref HistoryRef
		var hit bool
		if prefilter == nil || prefilter(fp) {
			ref, hit = history[fp]
		}
		if !hit {
			fresh = append(fresh, post)
			continue
		}

		cluster, ok := historical[ref.PostID]
		if !ok {
			cluster = &Cluster{PrimaryPostID: ref.PostID, PrimaryTitle: ref.Title}
			historical[ref.PostID] = cluster
			historicalOrder = append(historicalOrder, ref.PostID)
		}
		cluster.Members = append(cluster.Members, Member{
			Post:          post,
			Score:         1.0,
			Actual:        1.0,
			Method:        types.DetectionHistorical,
			MatchedPostID: ref.PostID,
		})
	}
	for _, id := range historicalOrder {
		clusters = append(clusters, *historical[id])
	}

	// Intra-batch pass over the survivors.
	byFingerprint := make(map[string][]*types.Post)
	var fingerprintOrder []string
	for _, post := range fresh {
		fp := Fingerprint(post)
		if _, seen := byFingerprint[fp]; !seen {
			fingerprintOrder = append(fingerprintOrder, fp)
		}
		byFingerprint[fp] = append(byFingerprint[fp], post)
	}

	for _, fp := range fingerprintOrder {
		group := byFingerprint[fp]
		if len(group) == 1 {
			remaining = append(remaining, group[0])
			continue
		}

		primary := choosePrimary(group)
		cluster := Cluster{PrimaryPostID: primary.ID, PrimaryTitle: primary.Title}
		for _, post := range group {
			if post.ID == primary.ID {
				continue
			}
			cluster.Members = append(cluster.Members, Member{
				Post:   post,
				Score:  1.0,
				Actual: 1.0,
				Method: types.DetectionExact,
			})
		}
		clusters = append(clusters, cluster)
		remaining = append(remaining, primary)
	}

	return clusters, remaining
}
