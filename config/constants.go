package config

import "time"

// Deduplication Defaults
const (
	// DefaultLookbackDays is how many days back prior sent issues are
	// scanned for republished content.
	DefaultLookbackDays = 3

	// DefaultStrictnessThreshold is the minimum similarity the semantic
	// stage requires before confirming a duplicate group.
	DefaultStrictnessThreshold = 0.80

	// DefaultTitleThreshold is the minimum token-Jaccard similarity for two
	// titles to be merged by the title stage.
	DefaultTitleThreshold = 0.70
)

// Settings keys resolved from the settings store, falling back to the
// defaults above when absent.
const (
	SettingLookbackDays        = "historical_lookback_days"
	SettingStrictnessThreshold = "strictness_threshold"
	SettingTitleThreshold      = "title_similarity_threshold"
)

// Semantic Stage Constants
const (
	// SemanticBatchSize caps how many candidates go into one AI call.
	SemanticBatchSize = 20

	// MaxConcurrentBatches limits AI batches in flight at once.
	MaxConcurrentBatches = 2

	// SemanticBatchDelay is the wait between launching AI batches, to stay
	// under provider rate limits.
	SemanticBatchDelay = 2 * time.Second
)

// Loader Constants
const (
	// HistoryBatchSize is the page size for historical post reads.
	HistoryBatchSize = 500
)

// Run Constants
const (
	// RunTimeout is the hard cap for one dedup run; candidates still
	// unresolved when it expires ship as unique.
	RunTimeout = 2 * time.Minute
)

// Bloom Filter Constants
const (
	// BloomCapacity is the initial BF.RESERVE capacity.
	BloomCapacity = 100000

	// BloomErrorRate is the desired false positive probability.
	BloomErrorRate = 0.001

	// BloomTTL expires per-run filters so stale fingerprints cannot linger.
	BloomTTL = 24 * time.Hour
)
