package dedup

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"briefbot/config"
	"briefbot/types"
)

// Options carries every per-run tunable. Callers build it from the settings
// store (with config defaults) and pass it in explicitly, so tests can vary
// any knob per run without global state.
type Options struct {
	LookbackDays       int
	Strictness         float64
	TitleThreshold     float64
	SemanticBatchSize  int
	SemanticConcurrent int
	SemanticDelay      time.Duration
	// SemanticPrompt overrides the built-in instruction block when set.
	SemanticPrompt string
}

// DefaultOptions returns Options populated from the config defaults.
func DefaultOptions() Options {
	return Options{
		LookbackDays:       config.DefaultLookbackDays,
		Strictness:         config.DefaultStrictnessThreshold,
		TitleThreshold:     config.DefaultTitleThreshold,
		SemanticBatchSize:  config.SemanticBatchSize,
		SemanticConcurrent: config.MaxConcurrentBatches,
		SemanticDelay:      config.SemanticBatchDelay,
	}
}

// Pipeline wires the dedup stages together. History is required; Completer
// and Bloom are optional and the corresponding stage or fast-path disables
// itself when nil.
type Pipeline struct {
	History   HistoryStore
	Completer Completer
	Bloom     *Bloom
}

// Run executes one deduplication pass over the issue's candidates: load
// history, then exact, title and semantic stages in order, each operating
// only on posts the previous stages left unresolved, then resolve the final
// groups. Every input candidate is accounted for in the report: a failed
// stage degrades its candidates to unique rather than dropping them or
// aborting the run. Run does not persist; callers decide when to write.
func (p *Pipeline) Run(ctx context.Context, candidates []*types.Post, issueID string, issueDate time.Time, opts Options) *types.RunReport {
	report := &types.RunReport{
		RunID:     uuid.NewString(),
		IssueID:   issueID,
		StartedAt: time.Now().UTC(),
	}
	report.Stats.Total = len(candidates)

	history, err := LoadHistory(ctx, p.History, issueDate, opts.LookbackDays, issueID)
	if err != nil {
		// Historical suppression is lost for this run, but the batch can
		// still be deduplicated against itself.
		log.Printf("dedup: historical load failed, continuing without history: %v", err)
		history = map[string]HistoryRef{}
	}
	report.HistoricalCount = len(history)
	report.HistoryEmpty = len(history) == 0
	if report.HistoryEmpty {
		// Expected for first issues and review-only windows; flagged
		// distinctly so editors do not read it as a failure.
		log.Printf("dedup: 0 historical campaigns found in %d-day lookback window (expected for first issues)", opts.LookbackDays)
	}

	prefilter := p.historyPrefilter(ctx, issueID, history)

	exactClusters, remaining := ResolveExact(candidates, history, prefilter)
	log.Printf("dedup: exact stage resolved %d cluster(s), %d candidate(s) remain", len(exactClusters), len(remaining))

	titleClusters, remaining := ResolveByTitle(remaining, opts.TitleThreshold)
	log.Printf("dedup: title stage resolved %d cluster(s), %d candidate(s) remain", len(titleClusters), len(remaining))

	semanticClusters, unresolved := ResolveBySemantics(ctx, p.Completer, remaining, SemanticOptions{
		Strictness:    opts.Strictness,
		BatchSize:     opts.SemanticBatchSize,
		MaxConcurrent: opts.SemanticConcurrent,
		Delay:         opts.SemanticDelay,
		Prompt:        opts.SemanticPrompt,
	})
	log.Printf("dedup: semantic stage resolved %d cluster(s), %d candidate(s) unique", len(semanticClusters), len(unresolved))

	clusters := make([]Cluster, 0, len(exactClusters)+len(titleClusters)+len(semanticClusters))
	clusters = append(clusters, exactClusters...)
	clusters = append(clusters, titleClusters...)
	clusters = append(clusters, semanticClusters...)

	report.Groups = ResolveGroups(issueID, clusters)

	for _, group := range report.Groups {
		for _, member := range group.Members {
			report.Stats.Duplicate++
			switch member.DetectionMethod {
			case types.DetectionHistorical:
				report.Stats.Historical++
			case types.DetectionExact:
				report.Stats.Exact++
			case types.DetectionTitle:
				report.Stats.Title++
			case types.DetectionSemantic:
				report.Stats.Semantic++
			}
		}
	}
	report.Stats.Unique = report.Stats.Total - report.Stats.Duplicate
	report.FinishedAt = time.Now().UTC()

	log.Printf("dedup: issue %s: %d total, %d unique, %d duplicate (historical=%d exact=%d title=%d semantic=%d)",
		issueID, report.Stats.Total, report.Stats.Unique, report.Stats.Duplicate,
		report.Stats.Historical, report.Stats.Exact, report.Stats.Title, report.Stats.Semantic)

	return report
}

// historyPrefilter seeds the optional bloom filter and returns a membership
// test for the exact stage, or nil when the fast-path is unavailable.
func (p *Pipeline) historyPrefilter(ctx context.Context, issueID string, history map[string]HistoryRef) func(string) bool {
	if p.Bloom == nil || len(history) == 0 {
		return nil
	}

	fingerprints := make([]string, 0, len(history))
	for fp := range history {
		fingerprints = append(fingerprints, fp)
	}
	if err := p.Bloom.Seed(ctx, issueID, fingerprints); err != nil {
		log.Printf("dedup: bloom seed failed, fast-path disabled: %v", err)
		return nil
	}

	return func(fp string) bool {
		return p.Bloom.MightContain(ctx, issueID, fp)
	}
}
