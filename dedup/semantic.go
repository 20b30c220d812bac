package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"briefbot/types"
)

// Completer is the single AI call the semantic stage depends on. The ai
// package provides the Cohere-backed implementation; tests use fakes.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// SemanticOptions tunes the AI grouping stage.
type SemanticOptions struct {
	// Strictness is the minimum similarity for a returned group to be
	// confirmed; groups under it are discarded as merely related.
	Strictness float64
	// BatchSize caps candidates per AI call.
	BatchSize int
	// MaxConcurrent bounds batches in flight; Delay spaces out launches.
	MaxConcurrent int
	Delay         time.Duration
	// Prompt overrides the default instruction block when non-empty.
	Prompt string
}

// ResolveBySemantics batches the remaining ambiguous candidates into AI
// calls and groups those the model confirms as duplicate topics. Any
// failure (call error, malformed JSON, out-of-range indices) degrades that
// batch to unresolved: every candidate still ships rather than being
// silently dropped.
func ResolveBySemantics(ctx context.Context, completer Completer, candidates []*types.Post, opts SemanticOptions) ([]Cluster, []*types.Post) {
	if completer == nil || len(candidates) < 2 {
		return nil, candidates
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = len(candidates)
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	var batches [][]*types.Post
	for start := 0; start < len(candidates); start += batchSize {
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batches = append(batches, candidates[start:end])
	}

	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		clusters   []Cluster
		unresolved []*types.Post
	)
	sem := make(chan struct{}, maxConcurrent)

	for i, batch := range batches {
		// Honor the run's hard cap: batches not yet launched when the
		// context expires degrade to unresolved.
		if ctx.Err() != nil {
			mu.Lock()
			unresolved = append(unresolved, batch...)
			mu.Unlock()
			continue
		}
		if i > 0 && opts.Delay > 0 {
			time.Sleep(opts.Delay)
		}

		wg.Add(1)
		go func(batch []*types.Post) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			batchClusters, batchUnresolved := resolveBatch(ctx, completer, batch, opts)
			mu.Lock()
			clusters = append(clusters, batchClusters...)
			unresolved = append(unresolved, batchUnresolved...)
			mu.Unlock()
		}(batch)
	}
	wg.Wait()

	return clusters, unresolved
}

func resolveBatch(ctx context.Context, completer Completer, batch []*types.Post, opts SemanticOptions) ([]Cluster, []*types.Post) {
	raw, err := completer.Complete(ctx, buildPrompt(batch, opts.Prompt))
	if err != nil {
		log.Printf("semantic: AI call failed, treating %d candidate(s) as unique: %v", len(batch), err)
		return nil, batch
	}

	parsed, err := parseGroupingResponse(raw, len(batch))
	if err != nil {
		log.Printf("semantic: bad AI response, treating %d candidate(s) as unique: %v", len(batch), err)
		return nil, batch
	}

	grouped := make(map[int]bool)
	var clusters []Cluster
	for gi, indices := range parsed.Groups {
		similarity := 1.0
		if gi < len(parsed.Similarities) {
			similarity = parsed.Similarities[gi]
		}
		if similarity < opts.Strictness {
			// Related but not close enough; both sides ship as unique.
			continue
		}

		posts := make([]*types.Post, 0, len(indices))
		for _, idx := range indices {
			posts = append(posts, batch[idx-1])
		}
		primary := choosePrimary(posts)

		cluster := Cluster{PrimaryPostID: primary.ID, PrimaryTitle: primary.Title}
		if gi < len(parsed.Topics) {
			cluster.Topic = strings.TrimSpace(parsed.Topics[gi])
		}
		for _, post := range posts {
			if post.ID == primary.ID {
				continue
			}
			cluster.Members = append(cluster.Members, Member{
				Post:   post,
				Score:  similarity,
				Actual: similarity,
				Method: types.DetectionSemantic,
			})
		}
		clusters = append(clusters, cluster)

		for _, idx := range indices {
			if batch[idx-1].ID != primary.ID {
				grouped[idx-1] = true
			}
		}
	}

	var unresolved []*types.Post
	for i, post := range batch {
		if !grouped[i] {
			unresolved = append(unresolved, post)
		}
	}
	return clusters, unresolved
}

const defaultGroupingPrompt = `You are a newsletter editor's assistant. Below is a numbered list of candidate articles for one newsletter issue. Identify which articles cover the same underlying story even when phrased differently. Respond STRICTLY with valid JSON using this schema:
{
  "groups": [[1, 4], [2, 7]],
  "unique_articles": [3, 5, 6],
  "similarities": [0.95, 0.85],
  "topics": ["fed rate cut", "openai funding round"]
}
Rules:
- Article numbers refer to the list below and every number must appear exactly once, either in a group or in unique_articles.
- Each group must contain at least two articles.
- "similarities" holds one 0-1 confidence per group that its articles are true duplicates, and "topics" one short label per group.
- Group only genuine duplicates of the same story, not articles that merely share a theme.`

func buildPrompt(batch []*types.Post, override string) string {
	instructions := defaultGroupingPrompt
	if override != "" {
		instructions = override
	}

	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\nArticles:\n")
	for i, post := range batch {
		summary := post.Description
		if summary == "" {
			summary = snippet(extractBody(post), 300)
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, post.Title)
		if summary != "" {
			fmt.Fprintf(&b, "   %s\n", snippet(summary, 300))
		}
	}
	return b.String()
}

func snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// groupingResponse is the validated shape of the AI's answer. Indices are
// 1-based, matching the numbered list in the prompt.
type groupingResponse struct {
	Groups         [][]int   `json:"groups"`
	UniqueArticles []int     `json:"unique_articles"`
	Similarities   []float64 `json:"similarities"`
	Topics         []string  `json:"topics"`
}

// parseGroupingResponse extracts and strictly validates the JSON payload.
// Any violation fails the whole batch; partially-parsed indices are never
// trusted.
func parseGroupingResponse(raw string, batchLen int) (*groupingResponse, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("response contains no JSON object")
	}

	var decoded groupingResponse
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	seen := make(map[int]bool)
	check := func(idx int) error {
		if idx < 1 || idx > batchLen {
			return fmt.Errorf("index %d out of range (batch of %d)", idx, batchLen)
		}
		if seen[idx] {
			return fmt.Errorf("index %d assigned twice", idx)
		}
		seen[idx] = true
		return nil
	}

	for _, group := range decoded.Groups {
		if len(group) < 2 {
			return nil, fmt.Errorf("group with fewer than two articles")
		}
		for _, idx := range group {
			if err := check(idx); err != nil {
				return nil, err
			}
		}
	}
	for _, idx := range decoded.UniqueArticles {
		if err := check(idx); err != nil {
			return nil, err
		}
	}

	for _, sim := range decoded.Similarities {
		if sim < 0 || sim > 1 {
			return nil, fmt.Errorf("similarity %v outside 0-1", sim)
		}
	}

	return &decoded, nil
}

// extractJSON locates the outermost JSON object in a model response that may
// wrap it in prose or code fences.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return content[start : end+1]
}
