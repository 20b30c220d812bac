package dedup

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"briefbot/config"
	"briefbot/types"
)

// HistoryRef points at a post published in a prior sent issue.
type HistoryRef struct {
	PostID  string
	IssueID string
	Title   string
}

// HistoryStore describes the read-only queries the loader needs. The sqlite
// store implements it; tests use fakes.
type HistoryStore interface {
	// SentIssuesSince returns issues with status "sent" dated at or after
	// cutoff, excluding the issue currently being built.
	SentIssuesSince(ctx context.Context, cutoff time.Time, excludeIssueID string) ([]types.Issue, error)
	// ArticlesForIssues returns every article record attached to the given
	// issues, active or not; the loader applies IsCountableHistory itself.
	ArticlesForIssues(ctx context.Context, issueIDs []string) ([]types.IssueArticle, error)
	// PostsByIDs loads the posts behind a page of article records.
	PostsByIDs(ctx context.Context, ids []string) ([]*types.Post, error)
}

// IsCountableHistory reports whether an issue article still counts as
// published history. Archived or editor-skipped articles must not suppress
// genuinely new stories.
func IsCountableHistory(article types.IssueArticle) bool {
	return article.IsActive && !article.Skipped
}

// LoadHistory fingerprints every countable post published in a sent issue
// within the lookback window and returns a hash -> post lookup. An empty map
// is a normal result: first issues and review-only issues have no sent
// history, and that must not be treated as an error.
func LoadHistory(ctx context.Context, store HistoryStore, issueDate time.Time, lookbackDays int, excludeIssueID string) (map[string]HistoryRef, error) {
	cutoff := issueDate.AddDate(0, 0, -lookbackDays)

	issues, err := store.SentIssuesSince(ctx, cutoff, excludeIssueID)
	if err != nil {
		return nil, fmt.Errorf("query sent issues: %w", err)
	}
	if len(issues) == 0 {
		return map[string]HistoryRef{}, nil
	}

	issueIDs := make([]string, 0, len(issues))
	issueByID := make(map[string]types.Issue, len(issues))
	for _, issue := range issues {
		issueIDs = append(issueIDs, issue.ID)
		issueByID[issue.ID] = issue
	}

	articles, err := store.ArticlesForIssues(ctx, issueIDs)
	if err != nil {
		return nil, fmt.Errorf("query issue articles: %w", err)
	}

	issueForPost := make(map[string]string)
	var postIDs []string
	for _, article := range articles {
		if !IsCountableHistory(article) {
			continue
		}
		if _, seen := issueForPost[article.PostID]; seen {
			continue
		}
		issueForPost[article.PostID] = article.IssueID
		postIDs = append(postIDs, article.PostID)
	}
	if len(postIDs) == 0 {
		return map[string]HistoryRef{}, nil
	}

	// Page the post reads; pages are independent read-only queries so they
	// may run concurrently.
	pages := chunkIDs(postIDs, config.HistoryBatchSize)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		lookup  = make(map[string]HistoryRef)
		loadErr error
	)
	sem := make(chan struct{}, config.MaxConcurrentBatches)

	for _, page := range pages {
		wg.Add(1)
		go func(ids []string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			posts, err := store.PostsByIDs(ctx, ids)
			if err != nil {
				mu.Lock()
				if loadErr == nil {
					loadErr = err
				}
				mu.Unlock()
				return
			}

			mu.Lock()
			for _, post := range posts {
				fp := Fingerprint(post)
				if _, exists := lookup[fp]; exists {
					continue
				}
				lookup[fp] = HistoryRef{
					PostID:  post.ID,
					IssueID: issueForPost[post.ID],
					Title:   post.Title,
				}
			}
			mu.Unlock()
		}(page)
	}
	wg.Wait()

	if loadErr != nil {
		return nil, fmt.Errorf("load historical posts: %w", loadErr)
	}

	log.Printf("history: %d fingerprint(s) from %d sent issue(s) since %s",
		len(lookup), len(issues), cutoff.Format("2006-01-02"))
	return lookup, nil
}

func chunkIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
