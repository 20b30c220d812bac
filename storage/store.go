package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"briefbot/types"
)

// Store persists posts, issues and duplicate groups in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	store := &Store{db: db}
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveIssue upserts an issue record.
func (s *Store) SaveIssue(ctx context.Context, issue types.Issue) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issues (id, date, status) VALUES (?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET date = excluded.date, status = excluded.status`,
		issue.ID, issue.Date.UTC(), issue.Status,
	)
	if err != nil {
		return fmt.Errorf("upsert issue: %w", err)
	}
	return nil
}

// SavePost upserts a candidate post.
func (s *Store) SavePost(ctx context.Context, post *types.Post) error {
	var score sql.NullFloat64
	if post.RelevanceScore != nil {
		score = sql.NullFloat64{Float64: *post.RelevanceScore, Valid: true}
	}
	var issueID sql.NullString
	if post.IssueID != "" {
		issueID = sql.NullString{String: post.IssueID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (id, feed_id, title, description, content, full_article_text, relevance_score, issue_id, processed_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             title = excluded.title,
             description = excluded.description,
             content = excluded.content,
             full_article_text = excluded.full_article_text,
             relevance_score = excluded.relevance_score,
             issue_id = excluded.issue_id`,
		post.ID, post.FeedID, post.Title, post.Description, post.Content,
		post.FullArticleText, score, issueID, post.ProcessedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert post: %w", err)
	}
	return nil
}

// SaveIssueArticle upserts an issue article record.
func (s *Store) SaveIssueArticle(ctx context.Context, article types.IssueArticle) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issue_articles (id, issue_id, post_id, is_active, skipped)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET is_active = excluded.is_active, skipped = excluded.skipped`,
		article.ID, article.IssueID, article.PostID, article.IsActive, article.Skipped,
	)
	if err != nil {
		return fmt.Errorf("upsert issue article: %w", err)
	}
	return nil
}

// Issue loads one issue by id.
func (s *Store) Issue(ctx context.Context, id string) (*types.Issue, error) {
	var issue types.Issue
	err := s.db.QueryRowContext(ctx,
		`SELECT id, date, status FROM issues WHERE id = ?`, id,
	).Scan(&issue.ID, &issue.Date, &issue.Status)
	if err != nil {
		return nil, fmt.Errorf("query issue %s: %w", id, err)
	}
	return &issue, nil
}

// Candidates returns the posts currently queued for an issue.
func (s *Store) Candidates(ctx context.Context, issueID string) ([]*types.Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, feed_id, title, description, content, full_article_text, relevance_score, issue_id, processed_at
         FROM posts WHERE issue_id = ? ORDER BY processed_at, id`, issueID,
	)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

// SentIssuesSince returns sent issues dated at or after cutoff, excluding
// the issue currently being built.
func (s *Store) SentIssuesSince(ctx context.Context, cutoff time.Time, excludeIssueID string) ([]types.Issue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, date, status FROM issues
         WHERE status = ? AND date >= ? AND id != ?
         ORDER BY date`,
		types.IssueStatusSent, cutoff.UTC(), excludeIssueID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sent issues: %w", err)
	}
	defer rows.Close()

	var issues []types.Issue
	for rows.Next() {
		var issue types.Issue
		if err := rows.Scan(&issue.ID, &issue.Date, &issue.Status); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return issues, nil
}

// ArticlesForIssues returns every article record attached to the given
// issues, including archived and skipped ones; the loader filters.
func (s *Store) ArticlesForIssues(ctx context.Context, issueIDs []string) ([]types.IssueArticle, error) {
	if len(issueIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(
		`SELECT id, issue_id, post_id, is_active, skipped FROM issue_articles WHERE issue_id IN (%s)`,
		placeholders(len(issueIDs)),
	)
	rows, err := s.db.QueryContext(ctx, query, toArgs(issueIDs)...)
	if err != nil {
		return nil, fmt.Errorf("query issue articles: %w", err)
	}
	defer rows.Close()

	var articles []types.IssueArticle
	for rows.Next() {
		var article types.IssueArticle
		if err := rows.Scan(&article.ID, &article.IssueID, &article.PostID, &article.IsActive, &article.Skipped); err != nil {
			return nil, fmt.Errorf("scan issue article: %w", err)
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

// PostsByIDs loads a page of posts by id.
func (s *Store) PostsByIDs(ctx context.Context, ids []string) ([]*types.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(
		`SELECT id, feed_id, title, description, content, full_article_text, relevance_score, issue_id, processed_at
         FROM posts WHERE id IN (%s)`,
		placeholders(len(ids)),
	)
	rows, err := s.db.QueryContext(ctx, query, toArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

// ResetIssue deletes all duplicate groups and members for one issue, child
// rows before parents, scoped strictly by issue so concurrent issues are
// untouched. Safe to run twice.
func (s *Store) ResetIssue(ctx context.Context, issueID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	if err := resetIssueTx(ctx, tx, issueID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}

// PersistGroups replaces the issue's duplicate groups with the given set in
// one transaction: a failure mid-write rolls back to the previous state
// rather than leaving a half-deleted mix. Re-runnable after prompt or
// threshold changes.
func (s *Store) PersistGroups(ctx context.Context, issueID string, groups []types.DuplicateGroup) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin persist: %w", err)
	}
	defer tx.Rollback()

	if err := resetIssueTx(ctx, tx, issueID); err != nil {
		return err
	}

	for _, group := range groups {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO duplicate_groups (id, issue_id, primary_post_id, topic_signature, created_at)
             VALUES (?, ?, ?, ?, ?)`,
			group.ID, issueID, group.PrimaryPostID, group.TopicSignature, group.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert group: %w", err)
		}

		for _, member := range group.Members {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO duplicate_posts (id, group_id, post_id, similarity_score, actual_similarity_score, detection_method, matched_post_id)
                 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				member.ID, group.ID, member.PostID, member.SimilarityScore,
				member.ActualSimilarityScore, string(member.DetectionMethod), member.MatchedPostID,
			)
			if err != nil {
				return fmt.Errorf("insert member: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit persist: %w", err)
	}
	return nil
}

func resetIssueTx(ctx context.Context, tx *sql.Tx, issueID string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM duplicate_posts
         WHERE group_id IN (SELECT id FROM duplicate_groups WHERE issue_id = ?)`,
		issueID,
	)
	if err != nil {
		return fmt.Errorf("delete duplicate posts: %w", err)
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM duplicate_groups WHERE issue_id = ?`, issueID)
	if err != nil {
		return fmt.Errorf("delete duplicate groups: %w", err)
	}
	return nil
}

// GroupsForIssue loads the persisted duplicate groups with their members.
func (s *Store) GroupsForIssue(ctx context.Context, issueID string) ([]types.DuplicateGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, issue_id, primary_post_id, topic_signature, created_at
         FROM duplicate_groups WHERE issue_id = ? ORDER BY created_at, id`, issueID,
	)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var groups []types.DuplicateGroup
	for rows.Next() {
		var group types.DuplicateGroup
		if err := rows.Scan(&group.ID, &group.IssueID, &group.PrimaryPostID, &group.TopicSignature, &group.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	for i := range groups {
		members, err := s.membersForGroup(ctx, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Members = members
	}
	return groups, nil
}

func (s *Store) membersForGroup(ctx context.Context, groupID string) ([]types.DuplicateMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, post_id, similarity_score, actual_similarity_score, detection_method, matched_post_id
         FROM duplicate_posts WHERE group_id = ? ORDER BY id`, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []types.DuplicateMember
	for rows.Next() {
		var member types.DuplicateMember
		var method string
		if err := rows.Scan(&member.ID, &member.GroupID, &member.PostID, &member.SimilarityScore,
			&member.ActualSimilarityScore, &method, &member.MatchedPostID); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		member.DetectionMethod = types.DetectionMethod(method)
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return members, nil
}

func scanPosts(rows *sql.Rows) ([]*types.Post, error) {
	var posts []*types.Post
	for rows.Next() {
		var post types.Post
		var score sql.NullFloat64
		var issueID sql.NullString
		if err := rows.Scan(&post.ID, &post.FeedID, &post.Title, &post.Description, &post.Content,
			&post.FullArticleText, &score, &issueID, &post.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		if score.Valid {
			v := score.Float64
			post.RelevanceScore = &v
		}
		if issueID.Valid {
			post.IssueID = issueID.String
		}
		posts = append(posts, &post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return posts, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(ids []string) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
