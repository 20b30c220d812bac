package storage

const Schema = `
-- Candidate posts ingested from RSS feeds. Read-only input to the engine.
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    feed_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    full_article_text TEXT NOT NULL DEFAULT '',
    relevance_score REAL,
    issue_id TEXT,                    -- issue the post is queued for; NULL until assigned
    processed_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_issue ON posts(issue_id);

-- Newsletter issues. Only status='sent' counts as published history.
CREATE TABLE IF NOT EXISTS issues (
    id TEXT PRIMARY KEY,
    date DATETIME NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft'
);
CREATE INDEX IF NOT EXISTS idx_issues_status_date ON issues(status, date);

-- Which posts actually ran in an issue. Archived or skipped articles must
-- not count as history.
CREATE TABLE IF NOT EXISTS issue_articles (
    id TEXT PRIMARY KEY,
    issue_id TEXT NOT NULL,
    post_id TEXT NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    skipped INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (issue_id) REFERENCES issues(id),
    FOREIGN KEY (post_id) REFERENCES posts(id)
);
CREATE INDEX IF NOT EXISTS idx_issue_articles_issue ON issue_articles(issue_id);

-- One cluster of mutually-duplicate posts per issue.
CREATE TABLE IF NOT EXISTS duplicate_groups (
    id TEXT PRIMARY KEY,
    issue_id TEXT NOT NULL,
    primary_post_id TEXT NOT NULL,
    topic_signature TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_duplicate_groups_issue ON duplicate_groups(issue_id);

-- Non-primary members folded into a group.
CREATE TABLE IF NOT EXISTS duplicate_posts (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    post_id TEXT NOT NULL,
    similarity_score REAL NOT NULL,
    actual_similarity_score REAL NOT NULL,
    detection_method TEXT NOT NULL,
    matched_post_id TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (group_id) REFERENCES duplicate_groups(id)
);
CREATE INDEX IF NOT EXISTS idx_duplicate_posts_group ON duplicate_posts(group_id);
CREATE INDEX IF NOT EXISTS idx_duplicate_posts_post ON duplicate_posts(post_id);

-- Key/value settings read by the engine, with config defaults when absent.
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
