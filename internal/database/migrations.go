package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS campaigns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    business_name TEXT NOT NULL,
    business_description TEXT,
    keywords TEXT NOT NULL,
    platforms TEXT NOT NULL,
    is_active INTEGER DEFAULT 1,
    auto_engage INTEGER DEFAULT 0,
    personality TEXT DEFAULT 'friendly',
    response_style TEXT DEFAULT 'helpful',
    max_response_length INTEGER DEFAULT 280,
    include_cta INTEGER DEFAULT 0,
    custom_instructions TEXT,
    last_scanned_at TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

-- comment_id is '' (never NULL) for top-level posts so the unique
-- index actually holds; SQLite treats NULLs as distinct.
CREATE TABLE IF NOT EXISTS matches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    campaign_id INTEGER NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
    platform TEXT NOT NULL,
    post_id TEXT NOT NULL,
    comment_id TEXT NOT NULL DEFAULT '',
    content TEXT,
    author_name TEXT,
    author_id TEXT,
    author_url TEXT,
    post_url TEXT,
    keywords TEXT,
    status TEXT NOT NULL DEFAULT 'pending'
        CHECK(status IN ('pending', 'engaged', 'skipped', 'failed')),
    sentiment REAL,
    response_text TEXT,
    response_id TEXT,
    note TEXT,
    discovered_at TEXT NOT NULL DEFAULT (datetime('now')),
    engaged_at TEXT,
    UNIQUE(campaign_id, platform, post_id, comment_id)
);

CREATE TABLE IF NOT EXISTS engagement_logs (
    id TEXT PRIMARY KEY,
    campaign_id INTEGER NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
    match_id INTEGER NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
    platform TEXT NOT NULL,
    response_text TEXT NOT NULL,
    response_id TEXT,
    outcome TEXT NOT NULL,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS social_accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    platform TEXT NOT NULL,
    account_name TEXT,
    access_token TEXT NOT NULL,
    is_active INTEGER DEFAULT 1,
    created_at TEXT DEFAULT (datetime('now')),
    UNIQUE(user_id, platform)
);

CREATE INDEX IF NOT EXISTS idx_campaigns_user ON campaigns(user_id);
CREATE INDEX IF NOT EXISTS idx_campaigns_active ON campaigns(is_active);
CREATE INDEX IF NOT EXISTS idx_matches_campaign ON matches(campaign_id);
CREATE INDEX IF NOT EXISTS idx_matches_status ON matches(campaign_id, status);
CREATE INDEX IF NOT EXISTS idx_logs_campaign ON engagement_logs(campaign_id);
CREATE INDEX IF NOT EXISTS idx_logs_match ON engagement_logs(match_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
