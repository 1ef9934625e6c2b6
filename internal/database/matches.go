package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// InsertMatch persists a discovered match with status pending. Returns
// the ID on success, 0 if the (campaign, platform, post, comment) tuple
// already exists. The unique index is the dedup authority: concurrent
// scans of the same campaign cannot double-insert.
func (db *DB) InsertMatch(m *Match) (int64, error) {
	keywords, err := json.Marshal(m.Keywords)
	if err != nil {
		return 0, fmt.Errorf("marshaling keywords: %w", err)
	}

	result, err := db.conn.Exec(
		`INSERT INTO matches (campaign_id, platform, post_id, comment_id, content,
			author_name, author_id, author_url, post_url, keywords, status, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?)`,
		m.CampaignID, string(m.Platform), m.PostID, m.CommentID, m.Content,
		m.AuthorName, m.AuthorID, m.AuthorURL, m.PostURL, string(keywords), nowString(),
	)
	if isUniqueViolation(err) {
		// Already discovered, skip.
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("inserting match: %w", err)
	}
	return result.LastInsertId()
}

// isUniqueViolation reports whether err is a unique-index violation.
// Other constraint failures (foreign keys, checks) are real errors and
// must not be mistaken for duplicates.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetMatch returns a single match by ID, or nil if not found.
func (db *DB) GetMatch(id int64) (*Match, error) {
	row := db.conn.QueryRow(matchSelect+" WHERE id = ?", id)
	m, err := scanMatchRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMatchesForCampaign returns all matches for a campaign, newest first.
func (db *DB) GetMatchesForCampaign(campaignID int64) ([]Match, error) {
	rows, err := db.conn.Query(
		matchSelect+" WHERE campaign_id = ? ORDER BY discovered_at DESC, id DESC", campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMatches(rows)
}

// GetPendingMatches returns up to limit pending matches for a campaign,
// newest first. Terminal matches are never returned.
func (db *DB) GetPendingMatches(campaignID int64, limit int) ([]Match, error) {
	rows, err := db.conn.Query(
		matchSelect+` WHERE campaign_id = ? AND status = 'pending'
		ORDER BY discovered_at DESC, id DESC LIMIT ?`, campaignID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMatches(rows)
}

// UpdateMatchSentiment records the sentiment score for a match.
func (db *DB) UpdateMatchSentiment(id int64, score float64) error {
	_, err := db.conn.Exec("UPDATE matches SET sentiment = ? WHERE id = ?", score, id)
	return err
}

// MarkMatchEngaged transitions a match to engaged with the posted reply.
func (db *DB) MarkMatchEngaged(id int64, responseText, responseID string) error {
	_, err := db.conn.Exec(
		`UPDATE matches SET status = 'engaged', response_text = ?, response_id = ?,
			note = NULL, engaged_at = ?
		WHERE id = ? AND status = 'pending'`,
		responseText, responseID, nowString(), id,
	)
	return err
}

// MarkMatchSkipped transitions a match to skipped with an explanatory note.
func (db *DB) MarkMatchSkipped(id int64, note string) error {
	_, err := db.conn.Exec(
		"UPDATE matches SET status = 'skipped', note = ? WHERE id = ? AND status = 'pending'",
		note, id,
	)
	return err
}

// MarkMatchFailed transitions a match to failed with the error text.
func (db *DB) MarkMatchFailed(id int64, note string) error {
	_, err := db.conn.Exec(
		"UPDATE matches SET status = 'failed', note = ? WHERE id = ? AND status = 'pending'",
		note, id,
	)
	return err
}

const matchSelect = `SELECT id, campaign_id, platform, post_id, comment_id, content,
	author_name, author_id, author_url, post_url, keywords, status, sentiment,
	response_text, response_id, note, discovered_at, engaged_at
	FROM matches`

type matchScanner interface {
	Scan(dest ...any) error
}

func scanMatchRow(row matchScanner) (*Match, error) {
	var m Match
	var content, authorName, authorID, authorURL, postURL, keywords sql.NullString
	var engagedAt sql.NullString
	var platform, status, discoveredAt string
	if err := row.Scan(&m.ID, &m.CampaignID, &platform, &m.PostID, &m.CommentID,
		&content, &authorName, &authorID, &authorURL, &postURL, &keywords, &status,
		&m.Sentiment, &m.ResponseText, &m.ResponseID, &m.Note,
		&discoveredAt, &engagedAt); err != nil {
		return nil, err
	}

	m.Platform = Platform(platform)
	m.Status = MatchStatus(status)
	m.Content = content.String
	m.AuthorName = authorName.String
	m.AuthorID = authorID.String
	m.AuthorURL = authorURL.String
	m.PostURL = postURL.String

	if keywords.Valid && keywords.String != "" {
		if err := json.Unmarshal([]byte(keywords.String), &m.Keywords); err != nil {
			return nil, fmt.Errorf("unmarshaling keywords for match %d: %w", m.ID, err)
		}
	}

	t, err := parseTime(discoveredAt)
	if err != nil {
		return nil, fmt.Errorf("parsing discovered_at for match %d: %w", m.ID, err)
	}
	m.DiscoveredAt = t

	if engagedAt.Valid {
		if t, err := parseTime(engagedAt.String); err == nil {
			m.EngagedAt = &t
		}
	}
	return &m, nil
}

func scanMatches(rows *sql.Rows) ([]Match, error) {
	var matches []Match
	for rows.Next() {
		m, err := scanMatchRow(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}
