package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// InsertEngagementLog writes an immutable audit record of a successful
// reply. Returns the generated log ID.
func (db *DB) InsertEngagementLog(l *EngagementLog) (string, error) {
	id := l.ID
	if id == "" {
		id = uuid.NewString()
	}
	outcome := l.Outcome
	if outcome == "" {
		outcome = "posted"
	}
	_, err := db.conn.Exec(
		`INSERT INTO engagement_logs (id, campaign_id, match_id, platform, response_text, response_id, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, l.CampaignID, l.MatchID, string(l.Platform), l.ResponseText, l.ResponseID, outcome,
	)
	if err != nil {
		return "", fmt.Errorf("inserting engagement log: %w", err)
	}
	return id, nil
}

// GetEngagementLogsForCampaign returns a campaign's audit trail, newest first.
func (db *DB) GetEngagementLogsForCampaign(campaignID int64) ([]EngagementLog, error) {
	rows, err := db.conn.Query(
		`SELECT id, campaign_id, match_id, platform, response_text, response_id, outcome, created_at
		FROM engagement_logs WHERE campaign_id = ? ORDER BY created_at DESC, id`, campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEngagementLogs(rows)
}

// GetEngagementLogForMatch returns the log entry for a match, or nil.
func (db *DB) GetEngagementLogForMatch(matchID int64) (*EngagementLog, error) {
	row := db.conn.QueryRow(
		`SELECT id, campaign_id, match_id, platform, response_text, response_id, outcome, created_at
		FROM engagement_logs WHERE match_id = ?`, matchID,
	)
	var l EngagementLog
	var platform string
	var responseID sql.NullString
	err := row.Scan(&l.ID, &l.CampaignID, &l.MatchID, &platform, &l.ResponseText,
		&responseID, &l.Outcome, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	l.Platform = Platform(platform)
	l.ResponseID = responseID.String
	return &l, nil
}

func scanEngagementLogs(rows *sql.Rows) ([]EngagementLog, error) {
	var logs []EngagementLog
	for rows.Next() {
		var l EngagementLog
		var platform string
		var responseID sql.NullString
		if err := rows.Scan(&l.ID, &l.CampaignID, &l.MatchID, &platform, &l.ResponseText,
			&responseID, &l.Outcome, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Platform = Platform(platform)
		l.ResponseID = responseID.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
