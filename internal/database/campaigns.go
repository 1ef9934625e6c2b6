package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// InsertCampaign persists a new campaign and returns its ID.
func (db *DB) InsertCampaign(c *Campaign) (int64, error) {
	if len(c.Keywords) == 0 {
		return 0, fmt.Errorf("campaign needs at least one keyword")
	}
	if len(c.Platforms) == 0 {
		return 0, fmt.Errorf("campaign needs at least one platform")
	}
	if err := c.Engagement.Normalize(); err != nil {
		return 0, err
	}

	keywords, err := json.Marshal(c.Keywords)
	if err != nil {
		return 0, fmt.Errorf("marshaling keywords: %w", err)
	}
	platforms, err := json.Marshal(c.Platforms)
	if err != nil {
		return 0, fmt.Errorf("marshaling platforms: %w", err)
	}

	result, err := db.conn.Exec(
		`INSERT INTO campaigns (user_id, business_name, business_description, keywords, platforms,
			is_active, auto_engage, personality, response_style, max_response_length,
			include_cta, custom_instructions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, c.BusinessName, c.BusinessDescription, string(keywords), string(platforms),
		boolInt(c.IsActive), boolInt(c.AutoEngage), c.Engagement.Personality,
		c.Engagement.ResponseStyle, c.Engagement.MaxResponseLength,
		boolInt(c.Engagement.IncludeCTA), c.Engagement.CustomInstructions,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting campaign: %w", err)
	}
	return result.LastInsertId()
}

// GetCampaign returns a campaign by ID, or nil if not found.
func (db *DB) GetCampaign(id int64) (*Campaign, error) {
	row := db.conn.QueryRow(campaignSelect+" WHERE id = ?", id)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetCampaignsForUser returns all campaigns owned by a user.
func (db *DB) GetCampaignsForUser(userID int64) ([]Campaign, error) {
	rows, err := db.conn.Query(campaignSelect+" WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCampaigns(rows)
}

// GetAllCampaigns returns every campaign.
func (db *DB) GetAllCampaigns() ([]Campaign, error) {
	rows, err := db.conn.Query(campaignSelect + " ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCampaigns(rows)
}

// GetActiveCampaigns returns campaigns eligible for scanning.
func (db *DB) GetActiveCampaigns() ([]Campaign, error) {
	rows, err := db.conn.Query(campaignSelect + " WHERE is_active = 1 ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCampaigns(rows)
}

// GetAutoEngageCampaigns returns active campaigns with auto-engagement enabled.
func (db *DB) GetAutoEngageCampaigns() ([]Campaign, error) {
	rows, err := db.conn.Query(campaignSelect + " WHERE is_active = 1 AND auto_engage = 1 ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCampaigns(rows)
}

// SetCampaignActive toggles a campaign's active flag. Deactivated
// campaigns drop out of the next scheduler cycle; in-flight cycles
// complete cooperatively.
func (db *DB) SetCampaignActive(id int64, active bool) error {
	_, err := db.conn.Exec(
		"UPDATE campaigns SET is_active = ?, updated_at = datetime('now') WHERE id = ?",
		boolInt(active), id,
	)
	return err
}

// SetAutoEngagement enables auto-engagement with the given config, or
// disables it when cfg is nil.
func (db *DB) SetAutoEngagement(id int64, cfg *EngagementConfig) error {
	if cfg == nil {
		_, err := db.conn.Exec(
			"UPDATE campaigns SET auto_engage = 0, updated_at = datetime('now') WHERE id = ?", id,
		)
		return err
	}
	if err := cfg.Normalize(); err != nil {
		return err
	}
	_, err := db.conn.Exec(
		`UPDATE campaigns SET auto_engage = 1, personality = ?, response_style = ?,
			max_response_length = ?, include_cta = ?, custom_instructions = ?,
			updated_at = datetime('now')
		WHERE id = ?`,
		cfg.Personality, cfg.ResponseStyle, cfg.MaxResponseLength,
		boolInt(cfg.IncludeCTA), cfg.CustomInstructions, id,
	)
	return err
}

// UpdateLastScanned stamps the campaign's last scan time.
func (db *DB) UpdateLastScanned(id int64) error {
	_, err := db.conn.Exec(
		"UPDATE campaigns SET last_scanned_at = datetime('now'), updated_at = datetime('now') WHERE id = ?", id,
	)
	return err
}

// DeleteCampaign removes a campaign; its matches and logs cascade.
func (db *DB) DeleteCampaign(id int64) error {
	_, err := db.conn.Exec("DELETE FROM campaigns WHERE id = ?", id)
	return err
}

const campaignSelect = `SELECT id, user_id, business_name, business_description, keywords, platforms,
	is_active, auto_engage, personality, response_style, max_response_length,
	include_cta, custom_instructions, last_scanned_at, created_at, updated_at
	FROM campaigns`

type campaignScanner interface {
	Scan(dest ...any) error
}

func scanCampaignRow(row campaignScanner) (*Campaign, error) {
	var c Campaign
	var desc, custom, lastScanned sql.NullString
	var keywords, platforms string
	var active, auto, cta int
	if err := row.Scan(&c.ID, &c.UserID, &c.BusinessName, &desc, &keywords, &platforms,
		&active, &auto, &c.Engagement.Personality, &c.Engagement.ResponseStyle,
		&c.Engagement.MaxResponseLength, &cta, &custom, &lastScanned,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}

	c.BusinessDescription = desc.String
	c.Engagement.CustomInstructions = custom.String
	c.IsActive = active != 0
	c.AutoEngage = auto != 0
	c.Engagement.IncludeCTA = cta != 0

	if err := json.Unmarshal([]byte(keywords), &c.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshaling keywords for campaign %d: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(platforms), &c.Platforms); err != nil {
		return nil, fmt.Errorf("unmarshaling platforms for campaign %d: %w", c.ID, err)
	}

	if lastScanned.Valid {
		if t, err := parseTime(lastScanned.String); err == nil {
			c.LastScannedAt = &t
		}
	}
	return &c, nil
}

func scanCampaign(row *sql.Row) (*Campaign, error) {
	return scanCampaignRow(row)
}

func scanCampaigns(rows *sql.Rows) ([]Campaign, error) {
	var campaigns []Campaign
	for rows.Next() {
		c, err := scanCampaignRow(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
