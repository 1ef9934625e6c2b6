package database

// GetStats returns aggregate counts for the status command.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM campaigns", &s.TotalCampaigns},
		{"SELECT COUNT(*) FROM campaigns WHERE is_active = 1", &s.ActiveCampaigns},
		{"SELECT COUNT(*) FROM matches", &s.TotalMatches},
		{"SELECT COUNT(*) FROM matches WHERE status = 'pending'", &s.PendingMatches},
		{"SELECT COUNT(*) FROM matches WHERE status = 'engaged'", &s.EngagedMatches},
		{"SELECT COUNT(*) FROM engagement_logs", &s.EngagementLogs},
		{"SELECT COUNT(*) FROM social_accounts", &s.SocialAccounts},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return s, nil
}
