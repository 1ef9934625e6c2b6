package database

import "database/sql"

// UpsertSocialAccount connects (or reconnects) a platform account for a
// user. One account per (user, platform); reconnecting replaces the token.
func (db *DB) UpsertSocialAccount(a *SocialAccount) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO social_accounts (user_id, platform, account_name, access_token, is_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, platform) DO UPDATE SET
			account_name = excluded.account_name,
			access_token = excluded.access_token,
			is_active = excluded.is_active`,
		a.UserID, string(a.Platform), a.AccountName, a.AccessToken, boolInt(a.IsActive),
	)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil || id == 0 {
		// Updated an existing row; look up its ID.
		existing, lookupErr := db.getAccount(a.UserID, a.Platform)
		if lookupErr != nil || existing == nil {
			return 0, err
		}
		return existing.ID, nil
	}
	return id, nil
}

// GetActiveAccount returns the active credential for (user, platform),
// or nil when no account is connected. The engagement poster treats nil
// as a permanent failure for the match.
func (db *DB) GetActiveAccount(userID int64, platform Platform) (*SocialAccount, error) {
	row := db.conn.QueryRow(
		accountSelect+" WHERE user_id = ? AND platform = ? AND is_active = 1",
		userID, string(platform),
	)
	a, err := scanAccountRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetAccountsForUser returns all connected accounts for a user.
func (db *DB) GetAccountsForUser(userID int64) ([]SocialAccount, error) {
	rows, err := db.conn.Query(accountSelect+" WHERE user_id = ? ORDER BY platform", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []SocialAccount
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// SetAccountActive toggles an account without discarding its token.
func (db *DB) SetAccountActive(id int64, active bool) error {
	_, err := db.conn.Exec("UPDATE social_accounts SET is_active = ? WHERE id = ?", boolInt(active), id)
	return err
}

func (db *DB) getAccount(userID int64, platform Platform) (*SocialAccount, error) {
	row := db.conn.QueryRow(
		accountSelect+" WHERE user_id = ? AND platform = ?", userID, string(platform),
	)
	a, err := scanAccountRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

const accountSelect = `SELECT id, user_id, platform, account_name, access_token, is_active, created_at
	FROM social_accounts`

type accountScanner interface {
	Scan(dest ...any) error
}

func scanAccountRow(row accountScanner) (*SocialAccount, error) {
	var a SocialAccount
	var platform string
	var name sql.NullString
	var active int
	if err := row.Scan(&a.ID, &a.UserID, &platform, &name, &a.AccessToken, &active, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Platform = Platform(platform)
	a.AccountName = name.String
	a.IsActive = active != 0
	return &a, nil
}
