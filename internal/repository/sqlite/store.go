package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/vladkruhlyk/git-bot.statistic/internal/apperror"
	"github.com/vladkruhlyk/git-bot.statistic/internal/model"
	"github.com/vladkruhlyk/git-bot.statistic/internal/repository"
)

// Compile-time check that *DB implements repository.Store.
var _ repository.Store = (*DB)(nil)

// UpsertUser returns the internal ID for a Telegram user, inserting the row
// on first contact. The insert uses ON CONFLICT DO NOTHING so two overlapping
// first-contact events from the same user cannot race into an error.
func (db *DB) UpsertUser(ctx context.Context, telegramID int64) (string, error) {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, telegram_id) VALUES (?, ?)
		 ON CONFLICT(telegram_id) DO NOTHING`,
		xid.New().String(), telegramID,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: upserting user: %w", err)
	}

	var id string
	err = db.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE telegram_id = ?`, telegramID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("sqlite: reading user id: %w", err)
	}

	return id, nil
}

// GetConnection returns the user's credential link.
// sql.ErrNoRows is translated to the domain NotFound error: "the user never
// submitted a token" is a normal state, not a database failure.
func (db *DB) GetConnection(ctx context.Context, userID string) (*model.Connection, error) {
	var conn model.Connection
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id, encrypted_token, token_status, updated_at
		 FROM connections
		 WHERE user_id = ?`,
		userID,
	).Scan(&conn.UserID, &conn.EncryptedToken, &conn.Status, &conn.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("connection", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting connection: %w", err)
	}

	return &conn, nil
}

// SaveConnection creates or fully overwrites the user's credential link.
func (db *DB) SaveConnection(ctx context.Context, userID, encryptedToken string, status model.TokenStatus) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO connections (user_id, encrypted_token, token_status, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   encrypted_token = excluded.encrypted_token,
		   token_status    = excluded.token_status,
		   updated_at      = excluded.updated_at`,
		userID, encryptedToken, string(status), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving connection: %w", err)
	}

	return nil
}

// SetTokenStatus flips only the validity flag of an existing link.
func (db *DB) SetTokenStatus(ctx context.Context, userID string, status model.TokenStatus) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE connections SET token_status = ?, updated_at = ? WHERE user_id = ?`,
		string(status), time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating token status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("connection", userID)
	}

	return nil
}

// ReplaceAdAccounts swaps the user's whole linked-account set inside a single
// transaction. Either every old row is gone and every new row is in, or the
// database is untouched; a half-replaced set must never be observable.
func (db *DB) ReplaceAdAccounts(ctx context.Context, userID string, accounts []model.AdAccount) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback() // no-op if we commit

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ad_accounts WHERE user_id = ?`, userID,
	); err != nil {
		return fmt.Errorf("sqlite: deleting ad accounts: %w", err)
	}

	now := time.Now()
	for _, account := range accounts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ad_accounts (id, user_id, account_id, account_name, currency, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			xid.New().String(), userID, account.AccountID, account.Name, account.Currency, now, now,
		); err != nil {
			return fmt.Errorf("sqlite: inserting ad account %s: %w", account.AccountID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing ad account replacement: %w", err)
	}

	return nil
}

// AdAccountsPage returns one zero-indexed page of the user's linked accounts
// ordered by name ascending, plus the total count. The deterministic order is
// what makes the picker's page numbers stable between taps.
func (db *DB) AdAccountsPage(ctx context.Context, userID string, page, pageSize int) ([]model.AdAccount, int, error) {
	var total int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ad_accounts WHERE user_id = ?`, userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting ad accounts: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, account_id, account_name, currency, created_at, updated_at
		 FROM ad_accounts
		 WHERE user_id = ?
		 ORDER BY account_name ASC
		 LIMIT ? OFFSET ?`,
		userID, pageSize, page*pageSize,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing ad accounts: %w", err)
	}
	defer rows.Close()

	items := make([]model.AdAccount, 0, pageSize)
	for rows.Next() {
		var a model.AdAccount
		if err := rows.Scan(&a.ID, &a.UserID, &a.AccountID, &a.Name, &a.Currency, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning ad account: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating ad accounts: %w", err)
	}

	return items, total, nil
}

// AdAccount looks up a single linked account by its external ID.
func (db *DB) AdAccount(ctx context.Context, userID, accountID string) (*model.AdAccount, error) {
	var a model.AdAccount
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, account_id, account_name, currency, created_at, updated_at
		 FROM ad_accounts
		 WHERE user_id = ? AND account_id = ?`,
		userID, accountID,
	).Scan(&a.ID, &a.UserID, &a.AccountID, &a.Name, &a.Currency, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("ad account", accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting ad account: %w", err)
	}

	return &a, nil
}

// UserState returns the user's session selections. A user without a stored
// row gets an empty state; absence is not an error here, unlike connections.
func (db *DB) UserState(ctx context.Context, userID string) (*model.UserState, error) {
	var (
		state     model.UserState
		accountID sql.NullString
		periodRaw sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id, selected_account_id, selected_period, updated_at
		 FROM user_state
		 WHERE user_id = ?`,
		userID,
	).Scan(&state.UserID, &accountID, &periodRaw, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.UserState{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user state: %w", err)
	}

	if accountID.Valid {
		state.SelectedAccountID = &accountID.String
	}
	if periodRaw.Valid {
		var p model.Period
		if err := json.Unmarshal([]byte(periodRaw.String), &p); err != nil {
			return nil, fmt.Errorf("sqlite: decoding stored period: %w", err)
		}
		state.SelectedPeriod = &p
	}

	return &state, nil
}

// SetUserState merges a patch into the stored state. The read-merge-write
// runs inside a transaction so overlapping patches from the same user cannot
// interleave between the read and the write.
func (db *DB) SetUserState(ctx context.Context, userID string, patch repository.StatePatch) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		currentAccount sql.NullString
		currentPeriod  sql.NullString
	)
	err = tx.QueryRowContext(ctx,
		`SELECT selected_account_id, selected_period FROM user_state WHERE user_id = ?`,
		userID,
	).Scan(&currentAccount, &currentPeriod)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: reading user state: %w", err)
	}

	nextAccount := currentAccount
	switch {
	case patch.ClearAccountID:
		nextAccount = sql.NullString{}
	case patch.SelectedAccountID != nil:
		nextAccount = sql.NullString{String: *patch.SelectedAccountID, Valid: true}
	}

	nextPeriod := currentPeriod
	switch {
	case patch.ClearPeriod:
		nextPeriod = sql.NullString{}
	case patch.SelectedPeriod != nil:
		encoded, err := json.Marshal(patch.SelectedPeriod)
		if err != nil {
			return fmt.Errorf("sqlite: encoding period: %w", err)
		}
		nextPeriod = sql.NullString{String: string(encoded), Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_state (user_id, selected_account_id, selected_period, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   selected_account_id = excluded.selected_account_id,
		   selected_period     = excluded.selected_period,
		   updated_at          = excluded.updated_at`,
		userID, nextAccount, nextPeriod, time.Now(),
	); err != nil {
		return fmt.Errorf("sqlite: writing user state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing user state: %w", err)
	}

	return nil
}
