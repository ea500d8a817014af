// Package repository defines the storage interfaces the session layer
// depends on. The concrete SQLite implementation lives in repository/sqlite;
// tests substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/vladkruhlyk/git-bot.statistic/internal/model"
)

// StatePatch is a partial update of a user's durable session state.
//
// Go has no undefined/null distinction, so each field carries an explicit
// tri-state: nil pointer and false flag = leave as stored, non-nil pointer =
// overwrite, clear flag = set to NULL. A field omitted from a patch never
// reverts to a default, only keeps its prior stored value.
type StatePatch struct {
	SelectedAccountID *string
	ClearAccountID    bool
	SelectedPeriod    *model.Period
	ClearPeriod       bool
}

// Store is the durable per-user state: credential link, linked ad accounts
// and session selections.
type Store interface {
	// UpsertUser returns the internal user ID for a Telegram identity,
	// creating the row on first contact. Users are never deleted.
	UpsertUser(ctx context.Context, telegramID int64) (string, error)

	// GetConnection returns the user's credential link, or an error wrapping
	// apperror.ErrNotFound when none was ever stored.
	GetConnection(ctx context.Context, userID string) (*model.Connection, error)

	// SaveConnection creates or overwrites the user's credential link.
	SaveConnection(ctx context.Context, userID, encryptedToken string, status model.TokenStatus) error

	// SetTokenStatus flips only the validity flag of an existing link.
	SetTokenStatus(ctx context.Context, userID string, status model.TokenStatus) error

	// ReplaceAdAccounts atomically swaps the user's whole linked-account set.
	// Partial replacement must never be observable.
	ReplaceAdAccounts(ctx context.Context, userID string, accounts []model.AdAccount) error

	// AdAccountsPage returns one zero-indexed page ordered by account name
	// ascending, plus the total count across all pages.
	AdAccountsPage(ctx context.Context, userID string, page, pageSize int) ([]model.AdAccount, int, error)

	// AdAccount looks up a single linked account; wraps apperror.ErrNotFound
	// when it is no longer linked (e.g. the token was rotated).
	AdAccount(ctx context.Context, userID, accountID string) (*model.AdAccount, error)

	// UserState returns the user's session selections. A user with no stored
	// row gets an empty state, not an error.
	UserState(ctx context.Context, userID string) (*model.UserState, error)

	// SetUserState merges a patch into the stored state.
	SetUserState(ctx context.Context, userID string, patch StatePatch) error
}
