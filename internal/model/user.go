// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a chat user known to the bot.
//
// Telegram is the identity provider, so the external identifier is the
// Telegram user ID (an integer). We still generate our own internal string
// ID (xid) for consistency with AdAccount and to avoid tying our primary
// keys to a third-party's numbering scheme. The UNIQUE constraint on
// telegram_id in the DB ensures one Telegram account maps to exactly one row.
type User struct {
	ID         string    `json:"id"         db:"id"`
	TelegramID int64     `json:"telegramId" db:"telegram_id"` // Telegram's numeric user ID
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
}

// TokenStatus tracks whether the stored Meta API token is currently usable.
// A report may only be attempted while the status is TokenValid.
type TokenStatus string

const (
	TokenValid   TokenStatus = "valid"
	TokenInvalid TokenStatus = "invalid"
)

// Connection is the per-user credential link: at most one per user.
//
// EncryptedToken holds the protected form of the Meta API token. Even a
// token the remote API rejected is persisted (with TokenInvalid): it
// records the last attempt rather than leaving the store untouched.
type Connection struct {
	UserID         string      `json:"userId"         db:"user_id"`
	EncryptedToken string      `json:"encryptedToken" db:"encrypted_token"`
	Status         TokenStatus `json:"status"         db:"token_status"`
	UpdatedAt      time.Time   `json:"updatedAt"      db:"updated_at"`
}
