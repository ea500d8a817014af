package model

import "time"

// AdAccount is one advertising account the user's token can see.
//
// AccountID is Meta's external identifier (the numeric part, without the
// "act_" prefix where the API provides it separately). The (UserID,
// AccountID) pair is unique; the whole set is replaced wholesale whenever
// a token is (re)validated, so stale accounts never linger after a rotation.
type AdAccount struct {
	ID        string    `json:"id"        db:"id"`
	UserID    string    `json:"userId"    db:"user_id"`
	AccountID string    `json:"accountId" db:"account_id"`
	Name      string    `json:"name"      db:"account_name"`
	Currency  string    `json:"currency"  db:"currency"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
