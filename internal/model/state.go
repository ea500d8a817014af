package model

import "time"

// PeriodKind enumerates the reporting periods the bot offers.
type PeriodKind string

const (
	PeriodToday      PeriodKind = "today"
	PeriodYesterday  PeriodKind = "yesterday"
	PeriodLast7Days  PeriodKind = "last_7_days"
	PeriodLast30Days PeriodKind = "last_30_days"
	PeriodCustom     PeriodKind = "custom"
)

// Period is a closed date range. Since and Until are ISO dates (YYYY-MM-DD),
// both inclusive; the Meta insights API takes them as calendar days, so we
// never carry a time-of-day component.
type Period struct {
	Kind  PeriodKind `json:"kind"`
	Since string     `json:"since"`
	Until string     `json:"until"`
}

// UserState is the durable part of a user's session: which ad account and
// which period they currently have selected. Either field may be nil
// (nothing selected yet, or explicitly cleared) independently of the other.
type UserState struct {
	UserID            string    `json:"userId"`
	SelectedAccountID *string   `json:"selectedAccountId"`
	SelectedPeriod    *Period   `json:"selectedPeriod"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
