// Package period computes the date ranges offered by the period menu and
// parses free-text custom ranges.
package period

import (
	"strings"
	"time"

	"github.com/vladkruhlyk/git-bot.statistic/internal/apperror"
	"github.com/vladkruhlyk/git-bot.statistic/internal/model"
)

// DateLayout is the ISO date format used everywhere a period crosses a
// boundary: user input, storage, and the Meta API time_range parameter.
const DateLayout = "2006-01-02"

// Build computes the closed date range for a fixed period kind, anchored at
// now in the server's local date. Ranges are inclusive on both ends:
// last_7_days is 6 days back through today, i.e. 7 calendar days.
//
// PeriodCustom has no computable range; any unknown kind falls through to
// last_30_days, mirroring the exhaustive-else of the menu it backs.
func Build(kind model.PeriodKind, now time.Time) model.Period {
	day := func(t time.Time) string { return t.Format(DateLayout) }

	switch kind {
	case model.PeriodToday:
		d := day(now)
		return model.Period{Kind: kind, Since: d, Until: d}
	case model.PeriodYesterday:
		d := day(now.AddDate(0, 0, -1))
		return model.Period{Kind: kind, Since: d, Until: d}
	case model.PeriodLast7Days:
		return model.Period{Kind: kind, Since: day(now.AddDate(0, 0, -6)), Until: day(now)}
	default:
		return model.Period{Kind: model.PeriodLast30Days, Since: day(now.AddDate(0, 0, -29)), Until: day(now)}
	}
}

// ParseCustom parses a free-text custom period: two ISO dates separated by
// whitespace, start not after end.
//
// A failed parse is a validation error, not a state change; the caller
// leaves the user's pending mode untouched so they can retry indefinitely.
func ParseCustom(input string) (model.Period, error) {
	parts := strings.Fields(strings.TrimSpace(input))
	if len(parts) != 2 {
		return model.Period{}, apperror.ValidationFailed("period", "expected exactly two dates: YYYY-MM-DD YYYY-MM-DD")
	}

	since, err := time.Parse(DateLayout, parts[0])
	if err != nil {
		return model.Period{}, apperror.ValidationFailed("period", "start date is not a valid YYYY-MM-DD date")
	}
	until, err := time.Parse(DateLayout, parts[1])
	if err != nil {
		return model.Period{}, apperror.ValidationFailed("period", "end date is not a valid YYYY-MM-DD date")
	}

	if since.After(until) {
		return model.Period{}, apperror.ValidationFailed("period", "start date must not be after end date")
	}

	return model.Period{Kind: model.PeriodCustom, Since: parts[0], Until: parts[1]}, nil
}
