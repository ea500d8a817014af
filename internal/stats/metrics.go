// Package stats maps a raw Meta insights row into the metrics the report
// shows. It is pure: no I/O, no state.
package stats

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladkruhlyk/git-bot.statistic/internal/meta"
)

// Meta reports the same conversion under several action types depending on
// where the pixel fired. Each list is ordered: the first type with a
// positive value wins, so an account tracking both "lead" and the pixel
// variant is not double counted.
var leadActionTypes = []string{
	"lead",
	"onsite_conversion.lead_grouped",
	"offsite_conversion.fb_pixel_lead",
	"omni_lead",
	"onsite_web_lead",
	"qualified_lead",
}

var purchaseActionTypes = []string{
	"purchase",
	"omni_purchase",
	"offsite_conversion.fb_pixel_purchase",
	"onsite_conversion.purchase",
	"web_purchase",
}

// Metrics is the fully derived report payload.
//
// All values are decimals because the API delivers decimal strings and the
// derived ratios are money; float64 would introduce rounding artifacts in
// exactly the numbers users squint at. The three ratio fields are nil when
// their denominator is not positive ("no leads yet" is not a zero cost).
type Metrics struct {
	Spend           decimal.Decimal
	Reach           decimal.Decimal
	Impressions     decimal.Decimal
	Frequency       decimal.Decimal
	Clicks          decimal.Decimal
	CTR             decimal.Decimal
	CPC             decimal.Decimal
	Leads           decimal.Decimal
	CostPerLead     *decimal.Decimal
	Purchases       decimal.Decimal
	CostPerPurchase *decimal.Decimal
	ROAS            *decimal.Decimal
	PurchaseValue   decimal.Decimal
}

// FromInsights derives the report metrics from one insights row.
func FromInsights(row meta.InsightsRow) Metrics {
	spend := parseDecimal(row.Spend)
	leads := pickActionValue(row.Actions, leadActionTypes)
	purchases := pickActionValue(row.Actions, purchaseActionTypes)
	purchaseValue := pickActionValue(row.ActionValues, purchaseActionTypes)

	return Metrics{
		Spend:           spend,
		Reach:           parseDecimal(row.Reach),
		Impressions:     parseDecimal(row.Impressions),
		Frequency:       parseDecimal(row.Frequency),
		Clicks:          parseDecimal(row.Clicks),
		CTR:             parseDecimal(row.CTR),
		CPC:             parseDecimal(row.CPC),
		Leads:           leads,
		CostPerLead:     safeDivide(spend, leads),
		Purchases:       purchases,
		CostPerPurchase: safeDivide(spend, purchases),
		ROAS:            safeDivide(purchaseValue, spend),
		PurchaseValue:   purchaseValue,
	}
}

// parseDecimal reads a decimal string, treating absent or malformed values
// as zero; an account with no delivery simply omits fields.
func parseDecimal(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// safeDivide returns numerator/denominator, or nil when the denominator is
// not positive.
func safeDivide(numerator, denominator decimal.Decimal) *decimal.Decimal {
	if denominator.Sign() <= 0 {
		return nil
	}
	q := numerator.Div(denominator)
	return &q
}

// sumByActionType adds up every action entry matching the given type,
// case-insensitively.
func sumByActionType(actions []meta.Action, actionType string) decimal.Decimal {
	total := decimal.Zero
	for _, action := range actions {
		if strings.EqualFold(action.ActionType, actionType) {
			total = total.Add(parseDecimal(action.Value))
		}
	}
	return total
}

// pickActionValue walks the priority list and returns the first action type
// with a positive sum.
func pickActionValue(actions []meta.Action, priorities []string) decimal.Decimal {
	if len(actions) == 0 {
		return decimal.Zero
	}
	for _, actionType := range priorities {
		if value := sumByActionType(actions, actionType); value.Sign() > 0 {
			return value
		}
	}
	return decimal.Zero
}
