// Package format renders report text. Pure functions over the metrics
// struct and the user's selections; no Telegram types leak in here.
package format

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladkruhlyk/git-bot.statistic/internal/model"
	"github.com/vladkruhlyk/git-bot.statistic/internal/stats"
)

var periodNames = map[model.PeriodKind]string{
	model.PeriodToday:      "Today",
	model.PeriodYesterday:  "Yesterday",
	model.PeriodLast7Days:  "Last 7 days",
	model.PeriodLast30Days: "Last 30 days",
	model.PeriodCustom:     "Custom",
}

// PeriodName returns the display name of a period kind.
func PeriodName(kind model.PeriodKind) string {
	if name, ok := periodNames[kind]; ok {
		return name
	}
	return string(kind)
}

// PeriodLabel renders a period with its date bounds, e.g.
// "Last 7 days (2024-06-04 - 2024-06-10)".
func PeriodLabel(p model.Period) string {
	return fmt.Sprintf("%s (%s - %s)", PeriodName(p.Kind), p.Since, p.Until)
}

// Money renders a monetary amount with two decimal places and the account
// currency code.
func Money(value decimal.Decimal, currency string) string {
	if currency == "" {
		return value.StringFixed(2)
	}
	return value.StringFixed(2) + " " + currency
}

// Count renders a whole-number metric without decimals.
func Count(value decimal.Decimal) string {
	return value.Round(0).String()
}

// Ratio renders a dimensionless metric with two decimals, "-" when nil.
func Ratio(value *decimal.Decimal) string {
	if value == nil {
		return "-"
	}
	return value.StringFixed(2)
}

// maybeMoney renders an optional monetary amount, "-" when nil.
func maybeMoney(value *decimal.Decimal, currency string) string {
	if value == nil {
		return "-"
	}
	return Money(*value, currency)
}

// Report renders the full statistics message for one account and period.
func Report(account model.AdAccount, p model.Period, m stats.Metrics) string {
	lines := []string{
		"📊 Meta Ads statistics",
		"",
		"━━━━━━━━━━━━━━",
		fmt.Sprintf("🏢 Account: %s", account.Name),
		fmt.Sprintf("🆔 ID: %s", account.AccountID),
		fmt.Sprintf("🗓 Period: %s", PeriodLabel(p)),
		"━━━━━━━━━━━━━━",
		"",
		fmt.Sprintf("💸 Spend: %s", Money(m.Spend, account.Currency)),
		fmt.Sprintf("👥 Reach: %s", Count(m.Reach)),
		fmt.Sprintf("📺 Impressions: %s", Count(m.Impressions)),
		fmt.Sprintf("🔁 Frequency: %s", m.Frequency.StringFixed(2)),
		fmt.Sprintf("🖱 Clicks: %s", Count(m.Clicks)),
		fmt.Sprintf("📈 CTR: %s%%", m.CTR.StringFixed(2)),
		fmt.Sprintf("💵 CPC: %s", Money(m.CPC, account.Currency)),
		fmt.Sprintf("🧲 Leads: %s", Count(m.Leads)),
		fmt.Sprintf("🧾 Cost per lead: %s", maybeMoney(m.CostPerLead, account.Currency)),
		fmt.Sprintf("🛒 Purchases: %s", Count(m.Purchases)),
		fmt.Sprintf("💰 Cost per purchase: %s", maybeMoney(m.CostPerPurchase, account.Currency)),
		fmt.Sprintf("🚀 ROAS: %s", Ratio(m.ROAS)),
		fmt.Sprintf("🏦 Purchase value: %s", Money(m.PurchaseValue, account.Currency)),
	}

	return strings.Join(lines, "\n")
}
