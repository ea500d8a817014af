package format

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladkruhlyk/git-bot.statistic/internal/meta"
	"github.com/vladkruhlyk/git-bot.statistic/internal/model"
	"github.com/vladkruhlyk/git-bot.statistic/internal/stats"
)

func TestPeriodLabel(t *testing.T) {
	tests := []struct {
		period model.Period
		want   string
	}{
		{
			period: model.Period{Kind: model.PeriodToday, Since: "2024-06-10", Until: "2024-06-10"},
			want:   "Today (2024-06-10 - 2024-06-10)",
		},
		{
			period: model.Period{Kind: model.PeriodLast7Days, Since: "2024-06-04", Until: "2024-06-10"},
			want:   "Last 7 days (2024-06-04 - 2024-06-10)",
		},
		{
			period: model.Period{Kind: model.PeriodCustom, Since: "2024-01-05", Until: "2024-01-10"},
			want:   "Custom (2024-01-05 - 2024-01-10)",
		},
	}

	for _, tt := range tests {
		if got := PeriodLabel(tt.period); got != tt.want {
			t.Errorf("PeriodLabel(%v) = %q, want %q", tt.period.Kind, got, tt.want)
		}
	}
}

func TestMoney(t *testing.T) {
	v := decimal.RequireFromString("10.5")
	if got := Money(v, "USD"); got != "10.50 USD" {
		t.Errorf("Money() = %q, want %q", got, "10.50 USD")
	}
	if got := Money(v, ""); got != "10.50" {
		t.Errorf("Money() without currency = %q, want %q", got, "10.50")
	}
}

func TestRatio_NilIsDash(t *testing.T) {
	if got := Ratio(nil); got != "-" {
		t.Errorf("Ratio(nil) = %q, want %q", got, "-")
	}
	v := decimal.RequireFromString("4")
	if got := Ratio(&v); got != "4.00" {
		t.Errorf("Ratio(4) = %q, want %q", got, "4.00")
	}
}

func TestReport_ContainsKeyFields(t *testing.T) {
	account := model.AdAccount{AccountID: "123", Name: "My Shop", Currency: "USD"}
	p := model.Period{Kind: model.PeriodYesterday, Since: "2024-06-09", Until: "2024-06-09"}
	m := stats.FromInsights(meta.InsightsRow{
		Spend:  "50.00",
		Clicks: "25",
		Actions: []meta.Action{
			{ActionType: "lead", Value: "5"},
		},
	})

	text := Report(account, p, m)

	for _, want := range []string{
		"My Shop",
		"ID: 123",
		"Yesterday (2024-06-09 - 2024-06-09)",
		"Spend: 50.00 USD",
		"Clicks: 25",
		"Leads: 5",
		"Cost per lead: 10.00 USD",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Report() missing %q\n%s", want, text)
		}
	}

	// No purchases tracked: ROAS and cost per purchase render as dashes.
	if !strings.Contains(text, "ROAS: -") {
		t.Errorf("Report() should render ROAS as dash\n%s", text)
	}
	if !strings.Contains(text, "Cost per purchase: -") {
		t.Errorf("Report() should render cost per purchase as dash\n%s", text)
	}
}
