package menu

import (
	"fmt"

	"github.com/vladkruhlyk/git-bot.statistic/internal/format"
	"github.com/vladkruhlyk/git-bot.statistic/internal/model"
)

// Button is one inline-keyboard button.
type Button struct {
	Label  string
	Action Action
}

// Menu is a structured inline keyboard: rows of buttons.
type Menu struct {
	Rows [][]Button
}

// ConnectToken is the single-button keyboard offering to link a token.
func ConnectToken() Menu {
	return Menu{Rows: [][]Button{{
		{Label: "🔐 Connect Meta token", Action: Action{Kind: KindConnectToken}},
	}}}
}

// AccountPicker builds the paged account keyboard: one row per account on
// the current page, a pager row only when more than one page exists, and a
// trailing row jumping to period selection.
//
// Pager rules: "previous" only off page 0, "next" only off the last page,
// and a non-interactive page indicator always in between.
func AccountPicker(items []model.AdAccount, page, pageSize, total int) Menu {
	rows := make([][]Button, 0, len(items)+2)
	for _, account := range items {
		rows = append(rows, []Button{{
			Label:  account.Name,
			Action: Action{Kind: KindPickAccount, AccountID: account.AccountID},
		}})
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages > 1 {
		pager := make([]Button, 0, 3)
		if page > 0 {
			pager = append(pager, Button{Label: "⬅️", Action: Action{Kind: KindAccountPage, Page: page - 1}})
		}
		pager = append(pager, Button{
			Label:  fmt.Sprintf("%d/%d", page+1, totalPages),
			Action: Action{Kind: KindNoop},
		})
		if page < totalPages-1 {
			pager = append(pager, Button{Label: "➡️", Action: Action{Kind: KindAccountPage, Page: page + 1}})
		}
		rows = append(rows, pager)
	}

	rows = append(rows, []Button{{Label: "🗓 Choose period", Action: Action{Kind: KindPeriodMenu}}})

	return Menu{Rows: rows}
}

// PeriodPicker builds the period keyboard, marking the currently selected
// kind with a check mark.
func PeriodPicker(current *model.Period) Menu {
	kinds := []model.PeriodKind{
		model.PeriodToday,
		model.PeriodYesterday,
		model.PeriodLast7Days,
		model.PeriodLast30Days,
		model.PeriodCustom,
	}

	rows := make([][]Button, 0, len(kinds))
	for _, kind := range kinds {
		label := format.PeriodName(kind)
		if current != nil && current.Kind == kind {
			label = "✅ " + label
		}
		rows = append(rows, []Button{{
			Label:  label,
			Action: Action{Kind: KindPickPeriod, Period: kind},
		}})
	}

	return Menu{Rows: rows}
}

// StatsActions is the keyboard attached under a delivered report.
func StatsActions() Menu {
	return Menu{Rows: [][]Button{
		{{Label: "🏢 Change account", Action: Action{Kind: KindAccountMenu}}},
		{{Label: "🗓 Change period", Action: Action{Kind: KindPeriodMenu}}},
		{{Label: "🔄 Refresh", Action: Action{Kind: KindRefresh}}},
	}}
}
