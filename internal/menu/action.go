// Package menu defines the inline-keyboard structures the session engine
// emits and the action-token vocabulary it consumes. The Telegram transport
// maps these onto tgbotapi types; tests work with them directly.
package menu

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vladkruhlyk/git-bot.statistic/internal/apperror"
	"github.com/vladkruhlyk/git-bot.statistic/internal/model"
)

// Kind enumerates the fixed action vocabulary carried in callback data.
type Kind string

const (
	KindNoop         Kind = "noop"
	KindConnectToken Kind = "connect_token"
	KindAccountMenu  Kind = "account_menu"
	KindPeriodMenu   Kind = "period_menu"
	KindRefresh      Kind = "refresh"
	KindAccountPage  Kind = "acc_page"   // carries Page
	KindPickAccount  Kind = "acc_select" // carries AccountID
	KindPickPeriod   Kind = "period"     // carries Period
)

// Action is one decoded menu action. Only the field matching the Kind is
// meaningful.
type Action struct {
	Kind      Kind
	Page      int
	AccountID string
	Period    model.PeriodKind
}

// Token encodes the action as callback data. Telegram caps callback data at
// 64 bytes, which every token in this vocabulary fits comfortably.
func (a Action) Token() string {
	switch a.Kind {
	case KindAccountPage:
		return fmt.Sprintf("%s:%d", KindAccountPage, a.Page)
	case KindPickAccount:
		return fmt.Sprintf("%s:%s", KindPickAccount, a.AccountID)
	case KindPickPeriod:
		return fmt.Sprintf("%s:%s", KindPickPeriod, a.Period)
	default:
		return string(a.Kind)
	}
}

// ParseAction decodes callback data back into an Action. Data outside the
// vocabulary is a validation error; old messages may carry tokens from a
// previous build, and the caller ignores those rather than crashing.
func ParseAction(data string) (Action, error) {
	switch Kind(data) {
	case KindNoop, KindConnectToken, KindAccountMenu, KindPeriodMenu, KindRefresh:
		return Action{Kind: Kind(data)}, nil
	}

	prefix, arg, found := strings.Cut(data, ":")
	if !found {
		return Action{}, apperror.ValidationFailed("action", fmt.Sprintf("unknown action token %q", data))
	}

	switch Kind(prefix) {
	case KindAccountPage:
		page, err := strconv.Atoi(arg)
		if err != nil || page < 0 {
			return Action{}, apperror.ValidationFailed("action", fmt.Sprintf("bad page in action token %q", data))
		}
		return Action{Kind: KindAccountPage, Page: page}, nil
	case KindPickAccount:
		if arg == "" {
			return Action{}, apperror.ValidationFailed("action", "empty account id in action token")
		}
		return Action{Kind: KindPickAccount, AccountID: arg}, nil
	case KindPickPeriod:
		switch kind := model.PeriodKind(arg); kind {
		case model.PeriodToday, model.PeriodYesterday, model.PeriodLast7Days, model.PeriodLast30Days, model.PeriodCustom:
			return Action{Kind: KindPickPeriod, Period: kind}, nil
		}
		return Action{}, apperror.ValidationFailed("action", fmt.Sprintf("unknown period kind in action token %q", data))
	}

	return Action{}, apperror.ValidationFailed("action", fmt.Sprintf("unknown action token %q", data))
}
