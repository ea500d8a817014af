// Package session is the conversation state machine. It interprets inbound
// chat events against the user's pending-input mode and stored session,
// drives the token lifecycle (store → validate → invalidate → re-prompt),
// and emits outbound instructions for the transport to deliver.
//
// Failure policy: nothing here is fatal to the process. Every handler
// swallows its internal failures into a single user-visible message; a
// token-rejection (or an unrecoverable stored secret) is the only failure
// that mutates state, and it mutates exactly the validity flag.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vladkruhlyk/git-bot.statistic/internal/apperror"
	"github.com/vladkruhlyk/git-bot.statistic/internal/format"
	"github.com/vladkruhlyk/git-bot.statistic/internal/menu"
	"github.com/vladkruhlyk/git-bot.statistic/internal/meta"
	"github.com/vladkruhlyk/git-bot.statistic/internal/model"
	"github.com/vladkruhlyk/git-bot.statistic/internal/period"
	"github.com/vladkruhlyk/git-bot.statistic/internal/repository"
	"github.com/vladkruhlyk/git-bot.statistic/internal/secret"
	"github.com/vladkruhlyk/git-bot.statistic/internal/stats"
)

// PageSize is how many ad accounts the picker shows per page.
const PageSize = 8

// User-facing messages. The transport sends them verbatim.
const (
	msgWelcome          = "Hi! This is the Meta Ads statistics bot. Press the button below to connect your Meta API token."
	msgAlreadyConnected = "You are already connected. Choose an action:"
	msgPromptToken      = "Send your Meta API token in this chat. It is stored encrypted on the server."
	msgPromptTokenAgain = "Your token expired or is invalid. Send a new Meta API token in this chat."
	msgTokenConnected   = "Token connected. Now choose an ad account."
	msgTokenRejected    = "The token failed validation. Check it and send it again."
	msgTokenTransient   = "Could not validate the token due to a temporary error. Please try again."
	msgConnectFirst     = "Connect a valid token first."
	msgChooseAccount    = "Choose an ad account:"
	msgNoAccounts       = "No ad accounts are available for this token. Check the token permissions."
	msgChoosePeriod     = "Choose a period:"
	msgAccountGone      = "The selected account no longer exists. Pick an account again."
	msgStatsFailed      = "Could not fetch statistics from the Meta API. Try again later or refresh your token."
	msgCustomPrompt     = "Send a custom period as: YYYY-MM-DD YYYY-MM-DD"
	msgCustomInvalid    = "Invalid format. Send the period as: YYYY-MM-DD YYYY-MM-DD"
	msgSomethingBroke   = "Something went wrong. Please try again."
)

// AdsAPI is the slice of the Meta client the engine needs. Defined here so
// tests can substitute a fake without an HTTP server.
type AdsAPI interface {
	ListAdAccounts(ctx context.Context, token string) ([]meta.AdAccount, error)
	AccountInsights(ctx context.Context, token, accountID, since, until string) (meta.InsightsRow, error)
}

// Engine drives the per-user session state machine.
type Engine struct {
	store   repository.Store
	api     AdsAPI
	secrets *secret.Cipher
	logger  *slog.Logger
	pending *pendingModes
	now     func() time.Time
}

// New creates an Engine.
func New(store repository.Store, api AdsAPI, secrets *secret.Cipher, logger *slog.Logger) *Engine {
	return &Engine{
		store:   store,
		api:     api,
		secrets: secrets,
		logger:  logger,
		pending: newPendingModes(),
		now:     time.Now,
	}
}

// HandleStart handles /start: a greeting with the connect button, or the
// action menu when a valid token is already linked.
func (e *Engine) HandleStart(ctx context.Context, telegramID int64) []Outbound {
	userID, ok := e.userID(ctx, telegramID)
	if !ok {
		return []Outbound{reply(msgSomethingBroke)}
	}

	conn, err := e.store.GetConnection(ctx, userID)
	if err != nil || conn.Status != model.TokenValid {
		if err != nil && !errors.Is(err, apperror.ErrNotFound) {
			e.logger.Error("loading connection", slog.String("user", userID), slog.String("error", err.Error()))
			return []Outbound{reply(msgSomethingBroke)}
		}
		// No usable token yet: await one. The user can paste the token
		// directly or press the button first, both land in the same mode.
		e.pending.set(telegramID, modeAwaitToken)
		return []Outbound{replyMenu(msgWelcome, menu.ConnectToken())}
	}

	return []Outbound{replyMenu(msgAlreadyConnected, menu.StatsActions())}
}

// HandleText handles a free-text message. Text arriving while no input is
// awaited is deliberately ignored; idle users paste things all the time.
func (e *Engine) HandleText(ctx context.Context, telegramID int64, text string) []Outbound {
	userID, ok := e.userID(ctx, telegramID)
	if !ok {
		return []Outbound{reply(msgSomethingBroke)}
	}

	text = strings.TrimSpace(text)

	switch e.pending.get(telegramID) {
	case modeAwaitToken:
		// Clear the mode before the (slow) validation call so an overlapping
		// duplicate submission from the same user is evaluated as a plain
		// mode-less message and ignored, not double-consumed.
		e.pending.clear(telegramID)
		return e.processToken(ctx, telegramID, userID, text)

	case modeAwaitCustomPeriod:
		p, err := period.ParseCustom(text)
		if err != nil {
			// Invalid input: no state change, mode stays armed, user retries.
			return []Outbound{reply(msgCustomInvalid)}
		}
		e.pending.clear(telegramID)
		if err := e.store.SetUserState(ctx, userID, repository.StatePatch{SelectedPeriod: &p}); err != nil {
			e.logger.Error("saving custom period", slog.String("user", userID), slog.String("error", err.Error()))
			return []Outbound{reply(msgSomethingBroke)}
		}
		return e.report(ctx, telegramID, userID)
	}

	return nil
}

// HandleMenuAction handles a tapped inline-keyboard button.
func (e *Engine) HandleMenuAction(ctx context.Context, telegramID int64, token string) []Outbound {
	action, err := menu.ParseAction(token)
	if err != nil {
		// Stale messages can carry tokens from an older build; ignore them.
		e.logger.Debug("ignoring unknown action token", slog.String("token", token))
		return nil
	}

	if action.Kind == menu.KindNoop {
		return nil
	}

	userID, ok := e.userID(ctx, telegramID)
	if !ok {
		return []Outbound{reply(msgSomethingBroke)}
	}

	switch action.Kind {
	case menu.KindConnectToken:
		return []Outbound{e.promptToken(telegramID, false)}

	case menu.KindAccountMenu:
		return e.accountMenu(ctx, userID, 0, true)

	case menu.KindPeriodMenu:
		return e.periodMenu(ctx, userID, true)

	case menu.KindRefresh:
		return e.report(ctx, telegramID, userID)

	case menu.KindAccountPage:
		return e.accountMenu(ctx, userID, action.Page, true)

	case menu.KindPickAccount:
		patch := repository.StatePatch{SelectedAccountID: &action.AccountID}
		if err := e.store.SetUserState(ctx, userID, patch); err != nil {
			e.logger.Error("saving account selection", slog.String("user", userID), slog.String("error", err.Error()))
			return []Outbound{reply(msgSomethingBroke)}
		}
		// Selecting an account always goes through period confirmation; the
		// report is never shown off a bare account pick.
		return e.periodMenu(ctx, userID, true)

	case menu.KindPickPeriod:
		if action.Period == model.PeriodCustom {
			e.pending.set(telegramID, modeAwaitCustomPeriod)
			return []Outbound{reply(msgCustomPrompt)}
		}
		p := period.Build(action.Period, e.now())
		if err := e.store.SetUserState(ctx, userID, repository.StatePatch{SelectedPeriod: &p}); err != nil {
			e.logger.Error("saving period selection", slog.String("user", userID), slog.String("error", err.Error()))
			return []Outbound{reply(msgSomethingBroke)}
		}
		return e.report(ctx, telegramID, userID)
	}

	return nil
}

// AbortPending clears a user's pending mode. The transport's last-resort
// recovery calls this so a crashed handler never leaves a user stuck
// awaiting input that will never be consumed.
func (e *Engine) AbortPending(telegramID int64) {
	e.pending.clear(telegramID)
}

// userID resolves (and on first contact creates) the internal user ID.
func (e *Engine) userID(ctx context.Context, telegramID int64) (string, bool) {
	id, err := e.store.UpsertUser(ctx, telegramID)
	if err != nil {
		e.logger.Error("upserting user", slog.Int64("telegram_id", telegramID), slog.String("error", err.Error()))
		return "", false
	}
	return id, true
}

// promptToken arms the await-token mode and returns the prompt. The
// reconnect variant differs only in wording.
func (e *Engine) promptToken(telegramID int64, reconnect bool) Outbound {
	e.pending.set(telegramID, modeAwaitToken)
	if reconnect {
		return reply(msgPromptTokenAgain)
	}
	return reply(msgPromptToken)
}

// decryptedToken returns the plaintext token when a valid connection exists.
// An unrecoverable stored secret flips the connection to invalid, the same
// treatment as a remote rejection.
func (e *Engine) decryptedToken(ctx context.Context, userID string) (string, bool) {
	conn, err := e.store.GetConnection(ctx, userID)
	if err != nil || conn.Status != model.TokenValid {
		return "", false
	}

	token, err := e.secrets.Unprotect(conn.EncryptedToken)
	if err != nil {
		e.logger.Warn("stored token unrecoverable, invalidating",
			slog.String("user", userID),
			slog.String("error", err.Error()),
		)
		if err := e.store.SetTokenStatus(ctx, userID, model.TokenInvalid); err != nil {
			e.logger.Error("invalidating token", slog.String("user", userID), slog.String("error", err.Error()))
		}
		return "", false
	}

	return token, true
}

// accountMenu renders one page of the account picker.
func (e *Engine) accountMenu(ctx context.Context, userID string, page int, edit bool) []Outbound {
	items, total, err := e.store.AdAccountsPage(ctx, userID, page, PageSize)
	if err != nil {
		e.logger.Error("listing ad accounts", slog.String("user", userID), slog.String("error", err.Error()))
		return []Outbound{reply(msgSomethingBroke)}
	}

	if total == 0 {
		return []Outbound{reply(msgNoAccounts)}
	}

	picker := menu.AccountPicker(items, page, PageSize, total)
	if edit {
		return []Outbound{editMenu(msgChooseAccount, picker)}
	}
	return []Outbound{replyMenu(msgChooseAccount, picker)}
}

// periodMenu renders the period picker with the current selection marked.
func (e *Engine) periodMenu(ctx context.Context, userID string, edit bool) []Outbound {
	state, err := e.store.UserState(ctx, userID)
	if err != nil {
		e.logger.Error("loading user state", slog.String("user", userID), slog.String("error", err.Error()))
		return []Outbound{reply(msgSomethingBroke)}
	}

	picker := menu.PeriodPicker(state.SelectedPeriod)
	if edit {
		return []Outbound{editMenu(msgChoosePeriod, picker)}
	}
	return []Outbound{replyMenu(msgChoosePeriod, picker)}
}

// report runs the show-report algorithm: require a valid token, a selected
// account and a selected period, rendering the missing step's menu when one
// is absent, then fetch, map and format the statistics.
func (e *Engine) report(ctx context.Context, telegramID int64, userID string) []Outbound {
	token, ok := e.decryptedToken(ctx, userID)
	if !ok {
		return []Outbound{replyMenu(msgConnectFirst, menu.ConnectToken())}
	}

	state, err := e.store.UserState(ctx, userID)
	if err != nil {
		e.logger.Error("loading user state", slog.String("user", userID), slog.String("error", err.Error()))
		return []Outbound{reply(msgSomethingBroke)}
	}

	if state.SelectedAccountID == nil {
		return e.accountMenu(ctx, userID, 0, false)
	}
	if state.SelectedPeriod == nil {
		return e.periodMenu(ctx, userID, false)
	}

	account, err := e.store.AdAccount(ctx, userID, *state.SelectedAccountID)
	if errors.Is(err, apperror.ErrNotFound) {
		// Token rotation replaced the account set; the stale selection is
		// cleared and the user falls back to picking an account.
		if err := e.store.SetUserState(ctx, userID, repository.StatePatch{ClearAccountID: true}); err != nil {
			e.logger.Error("clearing stale account selection", slog.String("user", userID), slog.String("error", err.Error()))
		}
		out := []Outbound{reply(msgAccountGone)}
		return append(out, e.accountMenu(ctx, userID, 0, false)...)
	}
	if err != nil {
		e.logger.Error("loading ad account", slog.String("user", userID), slog.String("error", err.Error()))
		return []Outbound{reply(msgSomethingBroke)}
	}

	row, err := e.api.AccountInsights(ctx, token, account.AccountID, state.SelectedPeriod.Since, state.SelectedPeriod.Until)
	if err != nil {
		if errors.Is(err, apperror.ErrTokenRejected) {
			if err := e.store.SetTokenStatus(ctx, userID, model.TokenInvalid); err != nil {
				e.logger.Error("invalidating token", slog.String("user", userID), slog.String("error", err.Error()))
			}
			return []Outbound{e.promptToken(telegramID, true)}
		}
		e.logger.Warn("fetching insights failed",
			slog.String("user", userID),
			slog.String("account", account.AccountID),
			slog.String("error", err.Error()),
		)
		return []Outbound{reply(msgStatsFailed)}
	}

	metrics := stats.FromInsights(row)
	text := format.Report(*account, *state.SelectedPeriod, metrics)
	return []Outbound{replyMenu(text, menu.StatsActions())}
}

// processToken runs the credential-submission algorithm. Listing the ad
// accounts with the submitted token is the validation step; there is no
// separate validate call.
func (e *Engine) processToken(ctx context.Context, telegramID int64, userID, token string) []Outbound {
	accounts, err := e.api.ListAdAccounts(ctx, token)
	if err != nil {
		if errors.Is(err, apperror.ErrTokenRejected) {
			// The rejected token is still persisted (protected, marked
			// invalid) as a record of the last attempt, and the prompt is
			// re-armed so "send it again" works.
			protected, perr := e.secrets.Protect(token)
			if perr != nil {
				e.logger.Error("protecting rejected token", slog.String("user", userID), slog.String("error", perr.Error()))
				return []Outbound{reply(msgSomethingBroke)}
			}
			if serr := e.store.SaveConnection(ctx, userID, protected, model.TokenInvalid); serr != nil {
				e.logger.Error("saving rejected token", slog.String("user", userID), slog.String("error", serr.Error()))
				return []Outbound{reply(msgSomethingBroke)}
			}
			e.pending.set(telegramID, modeAwaitToken)
			return []Outbound{reply(msgTokenRejected)}
		}

		// Transient: stored state stays untouched, the user retries.
		e.logger.Warn("token validation failed transiently", slog.String("user", userID), slog.String("error", err.Error()))
		e.pending.set(telegramID, modeAwaitToken)
		return []Outbound{reply(msgTokenTransient)}
	}

	protected, err := e.secrets.Protect(token)
	if err != nil {
		e.logger.Error("protecting token", slog.String("user", userID), slog.String("error", err.Error()))
		return []Outbound{reply(msgSomethingBroke)}
	}

	if err := e.store.SaveConnection(ctx, userID, protected, model.TokenValid); err != nil {
		e.logger.Error("saving connection", slog.String("user", userID), slog.String("error", err.Error()))
		return []Outbound{reply(msgSomethingBroke)}
	}

	if err := e.store.ReplaceAdAccounts(ctx, userID, normalizeAccounts(userID, accounts)); err != nil {
		e.logger.Error("replacing ad accounts", slog.String("user", userID), slog.String("error", err.Error()))
		return []Outbound{reply(msgSomethingBroke)}
	}

	// Fresh link: default the period to today and drop any account selection
	// left over from a previous token.
	today := period.Build(model.PeriodToday, e.now())
	if err := e.store.SetUserState(ctx, userID, repository.StatePatch{
		SelectedPeriod: &today,
		ClearAccountID: true,
	}); err != nil {
		e.logger.Error("resetting user state", slog.String("user", userID), slog.String("error", err.Error()))
		return []Outbound{reply(msgSomethingBroke)}
	}

	e.logger.Info("token connected",
		slog.String("user", userID),
		slog.Int("accounts", len(accounts)),
	)

	out := []Outbound{reply(msgTokenConnected)}
	return append(out, e.accountMenu(ctx, userID, 0, false)...)
}

// normalizeAccounts maps API listing entries onto stored rows, filling the
// deterministic defaults for missing display names and currencies.
func normalizeAccounts(userID string, accounts []meta.AdAccount) []model.AdAccount {
	normalized := make([]model.AdAccount, 0, len(accounts))
	for _, a := range accounts {
		accountID := a.AccountID
		if accountID == "" {
			accountID = a.ID
		}
		name := a.Name
		if name == "" {
			name = fmt.Sprintf("Account %s", accountID)
		}
		currency := a.Currency
		if currency == "" {
			currency = "USD"
		}
		normalized = append(normalized, model.AdAccount{
			UserID:    userID,
			AccountID: accountID,
			Name:      name,
			Currency:  currency,
		})
	}
	return normalized
}
