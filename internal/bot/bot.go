// Package bot is the Telegram transport. It long-polls the Bot API,
// translates updates into engine calls, and delivers the engine's outbound
// instructions back as messages and inline keyboards.
//
// The transport holds no conversation logic: what to say and which keyboard
// to attach is decided entirely by the session engine. This layer only knows
// how to move those decisions over the Telegram wire.
package bot

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladkruhlyk/git-bot.statistic/internal/menu"
	"github.com/vladkruhlyk/git-bot.statistic/internal/session"
)

const pollTimeoutSeconds = 30

// msgCrashed is the one reply the transport composes itself, for the
// last-resort panic recovery path.
const msgCrashed = "Something went wrong. Please try again."

// Bot runs the long-polling loop against one Telegram bot account.
type Bot struct {
	api    *tgbotapi.BotAPI
	engine *session.Engine
	logger *slog.Logger
}

// New authenticates against the Bot API and returns a ready Bot.
func New(token string, engine *session.Engine, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	logger.Info("telegram bot authorized", slog.String("username", api.Self.UserName))
	return &Bot{api: api, engine: engine, logger: logger}, nil
}

// Run polls for updates until ctx is cancelled. Each update is handled in
// its own goroutine so one user's slow Meta API call never blocks another
// user's tap.
func (b *Bot) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate dispatches one update. The deferred recover is the process's
// last line of defence: a panicking handler must not take down the polling
// loop, and must not leave its user stuck awaiting input.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	var chatID, userID int64

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("update handler panicked",
				slog.Int64("chat", chatID),
				slog.Any("panic", r),
			)
			if userID != 0 {
				b.engine.AbortPending(userID)
			}
			if chatID != 0 {
				b.send(chatID, session.Outbound{Text: msgCrashed}, 0)
			}
		}
	}()

	switch {
	case update.Message != nil:
		msg := update.Message
		chatID = msg.Chat.ID
		userID = msg.From.ID

		var out []session.Outbound
		if msg.IsCommand() && msg.Command() == "start" {
			out = b.engine.HandleStart(ctx, userID)
		} else {
			out = b.engine.HandleText(ctx, userID, msg.Text)
		}
		b.deliver(chatID, 0, out)

	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		userID = cq.From.ID

		// Acknowledge first so the client stops its loading spinner even
		// when the action turns out to be a no-op or the handler fails.
		if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			b.logger.Warn("answering callback query", slog.String("error", err.Error()))
		}

		if cq.Message == nil {
			return
		}
		chatID = cq.Message.Chat.ID

		out := b.engine.HandleMenuAction(ctx, userID, cq.Data)
		b.deliver(chatID, cq.Message.MessageID, out)
	}
}

// deliver sends the engine's outbound instructions in order. messageID is
// the callback's source message, used for in-place edits; zero means no
// edit target exists and everything goes out as fresh messages.
func (b *Bot) deliver(chatID int64, messageID int, outs []session.Outbound) {
	for _, out := range outs {
		b.send(chatID, out, messageID)
	}
}

func (b *Bot) send(chatID int64, out session.Outbound, messageID int) {
	if out.Edit && messageID != 0 && out.Menu != nil {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, out.Text, toMarkup(*out.Menu))
		if _, err := b.api.Send(edit); err == nil {
			return
		}
		// Editing fails when the message is too old or unchanged; fall
		// through and deliver a fresh message instead.
	}

	msg := tgbotapi.NewMessage(chatID, out.Text)
	if out.Menu != nil {
		msg.ReplyMarkup = toMarkup(*out.Menu)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("sending message",
			slog.Int64("chat", chatID),
			slog.String("error", err.Error()),
		)
	}
}

// toMarkup converts the engine's transport-neutral menu into a Telegram
// inline keyboard.
func toMarkup(m menu.Menu) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(m.Rows))
	for _, row := range m.Rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Action.Token()))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
