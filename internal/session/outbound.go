package session

import "github.com/vladkruhlyk/git-bot.statistic/internal/menu"

// Outbound is one instruction to the transport layer: send this text,
// optionally with an inline keyboard.
//
// Edit asks the transport to update the message that carried the menu the
// user just tapped instead of sending a new one. It is a preference, not a
// guarantee: when the edit fails (message too old, identical content) the
// transport falls back to a fresh message.
type Outbound struct {
	Text string
	Menu *menu.Menu
	Edit bool
}

func reply(text string) Outbound {
	return Outbound{Text: text}
}

func replyMenu(text string, m menu.Menu) Outbound {
	return Outbound{Text: text, Menu: &m}
}

func editMenu(text string, m menu.Menu) Outbound {
	return Outbound{Text: text, Menu: &m, Edit: true}
}
