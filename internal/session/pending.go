package session

import "sync"

// mode is a user's transient pending-input state. It lives only in memory:
// a process restart drops every user back to modeNone and they simply
// re-issue their last action.
type mode int

const (
	modeNone mode = iota
	modeAwaitToken
	modeAwaitCustomPeriod
)

// pendingModes is a concurrent map of Telegram user ID → pending mode.
// Inbound events for different users run concurrently, and overlapping
// events for the same user may race; every operation here is a full
// overwrite under the lock, and the map is never iterated.
type pendingModes struct {
	mu sync.Mutex
	m  map[int64]mode
}

func newPendingModes() *pendingModes {
	return &pendingModes{m: make(map[int64]mode)}
}

// set replaces whatever mode was active. At most one pending input per user.
func (p *pendingModes) set(telegramID int64, m mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[telegramID] = m
}

func (p *pendingModes) get(telegramID int64) mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.m[telegramID]
}

func (p *pendingModes) clear(telegramID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, telegramID)
}
