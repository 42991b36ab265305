// Package conversation keeps a bounded, in-memory history of turns per chat.
//
// The store applies two independent trimming windows: appending a user turn
// trims the history to the user window (what is sent upstream), while
// appending an assistant turn only trims to the wider history window.
// Conversations live until reset or process exit; there is no expiry.
package conversation

import (
	"sync"

	"github.com/papercomputeco/tgrelay/pkg/llm"
)

const (
	// DefaultUserWindow is the number of turns kept after a user append.
	DefaultUserWindow = 5

	// DefaultHistoryWindow is the number of turns kept after an assistant append.
	DefaultHistoryWindow = 10
)

// ID identifies a conversation (a Telegram chat id).
type ID = int64

// Options configures a Store.
type Options struct {
	// UserWindow caps the history after AppendUser. Defaults to DefaultUserWindow.
	UserWindow int

	// HistoryWindow caps the history after AppendAssistant. Defaults to DefaultHistoryWindow.
	HistoryWindow int
}

// Store maps conversation ids to their turn history.
type Store struct {
	// mu guards turns. Every operation is a point operation on a single key.
	mu sync.RWMutex

	// turns is keyed by conversation id; each slice is owned by the store
	// and never handed out without copying.
	turns map[ID][]llm.Turn

	userWindow    int
	historyWindow int
}

// NewStore creates an empty Store.
func NewStore(opts Options) *Store {
	if opts.UserWindow <= 0 {
		opts.UserWindow = DefaultUserWindow
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}

	return &Store{
		turns:         make(map[ID][]llm.Turn),
		userWindow:    opts.UserWindow,
		historyWindow: opts.HistoryWindow,
	}
}

// AppendUser appends a user turn to conversation id, creating it if absent,
// then keeps only the most recent UserWindow turns.
func (s *Store) AppendUser(id ID, text string) {
	s.append(id, llm.NewUserTurn(text), s.userWindow)
}

// AppendAssistant appends an assistant turn to conversation id, creating it if
// absent, then keeps only the most recent HistoryWindow turns.
func (s *Store) AppendAssistant(id ID, text string) {
	s.append(id, llm.NewAssistantTurn(text), s.historyWindow)
}

func (s *Store) append(id ID, turn llm.Turn, window int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.turns[id], turn)
	if len(history) > window {
		// Copy into a fresh slice so the dropped prefix can be collected.
		trimmed := make([]llm.Turn, window)
		copy(trimmed, history[len(history)-window:])
		history = trimmed
	}

	s.turns[id] = history
}

// Reset removes conversation id. Resetting an absent conversation is a no-op.
func (s *Store) Reset(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.turns, id)
}

// Snapshot returns a copy of the turns of conversation id, oldest first.
// The result is never nil and is safe to use after the store changes.
func (s *Store) Snapshot(id ID) []llm.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.turns[id]
	snapshot := make([]llm.Turn, len(history))
	copy(snapshot, history)
	return snapshot
}

// Len returns the number of live conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.turns)
}

// Windows returns the user and history windows in effect.
func (s *Store) Windows() (user, history int) {
	return s.userWindow, s.historyWindow
}
