package bot

import (
	"sync"

	"github.com/linsalefe/anabot/pkg/anabot/knowledge"
)

// DefaultHistoryLimit is the per-contact chat history capacity.
const DefaultHistoryLimit = 12

// Role identifies who produced a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a contact's rolling chat history.
type Turn struct {
	Role Role
	Text string
}

// Session is the mutable per-contact state. Values returned by the store
// are copies; mutation goes through the store methods while the caller
// holds the contact lock.
type Session struct {
	Phone           string
	SelectedProduct string // catalog slug, may be stale after a reload
	TurnCount       int
	History         []Turn
}

// SessionStore holds per-contact conversation state. The in-memory
// implementation is the default; the interface exists so a shared store can
// replace it without touching pipeline logic.
type SessionStore interface {
	// Get returns a copy of the session, creating a default one if absent.
	Get(phone string) Session

	// AppendTurn pushes a turn, evicting the oldest entry beyond capacity,
	// and increments the turn counter for user turns.
	AppendTurn(phone string, role Role, text string)

	// UpdateProductFromText runs the alias-index lookup against the text
	// and, on a match, overwrites the selected product (last detected
	// wins). Returns the slug and whether a match occurred.
	UpdateProductFromText(phone, text string, kb *knowledge.Snapshot) (string, bool)

	// Reset clears turn counter, history and selected product.
	Reset(phone string)

	// Count returns the number of active sessions.
	Count() int
}

// MemorySessions is the process-local SessionStore.
type MemorySessions struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	historyLimit int
}

// NewMemorySessions creates an empty store with the given history capacity.
func NewMemorySessions(historyLimit int) *MemorySessions {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &MemorySessions{
		sessions:     make(map[string]*Session),
		historyLimit: historyLimit,
	}
}

func (m *MemorySessions) Get(phone string) Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[phone]
	if !ok {
		return Session{Phone: phone}
	}
	out := *s
	out.History = make([]Turn, len(s.History))
	copy(out.History, s.History)
	return out
}

func (m *MemorySessions) AppendTurn(phone string, role Role, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrCreateLocked(phone)
	s.History = append(s.History, Turn{Role: role, Text: text})
	if len(s.History) > m.historyLimit {
		s.History = s.History[len(s.History)-m.historyLimit:]
	}
	if role == RoleUser {
		s.TurnCount++
	}
}

func (m *MemorySessions) UpdateProductFromText(phone, text string, kb *knowledge.Snapshot) (string, bool) {
	if kb == nil {
		return "", false
	}
	p, ok := kb.MatchAlias(text)
	if !ok {
		return "", false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrCreateLocked(phone)
	s.SelectedProduct = p.Slug
	return p.Slug, true
}

func (m *MemorySessions) Reset(phone string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, phone)
}

func (m *MemorySessions) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// getOrCreateLocked must be called with mu held for writing.
func (m *MemorySessions) getOrCreateLocked(phone string) *Session {
	s, ok := m.sessions[phone]
	if !ok {
		s = &Session{Phone: phone}
		m.sessions[phone] = s
	}
	return s
}
