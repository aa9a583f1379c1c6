package bot

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// OutboundRecord remembers the last text sent to a phone, for echo
// suppression within the TTL window.
type OutboundRecord struct {
	LastText string
	SentAt   time.Time
}

// DedupStore is the storage behind the DeduplicationGuard. The in-memory
// implementation below is the default; the interface allows swapping in a
// shared store without touching pipeline logic.
type DedupStore interface {
	LastOutbound(phone string) (OutboundRecord, bool)
	SetOutbound(phone string, rec OutboundRecord)
	SeenAt(phone, hash string) (time.Time, bool)
	MarkSeen(phone, hash string, at time.Time)
	// Sweep drops entries older than the cutoff and returns how many were
	// removed. Expiry is otherwise lazy (checked on lookup), so sweeping
	// is memory hygiene only.
	Sweep(cutoff time.Time) int
}

// Guard suppresses echoes of the bot's own outbound text and re-delivered
// webhook duplicates. Both filters share the same TTL window and run before
// any session mutation: a rejected event has zero side effects.
type Guard struct {
	store DedupStore
	ttl   time.Duration
	now   func() time.Time
}

// NewGuard creates a Guard with the given TTL window.
func NewGuard(store DedupStore, ttl time.Duration) *Guard {
	if store == nil {
		store = NewMemoryDedupStore()
	}
	if ttl <= 0 {
		ttl = 12 * time.Second
	}
	return &Guard{store: store, ttl: ttl, now: time.Now}
}

// Check runs both filters for an inbound (phone, text) pair. On acceptance
// it records the content hash so an identical redelivery within the TTL is
// rejected. A non-empty reason means the event must be dropped.
func (g *Guard) Check(phone, text string) IgnoreReason {
	now := g.now()

	// Echo suppression: the provider may deliver our own sent message back
	// as an inbound event. Second line of defense, independent of fromMe.
	if rec, ok := g.store.LastOutbound(phone); ok {
		if rec.LastText == text && now.Sub(rec.SentAt) < g.ttl {
			return ReasonEchoRecentOutbound
		}
	}

	// Redelivery suppression keyed by (phone, contentHash). Hash collisions
	// falsely suppressing identical repeated text inside the TTL are an
	// accepted trade-off.
	h := contentHash(text)
	if at, ok := g.store.SeenAt(phone, h); ok && now.Sub(at) < g.ttl {
		return ReasonDuplicate
	}
	g.store.MarkSeen(phone, h, now)
	return ""
}

// RecordOutbound overwrites the outbound record for a phone after a
// successful dispatch.
func (g *Guard) RecordOutbound(phone, text string) {
	g.store.SetOutbound(phone, OutboundRecord{LastText: text, SentAt: g.now()})
}

// Sweep removes expired dedup entries.
func (g *Guard) Sweep() int {
	return g.store.Sweep(g.now().Add(-g.ttl))
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ---------- In-memory store ----------

type dedupKey struct {
	phone string
	hash  string
}

// MemoryDedupStore is the default process-local DedupStore.
type MemoryDedupStore struct {
	mu       sync.Mutex
	outbound map[string]OutboundRecord
	seen     map[dedupKey]time.Time
}

// NewMemoryDedupStore creates an empty in-memory store.
func NewMemoryDedupStore() *MemoryDedupStore {
	return &MemoryDedupStore{
		outbound: make(map[string]OutboundRecord),
		seen:     make(map[dedupKey]time.Time),
	}
}

func (m *MemoryDedupStore) LastOutbound(phone string) (OutboundRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.outbound[phone]
	return rec, ok
}

func (m *MemoryDedupStore) SetOutbound(phone string, rec OutboundRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbound[phone] = rec
}

func (m *MemoryDedupStore) SeenAt(phone, hash string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.seen[dedupKey{phone, hash}]
	return at, ok
}

func (m *MemoryDedupStore) MarkSeen(phone, hash string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[dedupKey{phone, hash}] = at
}

func (m *MemoryDedupStore) Sweep(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k, at := range m.seen {
		if at.Before(cutoff) {
			delete(m.seen, k)
			removed++
		}
	}
	return removed
}
