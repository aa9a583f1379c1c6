package bot

import "sync"

// ContactLocks provides one mutex per phone so that the whole
// read-session / respond / mutate / dispatch sequence is atomic relative to
// other inbound events for the same contact. Different phones proceed fully
// concurrently.
//
// Locks are created lazily and never removed; contact cardinality is
// bounded by business scale, so the map stays small.
type ContactLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewContactLocks creates an empty lock registry.
func NewContactLocks() *ContactLocks {
	return &ContactLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for a phone, creating it on first use, and
// returns the corresponding unlock function.
func (c *ContactLocks) Lock(phone string) (unlock func()) {
	c.mu.Lock()
	l, ok := c.locks[phone]
	if !ok {
		l = &sync.Mutex{}
		c.locks[phone] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}
