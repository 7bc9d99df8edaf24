package sessionstore

import (
	"context"
	"sync"
	"time"
)

// Memory keeps owners in process. Entries older than the TTL are ignored
// on read and swept on write.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.RWMutex
	owners map[string]Owner
	latest Owner
}

// NewMemory creates an in-memory store. A zero ttl keeps entries forever.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:    ttl,
		now:    time.Now,
		owners: make(map[string]Owner),
	}
}

// Put records user as the owner of sessionID.
func (m *Memory) Put(ctx context.Context, user, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := m.now()
	owner := Owner{User: user, SessionID: sessionID, RecordedAt: now}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.latest = owner
	if sessionID == "" {
		return nil
	}
	m.owners[sessionID] = owner
	m.sweep(now)
	return nil
}

// Owner returns the recorded owner of sessionID.
func (m *Memory) Owner(ctx context.Context, sessionID string) (Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owner, ok := m.owners[sessionID]
	if !ok || m.expired(owner, m.now()) {
		return Owner{}, ErrNotFound
	}
	return owner, nil
}

// Latest returns the most recent Put.
func (m *Memory) Latest(ctx context.Context) (Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.latest.RecordedAt.IsZero() {
		return Owner{}, ErrNotFound
	}
	return m.latest, nil
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.owners)
}

// Close implements Store.
func (m *Memory) Close() error { return nil }

func (m *Memory) expired(owner Owner, now time.Time) bool {
	return m.ttl > 0 && now.Sub(owner.RecordedAt) > m.ttl
}

// sweep must be called with the write lock held.
func (m *Memory) sweep(now time.Time) {
	if m.ttl == 0 {
		return
	}
	for id, owner := range m.owners {
		if m.expired(owner, now) {
			delete(m.owners, id)
		}
	}
}
