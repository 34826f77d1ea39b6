// Package session stores per-session values such as the tenant lock.
package session

import (
	"context"
	"sync"
	"time"
)

// LockKey is the storage key of the locked tenant of a session.
func LockKey(sessionID string) string {
	return "session:" + sessionID + ":locked_tenant"
}

// EndedKey marks a session that was logged out.
func EndedKey(sessionID string) string {
	return "session:" + sessionID + ":ended"
}

// MemoryStore keeps values in process memory. Expired values read as absent.
type MemoryStore struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]memoryItem
}

type memoryItem struct {
	value   string
	expires time.Time
}

// NewMemoryStore returns a store whose values expire after ttl; a zero ttl
// keeps values until deleted.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, items: make(map[string]memoryItem)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if m.expired(item) {
		m.mu.Lock()
		// A Set may have replaced the item since the read lock was dropped.
		if cur, ok := m.items[key]; ok && m.expired(cur) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return "", false, nil
	}
	return item.value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.items[key] = m.newItem(value)
	m.mu.Unlock()
	return nil
}

// SetIfAbsent stores value unless key already holds a live value. It returns
// the value held after the call and whether this call stored it.
func (m *MemoryStore) SetIfAbsent(_ context.Context, key, value string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.items[key]; ok && !m.expired(cur) {
		return cur.value, false, nil
	}
	m.items[key] = m.newItem(value)
	return value, true, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) newItem(value string) memoryItem {
	item := memoryItem{value: value}
	if m.ttl > 0 {
		item.expires = m.now().Add(m.ttl)
	}
	return item
}

func (m *MemoryStore) expired(item memoryItem) bool {
	return !item.expires.IsZero() && !m.now().Before(item.expires)
}
