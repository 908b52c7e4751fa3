package presence

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentshim/core"
)

type inMemoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// InMemoryStore is a process-local core.PresenceStore with Redis-like TTL
// semantics: expired keys behave as absent. It is safe for concurrent access
// and best suited for tests or agents sharing one process. The clock is
// injectable so expiry can be tested without sleeping.
type InMemoryStore struct {
	mu    sync.Mutex
	clock func() time.Time
	keys  map[string]inMemoryEntry
	sets  map[string]map[string]struct{}
}

// NewInMemoryStore returns an empty store using the wall clock.
func NewInMemoryStore() *InMemoryStore {
	return NewInMemoryStoreWithClock(time.Now)
}

// NewInMemoryStoreWithClock returns an empty store driven by clock.
func NewInMemoryStoreWithClock(clock func() time.Time) *InMemoryStore {
	return &InMemoryStore{
		clock: clock,
		keys:  make(map[string]inMemoryEntry),
		sets:  make(map[string]map[string]struct{}),
	}
}

// SetEx stores a copy of value under key with the given ttl.
func (s *InMemoryStore) SetEx(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	entry := inMemoryEntry{value: cp}
	if ttl > 0 {
		entry.expiresAt = s.clock().Add(ttl)
	}
	s.keys[key] = entry
	return nil
}

// Get returns a copy of the value or core.ErrKeyNotFound.
func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.liveLocked(key)
	if !ok {
		return nil, core.ErrKeyNotFound
	}
	cp := make([]byte, len(entry.value))
	copy(cp, entry.value)
	return cp, nil
}

// Del removes key; absent keys are ignored.
func (s *InMemoryStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

// SAdd adds member to set.
func (s *InMemoryStore) SAdd(_ context.Context, set, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sets[set]
	if !ok {
		m = make(map[string]struct{})
		s.sets[set] = m
	}
	m[member] = struct{}{}
	return nil
}

// SRem removes member from set; absent members are ignored.
func (s *InMemoryStore) SRem(_ context.Context, set, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.sets[set]; ok {
		delete(m, member)
		if len(m) == 0 {
			delete(s.sets, set)
		}
	}
	return nil
}

// SMembers returns a snapshot of the set in unspecified order.
func (s *InMemoryStore) SMembers(_ context.Context, set string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.sets[set]
	out := make([]string, 0, len(m))
	for member := range m {
		out = append(out, member)
	}
	return out, nil
}

// TTL returns the remaining lifetime, -1 for keys without expiry, or
// core.ErrKeyNotFound.
func (s *InMemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.liveLocked(key)
	if !ok {
		return 0, core.ErrKeyNotFound
	}
	if entry.expiresAt.IsZero() {
		return -1, nil
	}
	return entry.expiresAt.Sub(s.clock()), nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error { return nil }

// liveLocked returns the entry if present and not expired, evicting expired
// entries; caller must hold the lock.
func (s *InMemoryStore) liveLocked(key string) (inMemoryEntry, bool) {
	entry, ok := s.keys[key]
	if !ok {
		return inMemoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !s.clock().Before(entry.expiresAt) {
		delete(s.keys, key)
		return inMemoryEntry{}, false
	}
	return entry, true
}
