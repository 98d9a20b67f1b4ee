package session

import (
	"context"
	"sync"
	"time"

	"github.com/3run4/stampcard/member"
)

type memoryEntry struct {
	snap      member.Snapshot
	expiresAt time.Time
}

// MemoryStore keeps snapshots in process. Single instance only.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{ttl: ttl, now: time.Now, entries: map[string]memoryEntry{}}
}

func (s *MemoryStore) Load(_ context.Context, id string) (member.Snapshot, bool, error) {
	key, err := storeKey(id)
	if err != nil {
		return member.Snapshot{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return member.Snapshot{}, false, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return member.Snapshot{}, false, nil
	}
	return e.snap, true, nil
}

func (s *MemoryStore) Save(_ context.Context, id string, snap member.Snapshot) error {
	key, err := storeKey(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[key] = memoryEntry{snap: snap, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Purge drops expired entries and returns how many were removed.
func (s *MemoryStore) Purge(_ context.Context) (int, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}
