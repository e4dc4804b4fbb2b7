package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// memorySweepInterval bounds how long sessions nobody reads again stay in
// memory after their last key expires.
const memorySweepInterval = time.Minute

type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	data    map[string]map[string]memoryEntry
	cleanup time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryStore{
		now:     now,
		data:    make(map[string]map[string]memoryEntry),
		cleanup: now().Add(memorySweepInterval),
	}
}

// sweep drops expired keys of every session once per interval. Callers hold mu.
func (s *MemoryStore) sweep(now time.Time) {
	if now.Before(s.cleanup) {
		return
	}
	for sid, entries := range s.data {
		for key, entry := range entries {
			if !now.Before(entry.expiresAt) {
				delete(entries, key)
			}
		}
		if len(entries) == 0 {
			delete(s.data, sid)
		}
	}
	s.cleanup = now.Add(memorySweepInterval)
}

func (s *MemoryStore) Get(_ context.Context, sid, key string) (string, bool, error) {
	if sid == "" {
		return "", false, ErrNoSession
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(now)

	entries := s.data[sid]
	entry, ok := entries[key]
	if !ok {
		return "", false, nil
	}
	if !now.Before(entry.expiresAt) {
		delete(entries, key)
		if len(entries) == 0 {
			delete(s.data, sid)
		}
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, sid, key, value string, ttl time.Duration) error {
	if sid == "" {
		return ErrNoSession
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(now)

	entries, ok := s.data[sid]
	if !ok {
		entries = make(map[string]memoryEntry)
		s.data[sid] = entries
	}
	entries[key] = memoryEntry{value: value, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sid string, keys ...string) error {
	if sid == "" {
		return ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.data[sid]
	for _, key := range keys {
		delete(entries, key)
	}
	if len(entries) == 0 {
		delete(s.data, sid)
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sid string) error {
	if sid == "" {
		return ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sid)
	return nil
}

// Len reports the number of sessions held, including ones whose keys expired
// since the last sweep.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
