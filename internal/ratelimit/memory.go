// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	tat     int64
	expires time.Time
}

// MemoryStore keeps keyed state in process memory. Expired keys are treated
// as absent and removed by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty store using the wall clock for expiry.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(SystemClock)
}

// NewMemoryStoreWithClock returns an empty store using c for expiry.
func NewMemoryStoreWithClock(c Clock) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     c.Now,
	}
}

func (s *MemoryStore) Backend() string { return "memory" }

func (s *MemoryStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, found := s.entries[key]
	if found && !now.Before(e.expires) {
		delete(s.entries, key)
		found = false
		e = memoryEntry{}
	}

	next, err := fn(e.tat, found)
	if err != nil {
		return err
	}
	s.entries[key] = memoryEntry{tat: next, expires: now.Add(ttl)}
	return nil
}

// Sweep removes expired keys and reports how many were dropped.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored keys, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
