package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// backoffEntry is one shop's throttle state
type backoffEntry struct {
	window time.Duration
	until  time.Time
}

// InMemoryBackoffStore tracks per-shop exponential backoff in process memory.
// Suitable for single-instance deployments and testing.
// WARNING: backoff state is not shared across process instances; in a
// distributed deployment each scheduler throttles independently.
type InMemoryBackoffStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*backoffEntry
	base    time.Duration
	cap     time.Duration
	now     func() time.Time
}

// NewInMemoryBackoffStore creates an in-memory backoff store
func NewInMemoryBackoffStore(base, cap time.Duration) *InMemoryBackoffStore {
	return &InMemoryBackoffStore{
		entries: make(map[uuid.UUID]*backoffEntry),
		base:    base,
		cap:     cap,
		now:     time.Now,
	}
}

// Delay reports how long the shop must still wait; zero means go
func (s *InMemoryBackoffStore) Delay(ctx context.Context, shopID uuid.UUID) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[shopID]
	if !ok {
		return 0, nil
	}
	remaining := entry.until.Sub(s.now())
	if remaining <= 0 {
		return 0, nil
	}
	return remaining, nil
}

// Bump escalates the shop's backoff window and returns the new delay.
// The first bump waits the base delay; each further bump doubles the window
// up to the cap. A bump after the window lapsed starts over at the base.
func (s *InMemoryBackoffStore) Bump(ctx context.Context, shopID uuid.UUID) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[shopID]
	if !ok || now.After(entry.until) {
		entry = &backoffEntry{window: s.base}
		s.entries[shopID] = entry
	} else {
		entry.window *= 2
		if entry.window > s.cap {
			entry.window = s.cap
		}
	}
	entry.until = now.Add(entry.window)
	return entry.window, nil
}

// Reset clears the shop's backoff after a successful platform call
func (s *InMemoryBackoffStore) Reset(ctx context.Context, shopID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, shopID)
	return nil
}
