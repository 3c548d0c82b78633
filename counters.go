package raidguard

import (
	"context"
	"sync"
	"time"
)

type windowCounter struct {
	count int
	last  time.Time
}

// InMemoryCounterStore implements ActionCounterStore with in-memory storage.
// Counters do not survive a restart; abuse history starts fresh each process.
type InMemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
}

func NewInMemoryCounterStore() *InMemoryCounterStore {
	return &InMemoryCounterStore{
		counters: make(map[string]*windowCounter),
	}
}

func (s *InMemoryCounterStore) Hit(ctx context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	counter, exists := s.counters[key]
	if !exists || (window > 0 && now.Sub(counter.last) > window) {
		s.counters[key] = &windowCounter{count: 1, last: now}
		return 1, nil
	}
	counter.count++
	counter.last = now
	return counter.count, nil
}

func (s *InMemoryCounterStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
	return nil
}

// Cleanup drops counters idle longer than window. Callers run it periodically
// to keep the map from accumulating one entry per actor forever.
func (s *InMemoryCounterStore) Cleanup(window time.Duration) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, counter := range s.counters {
		if now.Sub(counter.last) > window {
			delete(s.counters, key)
		}
	}
}

// HealthCheck performs a health check on the counter store.
func (s *InMemoryCounterStore) HealthCheck() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = len(s.counters)
	return nil
}
