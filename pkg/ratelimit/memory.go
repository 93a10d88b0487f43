package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process CounterStore with fixed-window counters.
// A background janitor evicts buckets whose window has elapsed.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

type bucket struct {
	count    int64
	windowAt time.Time
	interval time.Duration
}

var _ CounterStore = (*MemoryStore)(nil)

// NewMemoryStore creates a memory-backed counter store and starts its
// eviction janitor. Call Close to stop the janitor.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		buckets: make(map[string]*bucket),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go s.janitor(time.Minute)
	return s
}

// Increment adds one to the counter for key, resetting it when its
// window has elapsed, and returns the new count. The read and the
// increment happen under one lock so two concurrent requests cannot
// both observe a stale count.
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok || now.Sub(b.windowAt) >= window {
		s.buckets[key] = &bucket{count: 1, windowAt: now, interval: window}
		return 1, nil
	}

	b.count++
	return b.count, nil
}

// Close stops the eviction janitor.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemoryStore) janitor(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *MemoryStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, b := range s.buckets {
		if now.Sub(b.windowAt) >= b.interval {
			delete(s.buckets, key)
		}
	}
}
