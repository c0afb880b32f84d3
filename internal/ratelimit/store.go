package ratelimit

import (
	"context"
	"sync"
	"time"
)

// CounterStore is a windowed admission counter. The window opens on the first
// increment of a key and is never extended by later increments; once it has
// elapsed the next increment starts a new window at 1.
//
// cache.DatabaseStore and cache.RedisStore satisfy this interface.
type CounterStore interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// MemoryStore provides process-local counters. It is concurrency-safe but not
// shared between server instances and resets on restart.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string]*memoryCounter
	clock func() time.Time
	stop  chan struct{}
	once  sync.Once
}

type memoryCounter struct {
	count     int64
	windowEnd time.Time
}

// MemoryOption customises a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the clock, used by tests to move across windows.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.clock = now
		}
	}
}

// NewMemoryStore constructs an in-memory store. A non-positive sweep interval
// disables the background cleanup of elapsed windows.
func NewMemoryStore(sweep time.Duration, opts ...MemoryOption) *MemoryStore {
	store := &MemoryStore{
		data:  make(map[string]*memoryCounter),
		clock: time.Now,
		stop:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(store)
	}

	if sweep > 0 {
		go store.cleanupLoop(sweep)
	}
	return store
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, counter := range s.data {
		if !now.Before(counter.windowEnd) {
			delete(s.data, key)
		}
	}
}

// Close stops the background sweeper.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

// IncrementWithTTL atomically increments the counter for key.
func (s *MemoryStore) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}

	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.data[key]
	if !ok || !now.Before(counter.windowEnd) {
		counter = &memoryCounter{windowEnd: now.Add(window)}
		s.data[key] = counter
	}
	counter.count++

	return counter.count, counter.windowEnd.Sub(now), nil
}

// Len reports how many keys are tracked.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
