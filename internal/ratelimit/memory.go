package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps hit timestamps in process memory. Counters are not shared
// between replicas.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	maxAge   time.Duration
	stop     chan struct{}
	once     sync.Once
}

// NewMemoryStore creates a store and starts a cleanup loop that drops keys
// idle for longer than maxAge.
func NewMemoryStore(maxAge time.Duration) *MemoryStore {
	s := &MemoryStore{
		requests: make(map[string][]time.Time),
		maxAge:   maxAge,
		stop:     make(chan struct{}),
	}
	go s.cleanupLoop(time.Minute)
	return s
}

// Hit checks if a request is allowed for the given key and records it if so
func (s *MemoryStore) Hit(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	reqs := s.requests[key]

	filtered := reqs[:0]
	for _, t := range reqs {
		if t.After(cutoff) {
			filtered = append(filtered, t)
		}
	}

	if len(filtered) >= limit {
		s.requests[key] = filtered
		retry := filtered[0].Add(window).Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		return Decision{Allowed: false, Limit: limit, Remaining: 0, RetryAfter: retry}, nil
	}

	filtered = append(filtered, now)
	s.requests[key] = filtered
	return Decision{Allowed: true, Limit: limit, Remaining: limit - len(filtered)}, nil
}

// Close stops the cleanup loop.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *MemoryStore) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.maxAge)
	for key, reqs := range s.requests {
		if len(reqs) == 0 || !reqs[len(reqs)-1].After(cutoff) {
			delete(s.requests, key)
		}
	}
}
