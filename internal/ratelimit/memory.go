package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a fixed-window counter kept in process memory. It is the
// fallback when Redis is not configured, good enough for a single replica.
type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	counts map[string]*windowCount
	now    func() time.Time
}

type windowCount struct {
	start time.Time
	count int
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		counts: make(map[string]*windowCount),
		now:    time.Now,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.counts[key]
	if !ok || now.Sub(w.start) >= m.window {
		m.counts[key] = &windowCount{start: now, count: 1}
		m.prune(now)
		return true, nil
	}
	if w.count >= m.limit {
		return false, nil
	}
	w.count++
	return true, nil
}

// prune drops expired windows so the map does not grow with one entry per
// source forever. Called under the lock, only when a new window opens.
func (m *MemoryLimiter) prune(now time.Time) {
	for key, w := range m.counts {
		if now.Sub(w.start) >= m.window {
			delete(m.counts, key)
		}
	}
}
