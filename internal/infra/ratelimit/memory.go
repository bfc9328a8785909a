package ratelimit

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sasha-s/go-deadlock"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

type MemoryLimiterConfig struct {
	Now     func() time.Time
	// MaxKeys bounds the tracked clients. The least recently seen client is
	// forgotten first.
	MaxKeys int
}

// MemoryLimiter keeps counters in process. It suits a single replica.
type MemoryLimiter struct {
	mu       deadlock.Mutex
	now      func() time.Time
	counters *lru.Cache
}

type counter struct {
	index int64
	prev  int
	curr  int
}

func (c *counter) advance(index int64) {
	switch index {
	case c.index:
		return
	case c.index + 1:
		c.prev, c.curr = c.curr, 0
	default:
		c.prev, c.curr = 0, 0
	}
	c.index = index
}

func NewMemoryLimiter(cfg MemoryLimiterConfig) *MemoryLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	// lru.New only fails for a non-positive size.
	counters, _ := lru.New(cfg.MaxKeys)
	return &MemoryLimiter{now: cfg.Now, counters: counters}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return unlimited(limit), nil
	}
	pos := locate(m.now(), window)

	m.mu.Lock()
	defer m.mu.Unlock()
	var c *counter
	if v, ok := m.counters.Get(key); ok {
		c = v.(*counter)
	} else {
		c = &counter{index: pos.index}
		m.counters.Add(key, c)
	}
	c.advance(pos.index)
	if !pos.admits(limit, c.prev, c.curr) {
		return pos.decision(limit, c.prev, c.curr, false), nil
	}
	c.curr++
	return pos.decision(limit, c.prev, c.curr, true), nil
}

// Len reports how many clients are tracked.
func (m *MemoryLimiter) Len() int {
	return m.counters.Len()
}

var _ domain.RateLimiter = (*MemoryLimiter)(nil)
