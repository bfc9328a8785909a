// Package ratelimit counts requests per key over a sliding window. The
// trailing window is approximated from two fixed windows: the current count
// plus the previous count weighted by how much of it still overlaps.
package ratelimit

import (
	"math"
	"time"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

type position struct {
	index   int64
	weight  float64
	resetAt time.Time
}

// locate places now within fixed windows of the given size.
func locate(now time.Time, window time.Duration) position {
	size := window.Milliseconds()
	if size <= 0 {
		size = 1000
	}
	ms := now.UnixMilli()
	index := ms / size
	elapsed := ms - index*size
	return position{
		index:   index,
		weight:  1 - float64(elapsed)/float64(size),
		resetAt: time.UnixMilli((index + 1) * size).UTC(),
	}
}

func (p position) admits(limit, prev, curr int) bool {
	return float64(prev)*p.weight+float64(curr)+1 <= float64(limit)
}

func (p position) decision(limit, prev, curr int, allowed bool) domain.RateLimitDecision {
	used := int(math.Ceil(float64(prev)*p.weight)) + curr
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   p.resetAt,
	}
}

func unlimited(limit int) domain.RateLimitDecision {
	return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}
}
