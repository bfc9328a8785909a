package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

// RedisLimiter shares counters between server replicas. Each fixed window
// is its own key and expires once it can no longer be the previous window.
type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// KEYS: current window, previous window.
// ARGV: limit, previous window weight, key ttl in ms.
// Returns {admitted, current count, previous count}.
var slidingWindowScript = redis.NewScript(`
local curr = tonumber(redis.call("GET", KEYS[1]) or "0")
local prev = tonumber(redis.call("GET", KEYS[2]) or "0")
if prev * tonumber(ARGV[2]) + curr + 1 > tonumber(ARGV[1]) then
  return {0, curr, prev}
end
curr = redis.call("INCR", KEYS[1])
if curr == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[3])
end
return {1, curr, prev}
`)

func NewRedisLimiter(addr, password string, db int, now func() time.Time) (*RedisLimiter, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if now == nil {
		now = time.Now
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisLimiter{client: client, now: now}, nil
}

// Ping checks connectivity so misconfiguration shows up at startup.
func (r *RedisLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisLimiter) Close() error {
	return r.client.Close()
}

func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return unlimited(limit), nil
	}
	pos := locate(r.now(), window)
	keys := []string{
		fmt.Sprintf("%s:%d", key, pos.index),
		fmt.Sprintf("%s:%d", key, pos.index-1),
	}
	ttl := 2 * window.Milliseconds()
	if ttl <= 0 {
		ttl = 2000
	}
	out, err := slidingWindowScript.Run(ctx, r.client, keys,
		limit, strconv.FormatFloat(pos.weight, 'f', 6, 64), ttl).Int64Slice()
	if err != nil {
		return domain.RateLimitDecision{}, err
	}
	if len(out) != 3 {
		return domain.RateLimitDecision{}, fmt.Errorf("unexpected rate limit reply of %d values", len(out))
	}
	return pos.decision(limit, int(out[2]), int(out[1]), out[0] == 1), nil
}

var _ domain.RateLimiter = (*RedisLimiter)(nil)
