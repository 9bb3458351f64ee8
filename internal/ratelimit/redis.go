package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow trims expired hits from the sorted set, then either rejects
// (returning the oldest hit's score) or records the new hit.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  return {0, count, tonumber(oldest[2])}
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, count + 1, 0}
`)

// RedisStore shares sliding-window counters across replicas through Redis
// sorted sets.
type RedisStore struct {
	client redis.Scripter
	prefix string
}

// NewRedisStore returns a store that keeps its counters under "ratelimit:" keys.
func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

// Hit records a hit for key unless limit hits already fall inside window.
func (s *RedisStore) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error) {
	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()
	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString())

	res, err := slidingWindow.Run(ctx, s.client, []string{s.prefix + key}, nowMs, windowMs, limit, member).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis sliding window: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("redis sliding window: unexpected reply %v", res)
	}

	if res[0] == 1 {
		return Decision{Allowed: true, Limit: limit, Remaining: limit - int(res[1])}, nil
	}
	retry := time.Duration(res[2]+windowMs-nowMs) * time.Millisecond
	if retry < time.Second {
		retry = time.Second
	}
	return Decision{Allowed: false, Limit: limit, RetryAfter: retry}, nil
}
