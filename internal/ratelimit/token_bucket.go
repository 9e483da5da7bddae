package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
)

// tokenBucketScript refills and spends one bucket atomically. It reads the
// clock from Redis itself so API replicas with skewed clocks agree.
//
// KEYS[1] bucket key
// ARGV    capacity, window in ms, cost
// returns {allowed, remaining, retry_after_ms}
var tokenBucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local rate = capacity / window_ms

local t = redis.call("TIME")
local now_ms = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts_ms")
local tokens = tonumber(state[1]) or capacity
local last_ms = tonumber(state[2]) or now_ms

tokens = math.min(capacity, tokens + math.max(0, now_ms - last_ms) * rate)

local allowed = 0
local retry_ms = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
else
  retry_ms = math.ceil((cost - tokens) / rate)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts_ms", now_ms)
redis.call("PEXPIRE", KEYS[1], window_ms * 2)

return {allowed, math.floor(tokens), retry_ms}
`)

// RedisTokenBucket shares one bucket per subject across every API replica.
type RedisTokenBucket struct {
	client    redis.UniversalClient
	capacity  int64
	windowMS  int64
	keyPrefix string
}

func NewRedisTokenBucket(client redis.UniversalClient, capacity int, window time.Duration, keyPrefix string) (*RedisTokenBucket, error) {
	switch {
	case client == nil:
		return nil, errors.New("redis client is required")
	case capacity <= 0:
		return nil, errors.New("capacity must be positive")
	case window <= 0:
		return nil, errors.New("window must be positive")
	}

	keyPrefix = strings.TrimRight(strings.TrimSpace(keyPrefix), ":")
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}

	return &RedisTokenBucket{
		client:    client,
		capacity:  int64(capacity),
		windowMS:  max(1, window.Milliseconds()),
		keyPrefix: keyPrefix,
	}, nil
}

func (l *RedisTokenBucket) key(subject string) string {
	return l.keyPrefix + ":" + normalizeSubject(subject)
}

func (l *RedisTokenBucket) Allow(ctx context.Context, subject string) (Decision, error) {
	raw, err := tokenBucketScript.Run(ctx, l.client, []string{l.key(subject)}, l.capacity, l.windowMS, 1).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("run token bucket script: %w", err)
	}
	return decodeDecision(raw)
}

func decodeDecision(raw []any) (Decision, error) {
	if len(raw) != 3 {
		return Decision{}, fmt.Errorf("token bucket returned %d values, want 3", len(raw))
	}

	var fields [3]int64
	for i, v := range raw {
		n, err := cast.ToInt64E(v)
		if err != nil {
			return Decision{}, fmt.Errorf("token bucket value %d: %w", i, err)
		}
		fields[i] = n
	}

	return Decision{
		Allowed:    fields[0] == 1,
		Remaining:  fields[1],
		RetryAfter: time.Duration(fields[2]) * time.Millisecond,
	}, nil
}
