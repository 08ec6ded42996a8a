// Package ratelimit implements a Redis-backed token bucket shared by the
// admin HTTP API and the seat connection dispatcher.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-seat-server/internal/config"
)

// script refills the bucket by whole intervals and takes one token.  It
// returns {allowed, remaining, retry_after_ms}.
var script = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])

    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    if interval_ms > 0 and refill_tokens > 0 then
        local elapsed = math.max(0, now_ms - last_refill)
        local intervals = math.floor(elapsed / interval_ms)
        if intervals > 0 then
            tokens = math.min(capacity, tokens + (intervals * refill_tokens))
            last_refill = last_refill + (intervals * interval_ms)
        end
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        local until_next = interval_ms - (now_ms - last_refill)
        if until_next < 0 then until_next = 0 end
        retry_after_ms = until_next
    end

    redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill, 'capacity', capacity)
    redis.call('EXPIRE', key, ttl_seconds)

    return { allowed, tokens, retry_after_ms }
`)

// Decision is the outcome of one Take.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Bucket takes tokens from per-key buckets in Redis.
type Bucket struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
}

// New returns a bucket.  A nil client or a disabled config allows
// everything.
func New(cfg config.RateLimitConfig, rdb *redis.Client) *Bucket {
	return &Bucket{cfg: cfg, rdb: rdb}
}

// Config returns the bucket settings.
func (b *Bucket) Config() config.RateLimitConfig { return b.cfg }

// Active reports whether Take consults Redis at all.
func (b *Bucket) Active() bool { return b != nil && b.cfg.Enabled && b.rdb != nil }

// Key joins the configured prefix and parts with ':'.
func (b *Bucket) Key(parts ...string) string {
	return strings.Join(append([]string{b.cfg.Prefix}, parts...), ":")
}

// Take consumes one token from key.  On a Redis error the request is
// allowed and the error returned for logging.
func (b *Bucket) Take(ctx context.Context, key string) (Decision, error) {
	if !b.Active() {
		return Decision{Allowed: true, Remaining: -1}, nil
	}
	args := []interface{}{
		time.Now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(b.cfg.TTL / time.Second),
	}
	vals, err := script.Run(ctx, b.rdb, []string{key}, args...).Result()
	if err != nil {
		return Decision{Allowed: true, Remaining: -1}, fmt.Errorf("ratelimit %s: %w", key, err)
	}
	d, err := decode(vals)
	if err != nil {
		return Decision{Allowed: true, Remaining: -1}, fmt.Errorf("ratelimit %s: %w", key, err)
	}
	return d, nil
}

func decode(vals interface{}) (Decision, error) {
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return Decision{}, fmt.Errorf("unexpected script result %#v", vals)
	}
	return Decision{
		Allowed:    asInt64(arr[0]) == 1,
		Remaining:  asInt64(arr[1]),
		RetryAfter: time.Duration(asInt64(arr[2])) * time.Millisecond,
	}, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64: return t
	case int32: return int64(t)
	case int: return int64(t)
	case float64: return int64(t)
	case float32: return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
