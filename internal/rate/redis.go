package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rl:"

// fixedWindowScript increments KEYS[1], starts its expiry on the first hit
// of a window and returns {count, remaining ttl in ms}.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisLimiter is a fixed-window limiter shared across processes through
// Redis. The window ends when the key expires, so a window is replaced once
// its age reaches W.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
	now    func() time.Time
}

// NewRedisLimiter returns a RedisLimiter backed by client.
func NewRedisLimiter(client redis.UniversalClient, cfg Config) (*RedisLimiter, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &RedisLimiter{redis: client, config: cfg, now: time.Now}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := fixedWindowScript.Run(ctx, l.redis, []string{keyPrefix + key}, l.config.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("%w: unexpected script reply %v", ErrRedisUnavailable, res)
	}

	count := int(res[0])
	d := Decision{
		Allowed: count <= l.config.Limit,
		Count:   count,
		Limit:   l.config.Limit,
		ResetAt: l.now().Add(time.Duration(res[1]) * time.Millisecond),
	}
	if !d.Allowed {
		return d, ErrRateLimited
	}
	return d, nil
}
