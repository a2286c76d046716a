package mfa

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore/internal/shard"
	"github.com/redis/go-redis/v9"
)

const replayKeyPrefix = "mtr:"

// ReplayGuard remembers accepted TOTP time steps per user.
type ReplayGuard interface {
	// Claim records (userID, step) for ttl. It returns false when the pair
	// was already claimed and has not yet expired.
	Claim(ctx context.Context, userID string, step int64, ttl time.Duration) (bool, error)
}

func replayKey(userID string, step int64) string {
	return userID + ":" + strconv.FormatInt(step, 10)
}

// MemoryReplayGuard is an in-process ReplayGuard.
type MemoryReplayGuard struct {
	claims *shard.Map[time.Time]
	now    func() time.Time
}

// NewMemoryReplayGuard returns an empty guard. now may be nil.
func NewMemoryReplayGuard(now func() time.Time) *MemoryReplayGuard {
	if now == nil {
		now = time.Now
	}
	return &MemoryReplayGuard{claims: shard.New[time.Time](shard.DefaultCount), now: now}
}

func (g *MemoryReplayGuard) Claim(_ context.Context, userID string, step int64, ttl time.Duration) (bool, error) {
	key := replayKey(userID, step)
	now := g.now()

	fresh := false
	g.claims.Update(key, func(items map[string]time.Time) {
		if until, ok := items[key]; ok && now.Before(until) {
			return
		}
		items[key] = now.Add(ttl)
		fresh = true

		if len(items) > memoryPruneThreshold {
			for k, until := range items {
				if !now.Before(until) {
					delete(items, k)
				}
			}
		}
	})
	return fresh, nil
}

// RedisReplayGuard stores claims as SET NX keys with a TTL.
type RedisReplayGuard struct {
	redis redis.UniversalClient
}

// NewRedisReplayGuard wraps client.
func NewRedisReplayGuard(client redis.UniversalClient) *RedisReplayGuard {
	return &RedisReplayGuard{redis: client}
}

func (g *RedisReplayGuard) Claim(ctx context.Context, userID string, step int64, ttl time.Duration) (bool, error) {
	ok, err := g.redis.SetNX(ctx, replayKeyPrefix+replayKey(userID, step), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}
