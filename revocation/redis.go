package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokedKeyPrefix = "rvk:"
	epochKeyPrefix   = "rve:"
)

// RedisStore keeps revocation entries as Redis keys whose TTL equals the
// token's remaining lifetime. Epoch counters never expire.
type RedisStore struct {
	redis redis.UniversalClient
	now   func() time.Time
}

// NewRedisStore wraps client. now may be nil.
func NewRedisStore(client redis.UniversalClient, now func() time.Time) *RedisStore {
	if now == nil {
		now = time.Now
	}
	return &RedisStore{redis: client, now: now}
}

func (s *RedisStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	if tokenID == "" {
		return false, ErrEmptyTokenID
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return false, nil
	}
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}

	created, err := s.redis.SetNX(ctx, revokedKeyPrefix+tokenID, expiresAt.Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return created, nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.redis.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// PurgeExpired is a no-op: Redis expires entries on its own.
func (s *RedisStore) PurgeExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) BumpUserEpoch(ctx context.Context, userID string) (uint64, error) {
	if userID == "" {
		return 0, ErrEmptyUserID
	}
	n, err := s.redis.Incr(ctx, epochKeyPrefix+userID).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return uint64(n), nil
}

func (s *RedisStore) UserEpoch(ctx context.Context, userID string) (uint64, error) {
	if userID == "" {
		return 0, ErrEmptyUserID
	}
	n, err := s.redis.Get(ctx, epochKeyPrefix+userID).Uint64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}
