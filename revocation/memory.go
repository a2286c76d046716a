package revocation

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/shard"
)

// MemoryStore keeps revocation state in sharded in-process maps.
type MemoryStore struct {
	entries *shard.Map[time.Time]
	epochs  *shard.Map[uint64]
	now     func() time.Time
}

// MemoryOption customizes a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithShards sets the shard count.
func WithShards(n int) MemoryOption {
	return func(s *MemoryStore) {
		s.entries = shard.New[time.Time](n)
		s.epochs = shard.New[uint64](n)
	}
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: shard.New[time.Time](shard.DefaultCount),
		epochs:  shard.New[uint64](shard.DefaultCount),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Revoke(_ context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	if tokenID == "" {
		return false, ErrEmptyTokenID
	}
	if !expiresAt.After(s.now()) {
		return false, nil
	}

	created := false
	s.entries.Update(tokenID, func(items map[string]time.Time) {
		if _, ok := items[tokenID]; ok {
			return
		}
		items[tokenID] = expiresAt
		created = true
	})
	return created, nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, ok := s.entries.Get(tokenID)
	return ok, nil
}

func (s *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	return s.entries.Sweep(func(_ string, expiresAt time.Time) bool {
		return !expiresAt.After(now)
	}), nil
}

func (s *MemoryStore) BumpUserEpoch(_ context.Context, userID string) (uint64, error) {
	if userID == "" {
		return 0, ErrEmptyUserID
	}

	var next uint64
	s.epochs.Update(userID, func(items map[string]uint64) {
		next = items[userID] + 1
		items[userID] = next
	})
	return next, nil
}

func (s *MemoryStore) UserEpoch(_ context.Context, userID string) (uint64, error) {
	if userID == "" {
		return 0, ErrEmptyUserID
	}
	epoch, _ := s.epochs.Get(userID)
	return epoch, nil
}

// Len returns the number of live and not yet purged entries.
func (s *MemoryStore) Len() int {
	return s.entries.Len()
}
