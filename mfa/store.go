package mfa

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/shard"
)

// Store persists challenges.
type Store interface {
	// Save writes c. The record is kept until c.ExpiresAt plus retention so
	// late submissions observe ErrChallengeExpired rather than
	// ErrChallengeNotFound.
	Save(ctx context.Context, c *Challenge, retention time.Duration) error

	// Get returns a copy of the stored record without evaluating it.
	Get(ctx context.Context, id string) (*Challenge, error)

	// Consume atomically evaluates the challenge: it rejects used, expired
	// and exhausted records, runs check, then marks the record used on
	// success or counts a failed attempt when check returns
	// ErrChallengeCodeMismatch. check must be free of side effects because a
	// backend may run it more than once under contention.
	Consume(ctx context.Context, id string, now time.Time, maxAttempts int, check func(*Challenge) error) (*Challenge, error)
}

const memoryPruneThreshold = 1024

type memoryEntry struct {
	challenge Challenge
	purgeAt   time.Time
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	entries *shard.Map[memoryEntry]
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore. now may be nil.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{entries: shard.New[memoryEntry](shard.DefaultCount), now: now}
}

func (s *MemoryStore) Save(_ context.Context, c *Challenge, retention time.Duration) error {
	entry := memoryEntry{challenge: *c, purgeAt: c.ExpiresAt.Add(retention)}
	now := s.now()

	s.entries.Update(c.ID, func(items map[string]memoryEntry) {
		items[c.ID] = entry
		if len(items) > memoryPruneThreshold {
			for id, e := range items {
				if now.After(e.purgeAt) {
					delete(items, id)
				}
			}
		}
	})
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Challenge, error) {
	e, ok := s.entries.Get(id)
	if !ok || s.now().After(e.purgeAt) {
		return nil, ErrChallengeNotFound
	}
	c := e.challenge
	return &c, nil
}

func (s *MemoryStore) Consume(_ context.Context, id string, now time.Time, maxAttempts int, check func(*Challenge) error) (*Challenge, error) {
	var (
		out *Challenge
		err error
	)

	s.entries.Update(id, func(items map[string]memoryEntry) {
		e, ok := items[id]
		if !ok || s.now().After(e.purgeAt) {
			err = ErrChallengeNotFound
			return
		}
		c := e.challenge
		if err = gate(&c, now, maxAttempts); err != nil {
			return
		}

		var changed bool
		changed, err = settle(&c, check(&c), maxAttempts)
		if changed {
			e.challenge = c
			items[id] = e
		}
		if err == nil {
			out = &c
		}
	})

	return out, err
}

// Purge drops records past their retention and returns how many were removed.
func (s *MemoryStore) Purge() int {
	now := s.now()
	return s.entries.Sweep(func(_ string, e memoryEntry) bool {
		return now.After(e.purgeAt)
	})
}
