package rate

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/shard"
)

// pruneThreshold is the shard size above which Allow drops stale windows
// from the shard it already holds locked.
const pruneThreshold = 1024

type window struct {
	start time.Time
	count int
}

// MemoryLimiter is an in-process fixed-window limiter.
type MemoryLimiter struct {
	config  Config
	windows *shard.Map[window]
	now     func() time.Time
}

// NewMemoryLimiter returns a MemoryLimiter. now may be nil.
func NewMemoryLimiter(cfg Config, now func() time.Time) (*MemoryLimiter, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		config:  cfg,
		windows: shard.New[window](shard.DefaultCount),
		now:     now,
	}, nil
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	var w window
	l.windows.Update(key, func(items map[string]window) {
		current, ok := items[key]
		if !ok || now.Sub(current.start) > l.config.Window {
			current = window{start: now}
		}
		current.count++
		items[key] = current
		w = current

		if len(items) > pruneThreshold {
			for k, other := range items {
				if now.Sub(other.start) > l.config.Window {
					delete(items, k)
				}
			}
		}
	})

	d := Decision{
		Allowed: w.count <= l.config.Limit,
		Count:   w.count,
		Limit:   l.config.Limit,
		ResetAt: w.start.Add(l.config.Window),
	}
	if !d.Allowed {
		return d, ErrRateLimited
	}
	return d, nil
}

// Prune drops every window older than the configured length and returns the
// number removed.
func (l *MemoryLimiter) Prune() int {
	now := l.now()
	return l.windows.Sweep(func(_ string, w window) bool {
		return now.Sub(w.start) > l.config.Window
	})
}
