package rate

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultWindow is the window length used when Config.Window is zero.
	DefaultWindow = time.Minute
	// DefaultLimit is the per-window request budget used when Config.Limit is zero.
	DefaultLimit = 10
)

// Config holds limiter tuning parameters.
type Config struct {
	Window time.Duration
	Limit  int
}

func (c Config) withDefaults() (Config, error) {
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	if c.Limit == 0 {
		c.Limit = DefaultLimit
	}
	if c.Window < time.Millisecond || c.Limit < 0 {
		return c, fmt.Errorf("%w: window=%s limit=%d", ErrInvalidConfig, c.Window, c.Limit)
	}
	return c, nil
}

// Decision describes the outcome of one Allow call.
type Decision struct {
	Allowed bool
	Count   int
	Limit   int
	// ResetAt is when the current window stops counting.
	ResetAt time.Time
}

// RetryAfter returns how long the caller should wait before the window
// resets, rounded up to whole seconds and never less than one.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return time.Second
	}
	if rem := wait % time.Second; rem != 0 {
		wait += time.Second - rem
	}
	return wait
}

// Limiter counts requests per key.
type Limiter interface {
	// Allow records one request for key. It returns ErrRateLimited, along
	// with a populated Decision, when the request exceeds the window budget.
	Allow(ctx context.Context, key string) (Decision, error)
}
