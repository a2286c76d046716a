package rate

import "errors"

var (
	// ErrRateLimited is returned by Allow when the key's window is over its limit.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidConfig is returned by constructors given a non-positive window or limit.
	ErrInvalidConfig = errors.New("rate: invalid config")
)
