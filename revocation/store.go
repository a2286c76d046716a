// Package revocation records token identifiers that must be rejected before
// their natural expiry, and per-user epochs that invalidate every token a
// user holds in one step.
//
// Two backends are provided: MemoryStore for single-process deployments and
// tests, and RedisStore for fleets that share revocation state.
package revocation

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable wraps backend failures. Callers validating tokens must
	// treat it as a rejection.
	ErrUnavailable = errors.New("revocation store unavailable")
	// ErrEmptyTokenID is returned by Revoke when tokenID is blank.
	ErrEmptyTokenID = errors.New("revocation: empty token id")
	// ErrEmptyUserID is returned by the epoch operations when userID is blank.
	ErrEmptyUserID = errors.New("revocation: empty user id")
)

// Store is the revocation contract shared by every backend.
type Store interface {
	// Revoke records tokenID until expiresAt. It returns true only for the
	// call that created the entry; repeats return false and change nothing.
	// A tokenID whose expiresAt has already passed is not recorded.
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error)

	// IsRevoked reports whether tokenID has a live revocation entry.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// PurgeExpired removes entries whose expiresAt <= now and returns how
	// many were removed. Backends with native expiry may always return 0.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)

	// BumpUserEpoch advances userID's epoch and returns the new value.
	BumpUserEpoch(ctx context.Context, userID string) (uint64, error)

	// UserEpoch returns userID's current epoch, 0 if never bumped.
	UserEpoch(ctx context.Context, userID string) (uint64, error)
}
