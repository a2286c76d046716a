// Package mfa implements the second step of a two-step login: single-use,
// short-lived challenges answered with either a TOTP code or a code sent to
// the user's email address.
//
// A challenge moves from unused to used exactly once. Verification and the
// used transition happen in one atomic Store operation, so two concurrent
// submissions of a correct code yield one success and one
// ErrChallengeAlreadyUsed.
package mfa

import (
	"errors"
	"time"
)

// Method is the secondary factor a challenge expects.
type Method string

const (
	// MethodNone means the user has no second factor enrolled.
	MethodNone Method = ""
	// MethodTOTP expects a time-based code from an authenticator app.
	MethodTOTP Method = "totp"
	// MethodEmailCode expects a numeric code delivered by email.
	MethodEmailCode Method = "email_code"
)

// Valid reports whether m names a supported factor.
func (m Method) Valid() bool {
	return m == MethodTOTP || m == MethodEmailCode
}

var (
	ErrChallengeNotFound         = errors.New("mfa challenge not found")
	ErrChallengeExpired          = errors.New("mfa challenge expired")
	ErrChallengeAlreadyUsed      = errors.New("mfa challenge already used")
	ErrChallengeCodeMismatch     = errors.New("mfa code mismatch")
	ErrChallengeAttemptsExceeded = errors.New("mfa challenge attempts exceeded")
	ErrTOTPReplay                = errors.New("totp code already used")
	ErrUnsupportedMethod         = errors.New("unsupported mfa method")
	ErrDeliveryFailed            = errors.New("mfa code delivery failed")
	ErrNotConfigured             = errors.New("mfa factor not configured")
	ErrUnavailable               = errors.New("mfa store unavailable")
)

// Challenge is a pending or completed second-factor challenge. CodeHash is
// empty for TOTP challenges.
type Challenge struct {
	ID        string
	UserID    string
	Email     string
	Method    Method
	CodeHash  string
	ExpiresAt time.Time
	Used      bool
	Attempts  int
}

// Expired reports whether now is at or past ExpiresAt.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// gate applies the state checks every Store.Consume performs before the
// caller's check runs.
func gate(c *Challenge, now time.Time, maxAttempts int) error {
	switch {
	case c.Expired(now):
		return ErrChallengeExpired
	case c.Used:
		return ErrChallengeAlreadyUsed
	case maxAttempts > 0 && c.Attempts >= maxAttempts:
		return ErrChallengeAttemptsExceeded
	}
	return nil
}

// settle applies the outcome of check to c. It reports whether c changed
// and the error Consume should return.
func settle(c *Challenge, checkErr error, maxAttempts int) (bool, error) {
	if checkErr == nil {
		c.Used = true
		return true, nil
	}
	if !errors.Is(checkErr, ErrChallengeCodeMismatch) {
		return false, checkErr
	}
	c.Attempts++
	if maxAttempts > 0 && c.Attempts >= maxAttempts {
		return true, ErrChallengeAttemptsExceeded
	}
	return true, checkErr
}
