package authcore

import (
	"errors"

	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
)

var (
	// ErrAuthenticationFailed is the only failure callers see for bad
	// credentials, bad or stale tokens, and failed MFA challenges.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrUnauthenticated is returned by operations that require a Principal
	// in the context when none is present.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrRateLimited is returned by Admit when the client has exhausted its
	// window budget.
	ErrRateLimited = rate.ErrRateLimited
	// ErrUnavailable wraps backend failures. Operations fail closed with it
	// rather than treat an unanswered check as passed.
	ErrUnavailable = errors.New("authentication backend unavailable")
	// ErrConfiguration wraps every error returned by Builder.Build.
	ErrConfiguration = errors.New("authcore: invalid configuration")

	ErrMalformedToken    = jwt.ErrMalformedToken
	ErrExpiredToken      = jwt.ErrExpiredToken
	ErrRevokedToken      = errors.New("token revoked")
	ErrTokenTypeMismatch = errors.New("token type mismatch")

	ErrUserNotFound              = errors.New("user not found")
	ErrAccountExists             = errors.New("account already exists")
	ErrInvalidRegistration       = errors.New("invalid registration request")
	ErrPasswordPolicy            = errors.New("password policy violation")
	ErrPasswordReuse             = errors.New("new password must be different from current password")
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	ErrInvalidMFAMethod          = errors.New("invalid mfa method")
	ErrEngineNotReady            = errors.New("engine not initialized")
)
