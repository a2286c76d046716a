package authcore

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/mfa"
	"github.com/rs/zerolog"
)

// Principal is the authenticated caller for the duration of one request.
// It is derived from a validated session token and never persisted.
type Principal struct {
	UserID string   `json:"userId"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`

	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// HasRole reports whether the principal holds role.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// UserRecord is what a UserProvider returns. PasswordHash is an Argon2id
// PHC string or a legacy bcrypt hash.
type UserRecord struct {
	UserID       string
	Email        string
	PasswordHash string
	Roles        []string
	MFAMethod    mfa.Method
	TOTPSecret   string
}

// CreateUserInput is passed to UserProvider.CreateUser during Register.
type CreateUserInput struct {
	Email        string
	PasswordHash string
	Roles        []string
}

// UserProvider is the persistence collaborator for user accounts.
//
// Lookups return ErrUserNotFound when no account matches. CreateUser returns
// ErrAccountExists when the email is taken. Any other error is treated as a
// backend failure.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	CreateUser(ctx context.Context, in CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	UpdateMFA(ctx context.Context, userID string, method mfa.Method, totpSecret string) error
}

// User is the public view of an account returned with a token pair.
type User struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// TokenPair is a freshly issued session token and refresh token.
type TokenPair struct {
	SessionToken     string    `json:"token"`
	RefreshToken     string    `json:"refreshToken"`
	SessionExpiresAt time.Time `json:"expiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	User             User      `json:"user"`
}

// LoginResult holds either Tokens or an MFA challenge, never both.
type LoginResult struct {
	Tokens *TokenPair

	MFARequired       bool
	MFAChallengeToken string
	MFAMethod         mfa.Method
	MaskedEmailHint   string
}

// RegisterRequest is the input to Register.
type RegisterRequest struct {
	Email    string
	Password string
}

// Admission is the outcome of a rate-limit check.
type Admission struct {
	Allowed bool
	Count   int
	Limit   int
	ResetAt time.Time
}

// RetryAfter is the whole-second wait until the window resets, never less
// than one second.
func (a Admission) RetryAfter(now time.Time) time.Duration {
	return rate.Decision{ResetAt: a.ResetAt}.RetryAfter(now)
}

// TOTPEnrollment is the secret and otpauth URL shown to a user enrolling an
// authenticator app.
type TOTPEnrollment = mfa.Enrollment

// AuditEvent is the canonical audit event emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events.
type AuditSink = internalaudit.Sink

// NoOpSink discards audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink delivers audit events on a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes audit events as JSON lines.
type JSONWriterSink = internalaudit.JSONWriterSink

// LogSink writes audit events through zerolog.
type LogSink = internalaudit.LogSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return internalaudit.NewLogSink(logger)
}
