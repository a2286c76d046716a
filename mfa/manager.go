package mfa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/authcore/internal"
	"github.com/pquerna/otp"
)

// CodeSender delivers one-time codes. Implementations own transport,
// templating and retries.
type CodeSender interface {
	SendCode(ctx context.Context, email, code string) error
}

// SecretSource resolves a user's enrolled TOTP secret.
type SecretSource interface {
	TOTPSecret(ctx context.Context, userID string) (string, error)
}

// Config tunes challenge lifetimes and factor parameters.
type Config struct {
	ChallengeTTL time.Duration
	Retention    time.Duration
	MaxAttempts  int
	CodeDigits   int
	TOTPPeriod   uint
	TOTPSkew     uint
	TOTPDigits   otp.Digits
	Now          func() time.Time
}

// DefaultConfig returns five-minute challenges, five attempts, six-digit
// email codes and RFC 6238 TOTP with one step of skew.
func DefaultConfig() Config {
	return Config{
		ChallengeTTL: 5 * time.Minute,
		Retention:    10 * time.Minute,
		MaxAttempts:  5,
		CodeDigits:   6,
		TOTPPeriod:   30,
		TOTPSkew:     1,
		TOTPDigits:   otp.DigitsSix,
	}
}

// Validate checks the configured bounds.
func (c Config) Validate() error {
	if c.ChallengeTTL <= 0 || c.ChallengeTTL > time.Hour {
		return errors.New("mfa: challenge TTL must be in (0, 1h]")
	}
	if c.Retention < 0 {
		return errors.New("mfa: retention must be >= 0")
	}
	if c.MaxAttempts < 1 || c.MaxAttempts > 20 {
		return errors.New("mfa: max attempts must be in [1, 20]")
	}
	if c.CodeDigits < 6 || c.CodeDigits > 10 {
		return errors.New("mfa: code digits must be in [6, 10]")
	}
	if c.TOTPPeriod == 0 || c.TOTPPeriod > 300 {
		return errors.New("mfa: totp period must be in [1, 300]")
	}
	if c.TOTPSkew > 3 {
		return errors.New("mfa: totp skew must be <= 3")
	}
	if c.TOTPDigits != otp.DigitsSix && c.TOTPDigits != otp.DigitsEight {
		return errors.New("mfa: totp digits must be 6 or 8")
	}
	return nil
}

// Option customizes a Manager.
type Option func(*Manager)

// WithCodeSender enables the email-code factor.
func WithCodeSender(s CodeSender) Option {
	return func(m *Manager) { m.sender = s }
}

// WithSecretSource enables the TOTP factor.
func WithSecretSource(s SecretSource) Option {
	return func(m *Manager) { m.secrets = s }
}

// WithReplayGuard enables rejection of reused TOTP steps.
func WithReplayGuard(g ReplayGuard) Option {
	return func(m *Manager) { m.replay = g }
}

// Manager issues and verifies challenges.
type Manager struct {
	config  Config
	store   Store
	sender  CodeSender
	secrets SecretSource
	replay  ReplayGuard
}

// NewManager validates cfg and returns a Manager backed by store.
func NewManager(cfg Config, store Store, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("mfa: store required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{config: cfg, store: store}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Supports reports whether method can be issued with the configured
// collaborators.
func (m *Manager) Supports(method Method) bool {
	switch method {
	case MethodTOTP:
		return m.secrets != nil
	case MethodEmailCode:
		return m.sender != nil
	}
	return false
}

// IssueRequest names the user and factor for a new challenge.
type IssueRequest struct {
	UserID string
	Email  string
	Method Method
}

// Issued is returned to the caller of Issue. ChallengeID is the opaque
// challenge token handed to the client.
type Issued struct {
	ChallengeID string
	Method      Method
	ExpiresAt   time.Time
	MaskedEmail string
}

// Issue creates and persists a challenge. For MethodEmailCode it generates
// a code, stores only its hash and hands the plaintext to the CodeSender.
func (m *Manager) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	if req.UserID == "" {
		return nil, errors.New("mfa: user id required")
	}
	switch req.Method {
	case MethodTOTP:
		if m.secrets == nil {
			return nil, fmt.Errorf("%w: totp", ErrNotConfigured)
		}
	case MethodEmailCode:
		if m.sender == nil || req.Email == "" {
			return nil, fmt.Errorf("%w: email_code", ErrNotConfigured)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}

	id, err := internal.NewChallengeID()
	if err != nil {
		return nil, err
	}

	c := &Challenge{
		ID:        id,
		UserID:    req.UserID,
		Email:     req.Email,
		Method:    req.Method,
		ExpiresAt: m.config.Now().Add(m.config.ChallengeTTL),
	}

	var code string
	if req.Method == MethodEmailCode {
		code, err = internal.NewOTP(m.config.CodeDigits)
		if err != nil {
			return nil, err
		}
		c.CodeHash = internal.HashCode(code)
	}

	if err := m.store.Save(ctx, c, m.config.Retention); err != nil {
		return nil, err
	}

	issued := &Issued{ChallengeID: id, Method: req.Method, ExpiresAt: c.ExpiresAt}
	if req.Method == MethodEmailCode {
		if err := m.sender.SendCode(ctx, req.Email, code); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}
		issued.MaskedEmail = MaskEmail(req.Email)
	}
	return issued, nil
}

// Verify checks code against the challenge and, on success, marks it used.
// It returns the consumed challenge so the caller can resolve the user.
func (m *Manager) Verify(ctx context.Context, challengeID, code string) (*Challenge, error) {
	if challengeID == "" {
		return nil, ErrChallengeNotFound
	}
	now := m.config.Now()

	peek, err := m.store.Get(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	var secret string
	if peek.Method == MethodTOTP && !peek.Used && !peek.Expired(now) {
		if m.secrets == nil {
			return nil, fmt.Errorf("%w: totp", ErrNotConfigured)
		}
		secret, err = m.secrets.TOTPSecret(ctx, peek.UserID)
		if err != nil {
			return nil, err
		}
	}

	code = strings.TrimSpace(code)
	var step int64
	check := func(c *Challenge) error {
		switch c.Method {
		case MethodEmailCode:
			if !internal.CodeMatches(code, c.CodeHash) {
				return ErrChallengeCodeMismatch
			}
		case MethodTOTP:
			if c.UserID != peek.UserID {
				return ErrChallengeCodeMismatch
			}
			matched, ok := m.matchTOTP(secret, code, now)
			if !ok {
				return ErrChallengeCodeMismatch
			}
			step = matched
		default:
			return ErrChallengeCodeMismatch
		}
		return nil
	}

	consumed, err := m.store.Consume(ctx, challengeID, now, m.config.MaxAttempts, check)
	if err != nil {
		return nil, err
	}

	if consumed.Method == MethodTOTP && m.replay != nil {
		fresh, err := m.replay.Claim(ctx, consumed.UserID, step, m.replayWindow())
		if err != nil {
			return nil, err
		}
		if !fresh {
			return nil, ErrTOTPReplay
		}
	}
	return consumed, nil
}

// MaskEmail keeps the first character of the local part and the domain:
// "alice@example.com" becomes "a***@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	_, size := utf8.DecodeRuneInString(email)
	return email[:size] + "***" + email[at:]
}
