package authcore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
)

// Config is the complete engine configuration. Start from DefaultConfig and
// set JWT.SigningKey at minimum.
type Config struct {
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	MFA        MFAConfig
	Password   PasswordConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Revocation RevocationConfig
}

// JWTConfig controls token issuance and verification.
type JWTConfig struct {
	SessionTTL    time.Duration
	RefreshTTL    time.Duration
	SigningMethod string
	SigningKey    []byte
	Issuer        string
	Audience      string
	KeyID         string
}

// RateLimitConfig controls per-client throttling of the authentication
// surface. PathPrefix is consumed by the HTTP middleware.
type RateLimitConfig struct {
	Enabled    bool
	Window     time.Duration
	Limit      int
	PathPrefix string
}

// MFAConfig controls second-factor challenges.
type MFAConfig struct {
	ChallengeTTL time.Duration
	// Retention keeps consumed or expired challenges around so late
	// submissions are reported as expired rather than unknown.
	Retention   time.Duration
	MaxAttempts int
	CodeDigits  int
	TOTPIssuer  string
	TOTPPeriod  uint
	TOTPSkew    uint
	TOTPDigits  int
}

// PasswordConfig holds Argon2id parameters.
type PasswordConfig struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	// UpgradeOnLogin re-hashes a password with current parameters after a
	// successful login when the stored hash is weaker.
	UpgradeOnLogin bool
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// RevocationConfig controls cleanup of the in-memory revocation store.
// Redis entries expire natively.
type RevocationConfig struct {
	PurgeInterval time.Duration
}

// DefaultConfig returns production defaults: 24h sessions, 30-day refresh
// tokens, HS256, 10 requests per minute per client on /auth/, five-minute
// MFA challenges.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			SessionTTL:    24 * time.Hour,
			RefreshTTL:    30 * 24 * time.Hour,
			SigningMethod: string(jwt.MethodHS256),
		},
		RateLimit: RateLimitConfig{
			Enabled:    true,
			Window:     time.Minute,
			Limit:      10,
			PathPrefix: "/auth/",
		},
		MFA: MFAConfig{
			ChallengeTTL: 5 * time.Minute,
			Retention:    10 * time.Minute,
			MaxAttempts:  5,
			CodeDigits:   6,
			TOTPIssuer:   "authcore",
			TOTPPeriod:   30,
			TOTPSkew:     1,
			TOTPDigits:   6,
		},
		Password: PasswordConfig{
			Memory:           pw.Memory,
			Time:             pw.Time,
			Parallelism:      pw.Parallelism,
			SaltLength:       pw.SaltLength,
			KeyLength:        pw.KeyLength,
			MaxPasswordBytes: pw.MaxPasswordBytes,
			UpgradeOnLogin:   true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Revocation: RevocationConfig{
			PurgeInterval: time.Minute,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.SigningKey = cloneBytes(cfg.JWT.SigningKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks every section and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	// JWT
	if len(c.JWT.SigningKey) == 0 {
		errs = append(errs, jwt.ErrSigningKeyMissing)
	} else if len(c.JWT.SigningKey) < jwt.MinKeyLength {
		errs = append(errs, jwt.ErrSigningKeyTooShort)
	}
	if c.JWT.SessionTTL <= 0 {
		add("JWT SessionTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.SessionTTL {
		add("JWT RefreshTTL must be >= SessionTTL")
	}
	switch jwt.SigningMethod(strings.ToLower(c.JWT.SigningMethod)) {
	case jwt.MethodHS256, jwt.MethodHS384, jwt.MethodHS512:
	default:
		add("unsupported JWT signing method %q", c.JWT.SigningMethod)
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.Window < time.Second {
			add("RateLimit Window must be >= 1s")
		}
		if c.RateLimit.Limit < 1 {
			add("RateLimit Limit must be >= 1")
		}
		if !strings.HasPrefix(c.RateLimit.PathPrefix, "/") {
			add("RateLimit PathPrefix must start with /")
		}
	}

	// MFA
	if c.MFA.ChallengeTTL <= 0 || c.MFA.ChallengeTTL > time.Hour {
		add("MFA ChallengeTTL must be in (0, 1h]")
	}
	if c.MFA.Retention < 0 {
		add("MFA Retention must be >= 0")
	}
	if c.MFA.MaxAttempts < 1 || c.MFA.MaxAttempts > 20 {
		add("MFA MaxAttempts must be in [1, 20]")
	}
	if c.MFA.CodeDigits < 6 || c.MFA.CodeDigits > 10 {
		add("MFA CodeDigits must be in [6, 10]")
	}
	if c.MFA.TOTPPeriod == 0 || c.MFA.TOTPPeriod > 300 {
		add("MFA TOTPPeriod must be in [1, 300]")
	}
	if c.MFA.TOTPSkew > 3 {
		add("MFA TOTPSkew must be <= 3")
	}
	if c.MFA.TOTPDigits != 6 && c.MFA.TOTPDigits != 8 {
		add("MFA TOTPDigits must be 6 or 8")
	}
	if strings.TrimSpace(c.MFA.TOTPIssuer) == "" {
		add("MFA TOTPIssuer must not be empty")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		add("Audit BufferSize must be > 0")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		add("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Revocation
	if c.Revocation.PurgeInterval < 0 {
		add("Revocation PurgeInterval must be >= 0")
	}

	return errors.Join(errs...)
}
