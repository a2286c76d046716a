package authcore

import (
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/jwt"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningKey = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with key",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "jwt signing upper case accepted",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "HS512"
			},
			wantValid: true,
		},
		{
			name: "jwt signing rs256 rejected",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "refresh shorter than session",
			mutate: func(c *Config) {
				c.JWT.RefreshTTL = time.Hour
			},
			wantValid: false,
		},
		{
			name: "session ttl zero",
			mutate: func(c *Config) {
				c.JWT.SessionTTL = 0
			},
			wantValid: false,
		},
		{
			name: "rate limit window below one second",
			mutate: func(c *Config) {
				c.RateLimit.Window = 500 * time.Millisecond
			},
			wantValid: false,
		},
		{
			name: "rate limit zero limit",
			mutate: func(c *Config) {
				c.RateLimit.Limit = 0
			},
			wantValid: false,
		},
		{
			name: "rate limit disabled ignores bounds",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = false
				c.RateLimit.Limit = 0
				c.RateLimit.PathPrefix = ""
			},
			wantValid: true,
		},
		{
			name: "rate limit prefix must be a path",
			mutate: func(c *Config) {
				c.RateLimit.PathPrefix = "auth"
			},
			wantValid: false,
		},
		{
			name: "mfa ttl above one hour",
			mutate: func(c *Config) {
				c.MFA.ChallengeTTL = 2 * time.Hour
			},
			wantValid: false,
		},
		{
			name: "mfa totp digits seven",
			mutate: func(c *Config) {
				c.MFA.TOTPDigits = 7
			},
			wantValid: false,
		},
		{
			name: "mfa totp skew four",
			mutate: func(c *Config) {
				c.MFA.TOTPSkew = 4
			},
			wantValid: false,
		},
		{
			name: "mfa issuer blank",
			mutate: func(c *Config) {
				c.MFA.TOTPIssuer = "  "
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "latency histograms need metrics",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
			},
			wantValid: false,
		},
		{
			name: "negative purge interval",
			mutate: func(c *Config) {
				c.Revocation.PurgeInterval = -time.Second
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestConfigValidateSigningKey(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); !errors.Is(err, jwt.ErrSigningKeyMissing) {
		t.Fatalf("expected ErrSigningKeyMissing, got %v", err)
	}

	cfg.JWT.SigningKey = []byte("short")
	if err := cfg.Validate(); !errors.Is(err, jwt.ErrSigningKeyTooShort) {
		t.Fatalf("expected ErrSigningKeyTooShort, got %v", err)
	}
}

func TestConfigValidateReportsEveryProblem(t *testing.T) {
	cfg := validTestConfig()
	cfg.JWT.SessionTTL = 0
	cfg.MFA.MaxAttempts = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) || len(joined.Unwrap()) != 2 {
		t.Fatalf("expected two joined errors, got %v", err)
	}
}

func TestCloneConfigCopiesSigningKey(t *testing.T) {
	cfg := validTestConfig()
	clone := cloneConfig(cfg)
	cfg.JWT.SigningKey[0] = 'X'

	if clone.JWT.SigningKey[0] != '0' {
		t.Fatalf("clone shares signing key storage")
	}
}
