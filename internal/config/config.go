// Package config loads authd settings from the environment, an optional
// config file and defaults using Viper, and maps them onto authcore.Config.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// AUTHCORE_HTTP_ADDR.
const EnvPrefix = "AUTHCORE"

// Config holds process configuration for authd.
type Config struct {
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Dev switches on console logging and allows an ephemeral signing key.
	Dev bool `mapstructure:"DEV"`

	JWTSigningKey    string        `mapstructure:"JWT_SIGNING_KEY"`
	JWTSigningMethod string        `mapstructure:"JWT_SIGNING_METHOD"`
	JWTIssuer        string        `mapstructure:"JWT_ISSUER"`
	JWTAudience      string        `mapstructure:"JWT_AUDIENCE"`
	SessionTTL       time.Duration `mapstructure:"SESSION_TTL"`
	RefreshTTL       time.Duration `mapstructure:"REFRESH_TTL"`

	RateLimitEnabled bool          `mapstructure:"RATE_LIMIT_ENABLED"`
	RateLimitWindow  time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	RateLimitLimit   int           `mapstructure:"RATE_LIMIT_LIMIT"`
	RateLimitPrefix  string        `mapstructure:"RATE_LIMIT_PREFIX"`

	MFAChallengeTTL time.Duration `mapstructure:"MFA_CHALLENGE_TTL"`
	MFAMaxAttempts  int           `mapstructure:"MFA_MAX_ATTEMPTS"`
	TOTPIssuer      string        `mapstructure:"TOTP_ISSUER"`

	// RedisAddr empty means in-process state, or an embedded miniredis in
	// dev mode.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// DatabaseURL empty means the in-memory user store.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	AutoMigrate bool   `mapstructure:"AUTO_MIGRATE"`

	CORSOrigins  []string      `mapstructure:"CORS_ORIGINS"`
	OTLPEndpoint string        `mapstructure:"OTLP_ENDPOINT"`
	AuditLog     bool          `mapstructure:"AUDIT_LOG"`
	ShutdownWait time.Duration `mapstructure:"SHUTDOWN_WAIT"`
}

func setDefaults(v *viper.Viper) {
	def := authcore.DefaultConfig()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DEV", false)

	v.SetDefault("JWT_SIGNING_KEY", "")
	v.SetDefault("JWT_SIGNING_METHOD", def.JWT.SigningMethod)
	v.SetDefault("JWT_ISSUER", "authcore")
	v.SetDefault("JWT_AUDIENCE", "")
	v.SetDefault("SESSION_TTL", def.JWT.SessionTTL)
	v.SetDefault("REFRESH_TTL", def.JWT.RefreshTTL)

	v.SetDefault("RATE_LIMIT_ENABLED", def.RateLimit.Enabled)
	v.SetDefault("RATE_LIMIT_WINDOW", def.RateLimit.Window)
	v.SetDefault("RATE_LIMIT_LIMIT", def.RateLimit.Limit)
	v.SetDefault("RATE_LIMIT_PREFIX", def.RateLimit.PathPrefix)

	v.SetDefault("MFA_CHALLENGE_TTL", def.MFA.ChallengeTTL)
	v.SetDefault("MFA_MAX_ATTEMPTS", def.MFA.MaxAttempts)
	v.SetDefault("TOTP_ISSUER", def.MFA.TOTPIssuer)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AUTO_MIGRATE", false)

	v.SetDefault("CORS_ORIGINS", []string{})
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("AUDIT_LOG", true)
	v.SetDefault("SHUTDOWN_WAIT", 10*time.Second)
}

// Load reads path when given, otherwise .env in the working directory if
// present. Environment variables override both. dev forces Dev on before
// validation.
func Load(path string, dev bool) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		_ = v.ReadInConfig()
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	if dev {
		cfg.Dev = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks process-level settings. Engine settings are checked by
// authcore when the engine is built.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("config: HTTP_ADDR must be set"))
	}
	if c.JWTSigningKey == "" && !c.Dev {
		errs = append(errs, errors.New("config: JWT_SIGNING_KEY must be set outside dev mode"))
	}
	if c.RedisDB < 0 {
		errs = append(errs, errors.New("config: REDIS_DB must be >= 0"))
	}
	if c.AutoMigrate && c.DatabaseURL == "" {
		errs = append(errs, errors.New("config: AUTO_MIGRATE requires DATABASE_URL"))
	}
	if c.ShutdownWait < 0 {
		errs = append(errs, errors.New("config: SHUTDOWN_WAIT must be >= 0"))
	}
	return errors.Join(errs...)
}

// Engine maps the loaded settings onto authcore defaults.
func (c *Config) Engine() authcore.Config {
	cfg := authcore.DefaultConfig()

	cfg.JWT.SigningKey = []byte(c.JWTSigningKey)
	cfg.JWT.SigningMethod = c.JWTSigningMethod
	cfg.JWT.Issuer = c.JWTIssuer
	cfg.JWT.Audience = c.JWTAudience
	cfg.JWT.SessionTTL = c.SessionTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL

	cfg.RateLimit.Enabled = c.RateLimitEnabled
	cfg.RateLimit.Window = c.RateLimitWindow
	cfg.RateLimit.Limit = c.RateLimitLimit
	cfg.RateLimit.PathPrefix = c.RateLimitPrefix

	cfg.MFA.ChallengeTTL = c.MFAChallengeTTL
	cfg.MFA.MaxAttempts = c.MFAMaxAttempts
	cfg.MFA.TOTPIssuer = c.TOTPIssuer

	cfg.Audit.Enabled = c.AuditLog
	return cfg
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
