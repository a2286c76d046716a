package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/mfa"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/revocation"
	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider UserProvider
	auditSink    AuditSink
	codeSender   mfa.CodeSender
	logger       zerolog.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis selects Redis-backed revocation, rate limiting and MFA state.
// A nil client keeps the in-process stores.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the required user persistence collaborator.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithAuditSink sets where audit events go when Config.Audit is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithCodeSender enables the email-code MFA factor.
func (b *Builder) WithCodeSender(sender mfa.CodeSender) *Builder {
	b.codeSender = sender
	return b
}

// WithLogger sets the fallback logger. Request-scoped loggers attached with
// zerolog's WithContext take precedence.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for every engine component.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// MustBuild is Build for program initialization. It panics on error.
func (b *Builder) MustBuild() *Engine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// Build validates the configuration and wires every component. All errors
// wrap ErrConfiguration.
func (b *Builder) Build() (*Engine, error) {
	e, err := b.build()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return e, nil
}

func (b *Builder) build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	cfg.JWT.SigningMethod = strings.ToLower(cfg.JWT.SigningMethod)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config: cloneConfig(cfg),
		users:  b.userProvider,
		logger: b.logger.With().Str("component", "authcore").Logger(),
		now:    now,
	}

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		SessionTTL:    cfg.JWT.SessionTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		SigningKey:    cloneBytes(cfg.JWT.SigningKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwt = jm

	// -------- PASSWORDS --------
	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}
	engine.hasher = ph

	// Unknown emails are verified against this hash so they cost the same
	// as a wrong password.
	dummy, err := ph.Hash("dummy-" + uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("derive dummy hash: %w", err)
	}
	engine.dummyHash = dummy

	// -------- STATE BACKENDS --------
	var (
		mfaStore mfa.Store
		replay   mfa.ReplayGuard
	)
	rateCfg := rate.Config{Window: cfg.RateLimit.Window, Limit: cfg.RateLimit.Limit}
	if b.redis != nil {
		engine.revocations = revocation.NewRedisStore(b.redis, now)
		mfaStore = mfa.NewRedisStore(b.redis, now)
		replay = mfa.NewRedisReplayGuard(b.redis)
		if cfg.RateLimit.Enabled {
			limiter, err := rate.NewRedisLimiter(b.redis, rateCfg)
			if err != nil {
				return nil, err
			}
			engine.limiter = limiter
		}
	} else {
		engine.revocations = revocation.NewMemoryStore(revocation.WithClock(now))
		mfaStore = mfa.NewMemoryStore(now)
		replay = mfa.NewMemoryReplayGuard(now)
		if cfg.RateLimit.Enabled {
			limiter, err := rate.NewMemoryLimiter(rateCfg, now)
			if err != nil {
				return nil, err
			}
			engine.limiter = limiter
		}
	}

	// -------- MFA --------
	opts := []mfa.Option{
		mfa.WithSecretSource(userSecrets{users: b.userProvider}),
		mfa.WithReplayGuard(replay),
	}
	if b.codeSender != nil {
		opts = append(opts, mfa.WithCodeSender(b.codeSender))
	}
	mm, err := mfa.NewManager(mfa.Config{
		ChallengeTTL: cfg.MFA.ChallengeTTL,
		Retention:    cfg.MFA.Retention,
		MaxAttempts:  cfg.MFA.MaxAttempts,
		CodeDigits:   cfg.MFA.CodeDigits,
		TOTPPeriod:   cfg.MFA.TOTPPeriod,
		TOTPSkew:     cfg.MFA.TOTPSkew,
		TOTPDigits:   otp.Digits(cfg.MFA.TOTPDigits),
		Now:          now,
	}, mfaStore, opts...)
	if err != nil {
		return nil, err
	}
	engine.mfa = mm

	// -------- OBSERVABILITY --------
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	if _, ok := engine.revocations.(*revocation.MemoryStore); ok && cfg.Revocation.PurgeInterval > 0 {
		engine.janitor = revocation.StartJanitor(
			context.Background(),
			engine.revocations,
			cfg.Revocation.PurgeInterval,
			engine.logger,
			func(n int) { engine.metrics.Add(MetricRevocationPurged, uint64(n)) },
		)
	}

	b.built = true

	return engine, nil
}
