package commands

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/mfa"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/MrEthical07/authcore/store/postgres"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// stack is an engine plus the backends it was built on. close releases
// them in reverse order.
type stack struct {
	engine  *authcore.Engine
	closers []func()
}

func (s *stack) close(ctx context.Context, log zerolog.Logger) {
	if s.engine != nil {
		if err := s.engine.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("engine close")
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func buildStack(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stack, error) {
	s := &stack{}
	fail := func(err error) (*stack, error) {
		s.close(ctx, log)
		return nil, err
	}

	engineCfg := cfg.Engine()
	if len(engineCfg.JWT.SigningKey) == 0 {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
		engineCfg.JWT.SigningKey = key
		log.Warn().Msg("using an ephemeral signing key; tokens will not survive a restart")
	}

	builder := authcore.New().
		WithConfig(engineCfg).
		WithLogger(log)

	rdb, err := openRedis(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}
	if rdb != nil {
		s.closers = append(s.closers, func() { _ = rdb.Close() })
		builder = builder.WithRedis(rdb)
	}

	users, closeUsers, err := openUsers(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}
	if closeUsers != nil {
		s.closers = append(s.closers, closeUsers)
	}
	builder = builder.WithUserProvider(users)

	if cfg.AuditLog {
		builder = builder.WithAuditSink(authcore.NewLogSink(log.With().Str("component", "audit").Logger()))
	}
	if cfg.Dev {
		builder = builder.WithCodeSender(logCodeSender{log: log})
	}

	engine, err := builder.Build()
	if err != nil {
		return fail(err)
	}
	s.engine = engine
	return s, nil
}

// openRedis connects to REDIS_ADDR. Without an address it returns nil
// (in-process state), or an embedded miniredis in dev mode.
func openRedis(ctx context.Context, cfg *config.Config, log zerolog.Logger) (redis.UniversalClient, error) {
	addr := cfg.RedisAddr
	var mr *miniredis.Miniredis
	if addr == "" {
		if !cfg.Dev {
			log.Info().Msg("no redis configured, using in-process state")
			return nil, nil
		}
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		log.Info().Str("addr", addr).Msg("using embedded miniredis")
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if mr != nil {
		rdb = closeWith{UniversalClient: rdb, after: mr.Close}
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	log.Info().Str("addr", addr).Msg("connected to redis")
	return rdb, nil
}

// closeWith runs after once the client is closed.
type closeWith struct {
	redis.UniversalClient
	after func()
}

func (c closeWith) Close() error {
	err := c.UniversalClient.Close()
	c.after()
	return err
}

func openUsers(ctx context.Context, cfg *config.Config, log zerolog.Logger) (authcore.UserProvider, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info().Msg("no database configured, using in-memory users")
		return memory.NewUsers(), nil, nil
	}

	pool, err := postgres.NewPool(ctx, &postgres.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		return nil, nil, err
	}
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info().Msg("database migrations completed")
	}
	log.Info().Msg("using postgres users")
	return postgres.NewUsers(pool), pool.Close, nil
}

// logCodeSender writes email codes to the log. Dev mode only.
type logCodeSender struct {
	log zerolog.Logger
}

func (s logCodeSender) SendCode(_ context.Context, email, code string) error {
	if email == "" {
		return errors.New("no email address")
	}
	s.log.Info().Str("to", mfa.MaskEmail(email)).Str("code", code).Msg("mfa code (dev delivery)")
	return nil
}
