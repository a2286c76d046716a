package commands

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/MrEthical07/authcore/store/postgres"
)

type MigrateCmd struct {
	DatabaseURL string `help:"PostgreSQL connection string." env:"AUTHCORE_DATABASE_URL"`
}

func (c *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	if c.DatabaseURL == "" {
		return errors.New("database url is required (--database-url or AUTHCORE_DATABASE_URL)")
	}
	log := logger.Setup(globals.Dev)

	pool, err := postgres.NewPool(ctx, &postgres.PoolConfig{ConnString: c.DatabaseURL, MinConns: 1, MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, log); err != nil {
		return err
	}
	version, err := postgres.MigrationVersion(ctx, pool)
	if err != nil {
		return err
	}
	log.Info().Int64("version", version).Msg("database is up to date")
	return nil
}
