package postgres

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// mapError translates driver errors into the sentinels authcore expects
// from a UserProvider. Anything unrecognised is returned wrapped and the
// engine treats it as a backend failure.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return authcore.ErrUserNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		if pgErr.ConstraintName == emailConstraint {
			return authcore.ErrAccountExists
		}
		return fmt.Errorf("unique constraint violation: %s: %w", pgErr.ConstraintName, err)
	case pgerrcode.InvalidTextRepresentation:
		// Malformed uuid in a lookup; no such user can exist.
		return authcore.ErrUserNotFound
	case pgerrcode.CheckViolation:
		return fmt.Errorf("check constraint violation: %s: %w", pgErr.ConstraintName, err)
	case pgerrcode.QueryCanceled:
		return fmt.Errorf("query canceled: %w", err)
	default:
		return fmt.Errorf("postgres error [%s]: %s: %w", pgErr.Code, pgErr.Message, err)
	}
}
