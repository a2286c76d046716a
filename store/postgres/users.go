package postgres

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/mfa"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const emailConstraint = "users_email_key"

const selectUser = `
	SELECT user_id::text, email, password_hash, roles, mfa_method, totp_secret
	FROM users
`

// Users implements authcore.UserProvider over the users table.
type Users struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewUsers shares pool with any other store in the process.
func NewUsers(pool *pgxpool.Pool) *Users {
	return &Users{pool: pool, now: time.Now}
}

func (s *Users) GetUserByEmail(ctx context.Context, email string) (authcore.UserRecord, error) {
	return s.queryOne(ctx, selectUser+` WHERE email = $1`, email)
}

func (s *Users) GetUserByID(ctx context.Context, userID string) (authcore.UserRecord, error) {
	return s.queryOne(ctx, selectUser+` WHERE user_id = $1`, userID)
}

func (s *Users) CreateUser(ctx context.Context, in authcore.CreateUserInput) (authcore.UserRecord, error) {
	roles := in.Roles
	if roles == nil {
		roles = []string{}
	}
	rec := authcore.UserRecord{
		UserID:       uuid.NewString(),
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Roles:        roles,
		MFAMethod:    mfa.MethodNone,
	}

	now := s.now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (user_id, email, password_hash, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, rec.UserID, rec.Email, rec.PasswordHash, rec.Roles, now)
	if err != nil {
		return authcore.UserRecord{}, mapError(err)
	}
	return rec, nil
}

func (s *Users) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	return s.exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3 WHERE user_id = $1
	`, userID, passwordHash, s.now().UTC())
}

func (s *Users) UpdateMFA(ctx context.Context, userID string, method mfa.Method, totpSecret string) error {
	return s.exec(ctx, `
		UPDATE users SET mfa_method = $2, totp_secret = $3, updated_at = $4 WHERE user_id = $1
	`, userID, string(method), totpSecret, s.now().UTC())
}

// SetRoles replaces the roles of userID. Role assignment happens outside
// authcore; this is the hook operators and tests use.
func (s *Users) SetRoles(ctx context.Context, userID string, roles ...string) error {
	if roles == nil {
		roles = []string{}
	}
	return s.exec(ctx, `
		UPDATE users SET roles = $2, updated_at = $3 WHERE user_id = $1
	`, userID, roles, s.now().UTC())
}

func (s *Users) queryOne(ctx context.Context, query string, arg any) (authcore.UserRecord, error) {
	var (
		rec    authcore.UserRecord
		method string
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&rec.UserID,
		&rec.Email,
		&rec.PasswordHash,
		&rec.Roles,
		&method,
		&rec.TOTPSecret,
	)
	if err != nil {
		return authcore.UserRecord{}, mapError(err)
	}
	rec.MFAMethod = mfa.Method(method)
	if rec.Roles == nil {
		rec.Roles = []string{}
	}
	return rec, nil
}

func (s *Users) exec(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

var _ authcore.UserProvider = (*Users)(nil)
