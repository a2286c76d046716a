package authcore

import (
	"context"
	"errors"
	"net/mail"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/password"
)

const maxEmailLength = 254

// Register creates an account with no roles and returns its first token
// pair.
//
// It returns ErrInvalidRegistration for a malformed email,
// ErrPasswordPolicy when the password is out of bounds and ErrAccountExists
// when the email is taken.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email := normalizeEmail(req.Email)
	if !validEmail(email) {
		return nil, ErrInvalidRegistration
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) || errors.Is(err, password.ErrPasswordTooLong) {
			e.emitAudit(ctx, internalaudit.TypeRegister, false, "", "", reasonPasswordPolicy, nil)
			return nil, ErrPasswordPolicy
		}
		return nil, err
	}

	user, err := e.users.CreateUser(ctx, CreateUserInput{
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{},
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, internalaudit.TypeRegister, false, "", "", reasonDuplicate, nil)
			return nil, ErrAccountExists
		}
		return nil, e.unavailable(ctx, internalaudit.TypeRegister, "", err)
	}

	pair, err := e.issuePair(ctx, user)
	if err != nil {
		return nil, e.unavailable(ctx, internalaudit.TypeRegister, user.UserID, err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitSuccess(ctx, internalaudit.TypeRegister, user.UserID, "")
	e.log(ctx).Info().Str("user_id", user.UserID).Msg("account registered")

	return pair, nil
}

func validEmail(email string) bool {
	if email == "" || len(email) > maxEmailLength {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
