package authcore

import (
	"context"
	"errors"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/mfa"
)

// EnrollTOTP generates a new TOTP secret for the caller. Nothing is stored
// until EnableMFA confirms a code from it.
func (e *Engine) EnrollTOTP(ctx context.Context) (TOTPEnrollment, error) {
	if err := e.ready(); err != nil {
		return TOTPEnrollment{}, err
	}
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return TOTPEnrollment{}, ErrUnauthenticated
	}
	return e.mfa.GenerateTOTPSecret(e.config.MFA.TOTPIssuer, p.Email)
}

// EnableMFA turns on a second factor for the caller. For MethodTOTP, code
// must be valid for secret. MethodEmailCode needs neither.
func (e *Engine) EnableMFA(ctx context.Context, method mfa.Method, secret, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if !method.Valid() || !e.mfa.Supports(method) {
		return ErrInvalidMFAMethod
	}

	switch method {
	case mfa.MethodTOTP:
		if err := e.mfa.ConfirmEnrollment(ctx, p.UserID, secret, code); err != nil {
			if errors.Is(err, mfa.ErrUnavailable) {
				return e.unavailable(ctx, internalaudit.TypeMFAEnroll, p.UserID, err)
			}
			return e.reject(ctx, internalaudit.TypeMFAEnroll, MetricMFAFailure, p.UserID, mfaReason(err), err)
		}
	case mfa.MethodEmailCode:
		secret = ""
	}

	if err := e.users.UpdateMFA(ctx, p.UserID, method, secret); err != nil {
		return e.unavailable(ctx, internalaudit.TypeMFAEnroll, p.UserID, err)
	}

	e.emitAudit(ctx, internalaudit.TypeMFAEnroll, true, p.UserID, p.TokenID, "", map[string]string{
		"method": string(method),
	})
	return nil
}

// DisableMFA removes the caller's second factor after re-checking their
// password.
func (e *Engine) DisableMFA(ctx context.Context, currentPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}

	user, found, err := e.lookupUser(ctx, p.UserID)
	if err != nil {
		return e.unavailable(ctx, internalaudit.TypeMFADisable, p.UserID, err)
	}
	if !found {
		return e.reject(ctx, internalaudit.TypeMFADisable, MetricMFAFailure, p.UserID, reasonUserNotFound, nil)
	}
	match, err := e.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil || !match {
		return e.reject(ctx, internalaudit.TypeMFADisable, MetricMFAFailure, p.UserID, reasonInvalidCredentials, err)
	}

	if err := e.users.UpdateMFA(ctx, p.UserID, mfa.MethodNone, ""); err != nil {
		return e.unavailable(ctx, internalaudit.TypeMFADisable, p.UserID, err)
	}

	e.emitSuccess(ctx, internalaudit.TypeMFADisable, p.UserID, p.TokenID)
	return nil
}
