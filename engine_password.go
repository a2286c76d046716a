package authcore

import (
	"context"
	"errors"
	"fmt"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/password"
)

// ChangePassword replaces the caller's password. The Principal must be in
// ctx.
//
// On success every token the user holds is invalidated by bumping the
// user's epoch, and the current session's token id is revoked. If the hash
// was stored but the epoch could not be bumped the returned error wraps
// ErrSessionInvalidationFailed.
func (e *Engine) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}

	user, found, err := e.lookupUser(ctx, p.UserID)
	if err != nil {
		return e.unavailable(ctx, internalaudit.TypePasswordChange, p.UserID, err)
	}
	if !found {
		return e.reject(ctx, internalaudit.TypePasswordChange, MetricPasswordChangeFailure, p.UserID, reasonUserNotFound, nil)
	}

	match, err := e.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil || !match {
		return e.reject(ctx, internalaudit.TypePasswordChange, MetricPasswordChangeFailure, p.UserID, reasonInvalidCredentials, err)
	}

	if oldPassword == newPassword {
		return e.passwordChangeDenied(ctx, p.UserID, reasonPasswordReuse, ErrPasswordReuse)
	}
	if same, err := e.hasher.Verify(newPassword, user.PasswordHash); err == nil && same {
		return e.passwordChangeDenied(ctx, p.UserID, reasonPasswordReuse, ErrPasswordReuse)
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) || errors.Is(err, password.ErrPasswordTooLong) {
			return e.passwordChangeDenied(ctx, p.UserID, reasonPasswordPolicy, ErrPasswordPolicy)
		}
		return err
	}

	if err := e.users.UpdatePasswordHash(ctx, p.UserID, hash); err != nil {
		return e.unavailable(ctx, internalaudit.TypePasswordChange, p.UserID, err)
	}

	if _, err := e.revocations.BumpUserEpoch(ctx, p.UserID); err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		e.log(ctx).Error().Err(err).Str("user_id", p.UserID).Msg("password changed but sessions not invalidated")
		return errors.Join(ErrSessionInvalidationFailed, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	if p.TokenID != "" {
		if _, err := e.revoke(ctx, p.TokenID, p.ExpiresAt); err != nil {
			e.log(ctx).Warn().Err(err).Str("user_id", p.UserID).Msg("revoke current session after password change")
		}
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitSuccess(ctx, internalaudit.TypePasswordChange, p.UserID, p.TokenID)
	e.log(ctx).Info().Str("user_id", p.UserID).Msg("password changed")
	return nil
}

func (e *Engine) passwordChangeDenied(ctx context.Context, userID, reason string, err error) error {
	e.metricInc(MetricPasswordChangeFailure)
	e.emitAudit(ctx, internalaudit.TypePasswordChange, false, userID, "", reason, nil)
	return err
}
