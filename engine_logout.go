package authcore

import (
	"context"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
)

// Logout revokes the caller's session token and, when given, the refresh
// token that belongs to the same user. A refresh token that does not parse
// or belongs to someone else is ignored.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}

	if _, err := e.revoke(ctx, p.TokenID, p.ExpiresAt); err != nil {
		return e.unavailable(ctx, internalaudit.TypeLogout, p.UserID, err)
	}

	if refreshToken != "" {
		claims, err := e.jwt.Parse(refreshToken)
		switch {
		case err != nil:
			e.log(ctx).Debug().Err(err).Str("user_id", p.UserID).Msg("logout: refresh token ignored")
		case !claims.IsRefresh() || claims.UserID() != p.UserID:
			e.log(ctx).Debug().Str("user_id", p.UserID).Msg("logout: refresh token not owned by caller")
		default:
			if _, err := e.revoke(ctx, claims.TokenID(), claims.Expiry()); err != nil {
				return e.unavailable(ctx, internalaudit.TypeLogout, p.UserID, err)
			}
		}
	}

	e.metricInc(MetricLogout)
	e.emitSuccess(ctx, internalaudit.TypeLogout, p.UserID, p.TokenID)
	return nil
}

// LogoutAll invalidates every session and refresh token the caller holds.
func (e *Engine) LogoutAll(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}

	if _, err := e.revocations.BumpUserEpoch(ctx, p.UserID); err != nil {
		return e.unavailable(ctx, internalaudit.TypeLogoutAll, p.UserID, err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitSuccess(ctx, internalaudit.TypeLogoutAll, p.UserID, p.TokenID)
	return nil
}
