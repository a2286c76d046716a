package authcore

import (
	"context"
	"errors"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/jwt"
)

// Refresh rotates a refresh token. The presented token is revoked and a
// new pair is issued with roles re-read from the user record and iat set
// to now.
//
// Presenting a refresh token that was already rotated is treated as theft:
// the user's epoch is bumped so every token they hold stops working.
// Concurrent presentations of the same live token yield one new pair; the
// others fail without touching the epoch.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.jwt.Parse(refreshToken)
	if err != nil {
		reason := reasonMalformedToken
		if errors.Is(err, jwt.ErrExpiredToken) {
			reason = reasonExpiredToken
		}
		return nil, e.reject(ctx, internalaudit.TypeRefresh, MetricRefreshFailure, "", reason, err)
	}
	userID := claims.UserID()
	if !claims.IsRefresh() {
		return nil, e.reject(ctx, internalaudit.TypeRefresh, MetricRefreshFailure, userID, reasonTypeMismatch, nil)
	}

	revoked, err := e.revocations.IsRevoked(ctx, claims.TokenID())
	if err != nil {
		return nil, e.unavailable(ctx, internalaudit.TypeRefresh, userID, err)
	}
	if revoked {
		return nil, e.refreshReuse(ctx, claims)
	}

	epoch, err := e.revocations.UserEpoch(ctx, userID)
	if err != nil {
		return nil, e.unavailable(ctx, internalaudit.TypeRefresh, userID, err)
	}
	if claims.Epoch < epoch {
		return nil, e.reject(ctx, internalaudit.TypeRefresh, MetricRefreshFailure, userID, reasonStaleEpoch, nil)
	}

	user, found, err := e.lookupUser(ctx, userID)
	if err != nil {
		return nil, e.unavailable(ctx, internalaudit.TypeRefresh, userID, err)
	}
	if !found {
		return nil, e.reject(ctx, internalaudit.TypeRefresh, MetricRefreshFailure, userID, reasonUserNotFound, nil)
	}

	// Only the first concurrent rotation creates the revocation entry. A
	// loser saw the token live, so it is a duplicate submission, not reuse.
	first, err := e.revoke(ctx, claims.TokenID(), claims.Expiry())
	if err != nil {
		return nil, e.unavailable(ctx, internalaudit.TypeRefresh, userID, err)
	}
	if !first {
		return nil, e.reject(ctx, internalaudit.TypeRefresh, MetricRefreshFailure, userID, reasonRefreshRace, nil)
	}

	pair, err := e.issuePairAt(user, epoch)
	if err != nil {
		return nil, e.unavailable(ctx, internalaudit.TypeRefresh, userID, err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitSuccess(ctx, internalaudit.TypeRefresh, userID, claims.TokenID())
	return pair, nil
}

func (e *Engine) refreshReuse(ctx context.Context, claims *jwt.Claims) error {
	userID := claims.UserID()
	e.metricInc(MetricRefreshReuseDetected)
	e.emitAudit(ctx, internalaudit.TypeRefreshReuse, false, userID, claims.TokenID(), reasonRefreshReuse, nil)

	if _, err := e.revocations.BumpUserEpoch(ctx, userID); err != nil {
		e.log(ctx).Error().Err(err).Str("user_id", userID).Msg("revoke sessions after refresh reuse")
	}
	return e.reject(ctx, internalaudit.TypeRefresh, MetricRefreshFailure, userID, reasonRefreshReuse, nil)
}
