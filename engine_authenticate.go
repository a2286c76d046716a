package authcore

import (
	"context"
	"fmt"
	"time"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
)

// Authenticate validates a session token and returns the Principal it
// describes.
//
// Errors are detailed for logging: ErrMalformedToken, ErrExpiredToken,
// ErrTokenTypeMismatch for refresh tokens, ErrRevokedToken for revoked
// token ids and stale epochs, and ErrUnavailable when the revocation
// store cannot answer. HTTP callers must not echo them.
func (e *Engine) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := time.Now()

	p, err := e.authenticate(ctx, token)
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
	} else {
		e.metricInc(MetricAuthenticateSuccess)
	}
	if e.metrics != nil {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}
	return p, err
}

func (e *Engine) authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := e.jwt.Parse(token)
	if err != nil {
		return nil, err
	}
	if claims.IsRefresh() {
		return nil, ErrTokenTypeMismatch
	}

	userID := claims.UserID()
	revoked, err := e.revocations.IsRevoked(ctx, claims.TokenID())
	if err != nil {
		e.metricInc(MetricBackendUnavailable)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if revoked {
		e.emitAudit(ctx, internalaudit.TypeAuthenticate, false, userID, claims.TokenID(), reasonRevokedToken, nil)
		return nil, ErrRevokedToken
	}

	epoch, err := e.revocations.UserEpoch(ctx, userID)
	if err != nil {
		e.metricInc(MetricBackendUnavailable)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if claims.Epoch < epoch {
		e.emitAudit(ctx, internalaudit.TypeAuthenticate, false, userID, claims.TokenID(), reasonStaleEpoch, nil)
		return nil, ErrRevokedToken
	}

	return &Principal{
		UserID:    userID,
		Email:     claims.Email,
		Roles:     cloneRoles(claims.Roles),
		TokenID:   claims.TokenID(),
		ExpiresAt: claims.Expiry().UTC(),
	}, nil
}
