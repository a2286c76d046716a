package authcore

import (
	"context"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
)

// Audit reasons. They are stable strings that operators alert on.
const (
	reasonInvalidCredentials = "invalid_credentials"
	reasonMalformedToken     = "malformed_token"
	reasonExpiredToken       = "expired_token"
	reasonRevokedToken       = "revoked_token"
	reasonStaleEpoch         = "stale_epoch"
	reasonTypeMismatch       = "token_type_mismatch"
	reasonRefreshReuse       = "refresh_reuse"
	reasonRefreshRace        = "refresh_race"
	reasonUserNotFound       = "user_not_found"
	reasonPasswordReuse      = "password_reuse"
	reasonPasswordPolicy     = "password_policy"
	reasonDuplicate          = "duplicate"
	reasonUnavailable        = "backend_unavailable"
	reasonRateLimited        = "rate_limited"
	reasonMFAMismatch        = "mfa_invalid"
	reasonMFAExpired         = "mfa_expired"
	reasonMFAUsed            = "mfa_already_used"
	reasonMFAAttempts        = "mfa_attempts_exceeded"
	reasonMFAReplay          = "mfa_replay"
	reasonMFANotFound        = "mfa_not_found"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	tokenID string,
	reason string,
	metadata map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	e.audit.Emit(ctx, internalaudit.Event{
		Timestamp: e.now().UTC(),
		Type:      eventType,
		UserID:    userID,
		TokenID:   tokenID,
		RequestID: RequestIDFromContext(ctx),
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Reason:    reason,
		Metadata:  metadata,
	})
}

func (e *Engine) emitSuccess(ctx context.Context, eventType, userID, tokenID string) {
	e.emitAudit(ctx, eventType, true, userID, tokenID, "", nil)
}
