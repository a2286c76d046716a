package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/mfa"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/revocation"
	"github.com/rs/zerolog"
)

// Engine is the authentication core. Build one with New().Build().
type Engine struct {
	config      Config
	jwt         *jwt.Manager
	hasher      password.Hasher
	dummyHash   string
	revocations revocation.Store
	limiter     rate.Limiter
	mfa         *mfa.Manager
	users       UserProvider
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	janitor     *revocation.Janitor
	logger      zerolog.Logger
	now         func() time.Time
}

// Close stops background work and flushes queued audit events, waiting at
// most until ctx ends.
func (e *Engine) Close(ctx context.Context) error {
	if e == nil {
		return nil
	}
	e.janitor.Stop()
	return e.audit.Close(ctx)
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// AuditDropped is the number of audit events discarded under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Logger returns the engine's fallback logger.
func (e *Engine) Logger() zerolog.Logger {
	return e.logger
}

// log prefers the request-scoped logger installed by the HTTP middleware.
func (e *Engine) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &e.logger
}

func (e *Engine) ready() error {
	if e == nil || e.jwt == nil || e.users == nil || e.revocations == nil {
		return ErrEngineNotReady
	}
	return nil
}

// reject records why an authentication step failed and returns the generic
// failure callers are allowed to see.
func (e *Engine) reject(ctx context.Context, eventType string, metric MetricID, userID, reason string, cause error) error {
	e.metricInc(metric)
	ev := e.log(ctx).Warn().
		Str("event", eventType).
		Str("reason", reason)
	if userID != "" {
		ev = ev.Str("user_id", userID)
	}
	if cause != nil {
		ev = ev.AnErr("cause", cause)
	}
	ev.Msg("authentication rejected")

	e.emitAudit(ctx, eventType, false, userID, "", reason, nil)
	return ErrAuthenticationFailed
}

// unavailable reports a backend failure. The operation fails closed.
func (e *Engine) unavailable(ctx context.Context, eventType, userID string, cause error) error {
	e.metricInc(MetricBackendUnavailable)
	e.log(ctx).Error().
		Str("event", eventType).
		Str("user_id", userID).
		Err(cause).
		Msg("authentication backend unavailable")

	e.emitAudit(ctx, eventType, false, userID, "", reasonUnavailable, nil)
	if errors.Is(cause, ErrUnavailable) {
		return cause
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, cause)
}

// issuePair mints a session and refresh token for user, stamped with the
// user's current revocation epoch.
func (e *Engine) issuePair(ctx context.Context, user UserRecord) (*TokenPair, error) {
	epoch, err := e.revocations.UserEpoch(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	return e.issuePairAt(user, epoch)
}

// issuePairAt stamps the pair with epoch. A bump that lands after epoch was
// read still invalidates the pair.
func (e *Engine) issuePairAt(user UserRecord, epoch uint64) (*TokenPair, error) {
	roles := cloneRoles(user.Roles)
	session, err := e.jwt.IssueSession(jwt.Subject{
		UserID: user.UserID,
		Email:  user.Email,
		Roles:  roles,
		Epoch:  epoch,
	})
	if err != nil {
		return nil, err
	}
	refresh, err := e.jwt.IssueRefresh(user.UserID, epoch)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		SessionToken:     session.Token,
		RefreshToken:     refresh.Token,
		SessionExpiresAt: session.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
		User: User{
			ID:    user.UserID,
			Email: user.Email,
			Roles: roles,
		},
	}, nil
}

// revoke records tokenID and counts it when this call created the entry.
func (e *Engine) revoke(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	first, err := e.revocations.Revoke(ctx, tokenID, expiresAt)
	if err != nil {
		return false, err
	}
	if first {
		e.metricInc(MetricTokenRevoked)
	}
	return first, nil
}

// lookupUser distinguishes a missing account from a backend fault.
func (e *Engine) lookupUser(ctx context.Context, userID string) (UserRecord, bool, error) {
	user, err := e.users.GetUserByID(ctx, userID)
	switch {
	case err == nil:
		return user, true, nil
	case errors.Is(err, ErrUserNotFound):
		return UserRecord{}, false, nil
	default:
		return UserRecord{}, false, err
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneRoles(roles []string) []string {
	out := make([]string, len(roles))
	copy(out, roles)
	return out
}

// userSecrets adapts a UserProvider to mfa.SecretSource.
type userSecrets struct {
	users UserProvider
}

func (s userSecrets) TOTPSecret(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return user.TOTPSecret, nil
}
