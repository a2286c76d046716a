package authcore

import (
	"context"
	"errors"
	"fmt"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/rate"
)

// RateLimitEnabled reports whether Admit enforces a budget.
func (e *Engine) RateLimitEnabled() bool {
	return e != nil && e.limiter != nil
}

// Admit counts one request against clientKey's fixed window.
//
// When the budget is exhausted it returns the Admission together with
// ErrRateLimited. A limiter backend failure returns ErrUnavailable and the
// request must not be served. With rate limiting disabled every request is
// allowed.
func (e *Engine) Admit(ctx context.Context, clientKey string) (Admission, error) {
	if e == nil || e.limiter == nil {
		return Admission{Allowed: true}, nil
	}

	d, err := e.limiter.Allow(ctx, clientKey)
	a := Admission{
		Allowed: d.Allowed,
		Count:   d.Count,
		Limit:   d.Limit,
		ResetAt: d.ResetAt,
	}
	switch {
	case err == nil:
		return a, nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(MetricRateLimitHit)
		e.emitAudit(ctx, internalaudit.TypeRateLimited, false, "", "", reasonRateLimited, map[string]string{
			"client": clientKey,
		})
		return a, ErrRateLimited
	default:
		e.metricInc(MetricBackendUnavailable)
		e.log(ctx).Error().Err(err).Str("client", clientKey).Msg("rate limiter unavailable")
		return Admission{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
