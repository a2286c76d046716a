package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/rs/zerolog"
)

// Admitter is the part of authcore.Engine RateLimit needs.
type Admitter interface {
	Admit(ctx context.Context, clientKey string) (authcore.Admission, error)
}

// RateLimit admits requests whose path starts with prefix. Rejected
// requests get 429 with Retry-After; a failing limiter backend yields 503.
// Other paths pass through uncounted.
func RateLimit(admitter Admitter, prefix string) func(http.Handler) http.Handler {
	return rateLimit(admitter, prefix, time.Now)
}

func rateLimit(admitter Admitter, prefix string, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if admitter == nil || !strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}

			key := authcore.ClientIPFromContext(r.Context())
			if key == "" {
				key = rate.ClientKey(r)
			}

			a, err := admitter.Admit(r.Context(), key)
			switch {
			case err == nil:
			case errors.Is(err, authcore.ErrRateLimited):
				retry := a.RetryAfter(now())
				w.Header().Set("Retry-After", strconv.Itoa(int(retry/time.Second)))
				zerolog.Ctx(r.Context()).Warn().
					Str("path", r.URL.Path).
					Int("count", a.Count).
					Int("limit", a.Limit).
					Msg("rate limit exceeded")
				WriteError(w, http.StatusTooManyRequests, MessageRateLimited)
				return
			default:
				zerolog.Ctx(r.Context()).Error().Err(err).Msg("rate limiter unavailable")
				WriteError(w, http.StatusServiceUnavailable, MessageUnavailable)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
