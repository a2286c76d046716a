package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/rs/zerolog"
)

// Authenticator is the part of authcore.Engine Authenticate needs.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*authcore.Principal, error)
}

// loggerSource is implemented by authcore.Engine.
type loggerSource interface {
	Logger() zerolog.Logger
}

var _ loggerSource = (*authcore.Engine)(nil)

// Authenticate attaches the Principal for a valid Bearer session token.
// Missing headers, malformed headers and invalid tokens all continue
// unauthenticated; the failure reason is logged, the token never is.
//
// Failures go to the request-scoped logger from RequestContext. Without
// one they go to auth's own logger when it has one, tagged with the
// client address.
func Authenticate(auth Authenticator) func(http.Handler) http.Handler {
	fallback := zerolog.Nop()
	if src, ok := auth.(loggerSource); ok {
		fallback = src.Logger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || auth == nil {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(header)
			if !ok {
				requestLogger(r, &fallback).Debug().Msg("authorization header is not a bearer token")
				next.ServeHTTP(w, r)
				return
			}

			p, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				requestLogger(r, &fallback).Info().
					Err(err).
					Str("path", r.URL.Path).
					Msg("session token rejected")
				next.ServeHTTP(w, r)
				return
			}

			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("user_id", p.UserID)
			})
			next.ServeHTTP(w, r.WithContext(authcore.WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAuth answers 401 unless a Principal is attached.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authcore.PrincipalFromContext(r.Context()); !ok {
			WriteError(w, http.StatusUnauthorized, MessageUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole answers 401 without a Principal and 403 unless the Principal
// holds at least one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := authcore.PrincipalFromContext(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, MessageUnauthorized)
				return
			}
			for _, role := range roles {
				if p.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			WriteError(w, http.StatusForbidden, MessageForbidden)
		})
	}
}

func requestLogger(r *http.Request, fallback *zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	if fallback.GetLevel() == zerolog.Disabled {
		return fallback
	}
	l := fallback.With().Str("client_ip", rate.ClientKey(r)).Logger()
	return &l
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
