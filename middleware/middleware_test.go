package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeAdmitter struct {
	limit int
	seen  map[string]int
	err   error
	reset time.Time
}

func (f *fakeAdmitter) Admit(_ context.Context, key string) (authcore.Admission, error) {
	if f.err != nil {
		return authcore.Admission{}, f.err
	}
	if f.seen == nil {
		f.seen = make(map[string]int)
	}
	f.seen[key]++
	a := authcore.Admission{
		Allowed: f.seen[key] <= f.limit,
		Count:   f.seen[key],
		Limit:   f.limit,
		ResetAt: f.reset,
	}
	if !a.Allowed {
		return a, authcore.ErrRateLimited
	}
	return a, nil
}

type fakeAuthenticator map[string]*authcore.Principal

func (f fakeAuthenticator) Authenticate(_ context.Context, token string) (*authcore.Principal, error) {
	p, ok := f[token]
	if !ok {
		return nil, authcore.ErrMalformedToken
	}
	return p, nil
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestRateLimitEleventhRequest(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	admitter := &fakeAdmitter{limit: 10, reset: now.Add(45 * time.Second)}
	h := rateLimit(admitter, "/auth/", func() time.Time { return now })(okHandler)

	send := func(path, ip string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, path, nil)
		r.RemoteAddr = ip + ":5555"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusNoContent, send("/auth/login", "203.0.113.7").Code)
	}

	w := send("/auth/login", "203.0.113.7")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "45", w.Header().Get("Retry-After"))

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, ErrorBody{Status: 429, Message: MessageRateLimited}, body)

	require.Equal(t, http.StatusNoContent, send("/auth/login", "203.0.113.8").Code)
	require.Equal(t, http.StatusNoContent, send("/api/me", "203.0.113.7").Code)
	require.Equal(t, 11, admitter.seen["203.0.113.7"])
}

func TestRateLimitFailsClosed(t *testing.T) {
	admitter := &fakeAdmitter{err: errors.New("redis down")}
	h := RateLimit(admitter, "/auth/")(okHandler)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRateLimitUsesForwardedClient(t *testing.T) {
	admitter := &fakeAdmitter{limit: 10}
	h := RequestContext(zerolog.Nop())(RateLimit(admitter, "/auth/")(okHandler))

	r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	r.Header.Set("X-Forwarded-For", " , 198.51.100.9, 10.0.0.1")
	h.ServeHTTP(httptest.NewRecorder(), r)

	require.Equal(t, 1, admitter.seen["198.51.100.9"])
}

func TestAuthenticateNeverRejects(t *testing.T) {
	auth := fakeAuthenticator{
		"good": {UserID: "u-1", Roles: []string{"admin"}},
	}

	var seen *authcore.Principal
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = authcore.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := Authenticate(auth)(capture)

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "no header"},
		{name: "basic scheme", header: "Basic Zm9vOmJhcg=="},
		{name: "empty bearer", header: "Bearer "},
		{name: "invalid token", header: "Bearer bad"},
		{name: "valid token", header: "Bearer good", want: "u-1"},
		{name: "lower case scheme", header: "bearer good", want: "u-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			require.Equal(t, http.StatusOK, w.Code)
			if tt.want == "" {
				require.Nil(t, seen)
				return
			}
			require.NotNil(t, seen)
			require.Equal(t, tt.want, seen.UserID)
		})
	}
}

func TestAuthenticateDoesNotLogToken(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	h := RequestContext(logger)(Authenticate(fakeAuthenticator{})(okHandler))

	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r.Header.Set("Authorization", "Bearer super-secret-token")
	h.ServeHTTP(httptest.NewRecorder(), r)

	require.Contains(t, buf.String(), "session token rejected")
	require.NotContains(t, buf.String(), "super-secret-token")
}

func TestRequireAuthAndRole(t *testing.T) {
	admin := &authcore.Principal{UserID: "u-1", Roles: []string{"admin"}}
	reader := &authcore.Principal{UserID: "u-2", Roles: []string{"reader"}}

	tests := []struct {
		name      string
		principal *authcore.Principal
		handler   http.Handler
		want      int
	}{
		{name: "auth without principal", handler: RequireAuth(okHandler), want: http.StatusUnauthorized},
		{name: "auth with principal", principal: reader, handler: RequireAuth(okHandler), want: http.StatusNoContent},
		{name: "role without principal", handler: RequireRole("admin")(okHandler), want: http.StatusUnauthorized},
		{name: "role missing", principal: reader, handler: RequireRole("admin")(okHandler), want: http.StatusForbidden},
		{name: "role held", principal: admin, handler: RequireRole("admin")(okHandler), want: http.StatusNoContent},
		{name: "any of roles", principal: reader, handler: RequireRole("admin", "reader")(okHandler), want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.principal != nil {
				r = r.WithContext(authcore.WithPrincipal(r.Context(), tt.principal))
			}
			w := httptest.NewRecorder()
			tt.handler.ServeHTTP(w, r)
			require.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequestContextAssignsIDs(t *testing.T) {
	var (
		requestID string
		clientIP  string
	)
	h := RequestContext(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = authcore.RequestIDFromContext(r.Context())
		clientIP = authcore.ClientIPFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.NotEmpty(t, requestID)
	require.Equal(t, requestID, w.Header().Get(RequestIDHeader))
	require.Equal(t, "192.0.2.1", clientIP)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.Equal(t, "abc-123", requestID)
}

type loggingAuthenticator struct {
	fakeAuthenticator
	logger zerolog.Logger
}

func (a loggingAuthenticator) Logger() zerolog.Logger { return a.logger }

func TestAuthenticateFallsBackToAuthenticatorLogger(t *testing.T) {
	var buf bytes.Buffer
	auth := loggingAuthenticator{fakeAuthenticator: fakeAuthenticator{}, logger: zerolog.New(&buf)}
	h := Authenticate(auth)(okHandler)

	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r.RemoteAddr = "192.0.2.44:51000"
	r.Header.Set("Authorization", "Bearer forged-token")
	h.ServeHTTP(httptest.NewRecorder(), r)

	require.Contains(t, buf.String(), "session token rejected")
	require.Contains(t, buf.String(), `"client_ip":"192.0.2.44"`)
	require.NotContains(t, buf.String(), "forged-token")
}
