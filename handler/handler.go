// Package handler serves the authcore HTTP+JSON API.
//
// Routes:
//
//	POST /auth/register          {email,password}                 -> 201 token pair
//	POST /auth/login             {email,password}                 -> 200 token pair or MFA challenge
//	POST /auth/mfa/verify        {mfaChallengeToken,code}         -> 200 token pair
//	POST /auth/refresh           {refreshToken}                   -> 200 token pair
//	POST /auth/change-password   {currentPassword,newPassword}    -> 204 (authenticated)
//	POST /auth/logout            {refreshToken?}                  -> 204 (authenticated)
//	POST /auth/logout-all                                         -> 204 (authenticated)
//	POST /auth/mfa/totp/enroll                                    -> 200 {secret,url} (authenticated)
//	POST /auth/mfa/enable        {method,secret?,code?}           -> 204 (authenticated)
//	POST /auth/mfa/disable       {currentPassword}                -> 204 (authenticated)
//	GET  /api/me                                                  -> 200 principal (authenticated)
//	GET  /healthz                                                 -> 200
//
// The handler expects middleware.Authenticate to run before it.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/mfa"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 16

// Service is the engine surface the handler drives. *authcore.Engine
// implements it.
type Service interface {
	Register(ctx context.Context, req authcore.RegisterRequest) (*authcore.TokenPair, error)
	Login(ctx context.Context, email, password string) (*authcore.LoginResult, error)
	VerifyMFA(ctx context.Context, challengeToken, code string) (*authcore.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*authcore.TokenPair, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context) error
	EnrollTOTP(ctx context.Context) (authcore.TOTPEnrollment, error)
	EnableMFA(ctx context.Context, method mfa.Method, secret, code string) error
	DisableMFA(ctx context.Context, currentPassword string) error
}

// Handler owns the API routes.
type Handler struct {
	svc Service
}

func New(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Routes returns the API mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register", h.register)
	mux.HandleFunc("POST /auth/login", h.login)
	mux.HandleFunc("POST /auth/mfa/verify", h.verifyMFA)
	mux.HandleFunc("POST /auth/refresh", h.refresh)

	mux.Handle("POST /auth/change-password", middleware.RequireAuth(http.HandlerFunc(h.changePassword)))
	mux.Handle("POST /auth/logout", middleware.RequireAuth(http.HandlerFunc(h.logout)))
	mux.Handle("POST /auth/logout-all", middleware.RequireAuth(http.HandlerFunc(h.logoutAll)))
	mux.Handle("POST /auth/mfa/totp/enroll", middleware.RequireAuth(http.HandlerFunc(h.enrollTOTP)))
	mux.Handle("POST /auth/mfa/enable", middleware.RequireAuth(http.HandlerFunc(h.enableMFA)))
	mux.Handle("POST /auth/mfa/disable", middleware.RequireAuth(http.HandlerFunc(h.disableMFA)))
	mux.Handle("GET /api/me", middleware.RequireAuth(http.HandlerFunc(h.me)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type mfaChallengeResponse struct {
	MFARequired       bool       `json:"mfaRequired"`
	MFAChallengeToken string     `json:"mfaChallengeToken"`
	MFAMethod         mfa.Method `json:"mfaMethod"`
	MaskedEmailHint   string     `json:"maskedEmailHint,omitempty"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if !decode(w, r, &body) {
		return
	}

	pair, err := h.svc.Register(r.Context(), authcore.RegisterRequest{Email: body.Email, Password: body.Password})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pair)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if !decode(w, r, &body) {
		return
	}

	res, err := h.svc.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.MFARequired {
		writeJSON(w, http.StatusOK, mfaChallengeResponse{
			MFARequired:       true,
			MFAChallengeToken: res.MFAChallengeToken,
			MFAMethod:         res.MFAMethod,
			MaskedEmailHint:   res.MaskedEmailHint,
		})
		return
	}
	writeJSON(w, http.StatusOK, res.Tokens)
}

func (h *Handler) verifyMFA(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChallengeToken string `json:"mfaChallengeToken"`
		Code           string `json:"code"`
	}
	if !decode(w, r, &body) {
		return
	}

	pair, err := h.svc.VerifyMFA(r.Context(), body.ChallengeToken, body.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decode(w, r, &body) {
		return
	}

	pair, err := h.svc.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if !decode(w, r, &body) {
		return
	}

	if err := h.svc.ChangePassword(r.Context(), body.CurrentPassword, body.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeOptional(w, r, &body) {
		return
	}

	if err := h.svc.Logout(r.Context(), body.RefreshToken); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.LogoutAll(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enrollTOTP(w http.ResponseWriter, r *http.Request) {
	enrollment, err := h.svc.EnrollTOTP(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"secret": enrollment.Secret,
		"url":    enrollment.URL,
	})
}

func (h *Handler) enableMFA(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Method mfa.Method `json:"method"`
		Secret string     `json:"secret"`
		Code   string     `json:"code"`
	}
	if !decode(w, r, &body) {
		return
	}

	if err := h.svc.EnableMFA(r.Context(), body.Method, body.Secret, body.Code); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) disableMFA(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CurrentPassword string `json:"currentPassword"`
	}
	if !decode(w, r, &body) {
		return
	}

	if err := h.svc.DisableMFA(r.Context(), body.CurrentPassword); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p, _ := authcore.PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, p)
}

// decode reads a JSON body into v. It writes 400 and returns false on
// failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("decode request body")
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// decodeOptional is decode for routes whose body may be empty.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors to responses. Anything authentication
// related collapses to one generic 401.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authcore.ErrRateLimited):
		middleware.WriteError(w, http.StatusTooManyRequests, middleware.MessageRateLimited)
	case errors.Is(err, authcore.ErrSessionInvalidationFailed):
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("password changed but sessions not invalidated")
		middleware.WriteError(w, http.StatusServiceUnavailable, middleware.MessageUnavailable)
	case errors.Is(err, authcore.ErrUnavailable):
		middleware.WriteError(w, http.StatusServiceUnavailable, middleware.MessageUnavailable)
	case errors.Is(err, authcore.ErrInvalidRegistration):
		middleware.WriteError(w, http.StatusBadRequest, "Invalid email address")
	case errors.Is(err, authcore.ErrPasswordPolicy):
		middleware.WriteError(w, http.StatusBadRequest, "Password does not meet requirements")
	case errors.Is(err, authcore.ErrPasswordReuse):
		middleware.WriteError(w, http.StatusBadRequest, "New password must differ from the current password")
	case errors.Is(err, authcore.ErrInvalidMFAMethod):
		middleware.WriteError(w, http.StatusBadRequest, "Unsupported MFA method")
	case errors.Is(err, authcore.ErrAccountExists):
		middleware.WriteError(w, http.StatusConflict, "Account already exists")
	case errors.Is(err, authcore.ErrAuthenticationFailed),
		errors.Is(err, authcore.ErrUnauthenticated),
		errors.Is(err, authcore.ErrMalformedToken),
		errors.Is(err, authcore.ErrExpiredToken),
		errors.Is(err, authcore.ErrRevokedToken),
		errors.Is(err, authcore.ErrTokenTypeMismatch):
		middleware.WriteError(w, http.StatusUnauthorized, middleware.MessageUnauthorized)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
