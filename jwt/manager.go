package jwt

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod names the HMAC variant used to sign tokens.
type SigningMethod string

const (
	// MethodHS256 signs with HMAC-SHA256. It is the default.
	MethodHS256 SigningMethod = "hs256"
	// MethodHS384 signs with HMAC-SHA384.
	MethodHS384 SigningMethod = "hs384"
	// MethodHS512 signs with HMAC-SHA512.
	MethodHS512 SigningMethod = "hs512"
)

const (
	// TypeSession marks a short-lived bearer credential accepted on API requests.
	TypeSession = "session"
	// TypeRefresh marks a long-lived credential accepted only by the refresh operation.
	TypeRefresh = "refresh"

	// MinKeyLength is the shortest HMAC key NewManager accepts.
	MinKeyLength = 32
)

var (
	// ErrConfiguration wraps every NewManager validation failure.
	ErrConfiguration = errors.New("jwt: invalid configuration")
	// ErrSigningKeyMissing is returned when no signing key is configured.
	ErrSigningKeyMissing = errors.New("jwt: signing key missing")
	// ErrSigningKeyTooShort is returned when the signing key is shorter than MinKeyLength.
	ErrSigningKeyTooShort = errors.New("jwt: signing key shorter than 32 bytes")

	// ErrMalformedToken covers bad signatures, corrupt structure, unexpected
	// algorithms and missing required claims.
	ErrMalformedToken = errors.New("malformed token")
	// ErrExpiredToken is returned when the current time is at or past exp.
	ErrExpiredToken = errors.New("token expired")
)

// Config holds signing material and lifetimes. It is validated once by NewManager.
type Config struct {
	SessionTTL    time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	SigningKey    []byte
	Issuer        string
	Audience      string
	KeyID         string
	MaxFutureIAT  time.Duration

	// Now overrides the clock. Used by tests.
	Now func() time.Time
}

// Claims is the decoded payload of a session or refresh token.
type Claims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	Type  string   `json:"typ"`
	Epoch uint64   `json:"ep,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the sub claim.
func (c *Claims) UserID() string { return c.Subject }

// TokenID returns the jti claim.
func (c *Claims) TokenID() string { return c.ID }

// IsRefresh reports whether the claims belong to a refresh token.
func (c *Claims) IsRefresh() bool { return c != nil && c.Type == TypeRefresh }

// Expiry returns exp as a time.Time, or the zero time when absent.
func (c *Claims) Expiry() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Subject describes the identity embedded in a session token.
type Subject struct {
	UserID string
	Email  string
	Roles  []string
	Epoch  uint64
}

// Issued is a freshly signed token together with the claims callers
// usually need without re-parsing it.
type Issued struct {
	Token     string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager signs and verifies session and refresh tokens.
//
// Manager is immutable after NewManager and safe for concurrent use.
type Manager struct {
	config Config
	method jwt.SigningMethod
	parser *jwt.Parser
}

// NewManager validates cfg and returns a ready Manager. Every failure wraps
// ErrConfiguration so callers can treat it as a boot-time fault.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, ErrSigningKeyMissing)
	}
	if len(cfg.SigningKey) < MinKeyLength {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, ErrSigningKeyTooShort)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("%w: session TTL must be > 0", ErrConfiguration)
	}
	if cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("%w: refresh TTL must be > 0", ErrConfiguration)
	}
	if cfg.RefreshTTL < cfg.SessionTTL {
		return nil, fmt.Errorf("%w: refresh TTL must not be shorter than session TTL", ErrConfiguration)
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, fmt.Errorf("%w: invalid MaxFutureIAT", ErrConfiguration)
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}

	var method jwt.SigningMethod
	switch cfg.SigningMethod {
	case MethodHS256:
		method = jwt.SigningMethodHS256
	case MethodHS384:
		method = jwt.SigningMethodHS384
	case MethodHS512:
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("%w: unsupported signing method %q", ErrConfiguration, cfg.SigningMethod)
	}

	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	cfg.SigningKey = slices.Clone(cfg.SigningKey)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}

	return &Manager{
		config: cfg,
		method: method,
		parser: jwt.NewParser(options...),
	}, nil
}

// SessionTTL returns the configured session lifetime.
func (m *Manager) SessionTTL() time.Duration { return m.config.SessionTTL }

// RefreshTTL returns the configured refresh lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// IssueSession signs a session token for s with a fresh jti.
func (m *Manager) IssueSession(s Subject) (Issued, error) {
	if s.UserID == "" {
		return Issued{}, errors.New("jwt: subject user id is empty")
	}

	claims := Claims{
		Email: s.Email,
		Roles: slices.Clone(s.Roles),
		Type:  TypeSession,
		Epoch: s.Epoch,
	}
	if claims.Roles == nil {
		claims.Roles = []string{}
	}
	return m.sign(s.UserID, m.config.SessionTTL, claims)
}

// IssueRefresh signs a refresh token for userID. Refresh tokens carry no
// roles; they are re-resolved when the token is exchanged.
func (m *Manager) IssueRefresh(userID string, epoch uint64) (Issued, error) {
	if userID == "" {
		return Issued{}, errors.New("jwt: subject user id is empty")
	}
	return m.sign(userID, m.config.RefreshTTL, Claims{Type: TypeRefresh, Epoch: epoch})
}

func (m *Manager) sign(userID string, ttl time.Duration, claims Claims) (Issued, error) {
	now := m.config.Now().UTC()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(ttl))

	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Issuer:    m.config.Issuer,
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	signed, err := token.SignedString(m.config.SigningKey)
	if err != nil {
		return Issued{}, fmt.Errorf("jwt: sign token: %w", err)
	}

	return Issued{
		Token:     signed,
		TokenID:   claims.ID,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
	}, nil
}

// Parse verifies the signature and time claims of tokenStr.
//
// It returns ErrExpiredToken once now >= exp and ErrMalformedToken for every
// other defect. The signature is checked before expiry, so a forged token is
// always reported as malformed.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMalformedToken
	}

	token, err := m.parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if m.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != m.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return m.config.SigningKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformedToken
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing sub or jti", ErrMalformedToken)
	}
	if claims.Type != TypeSession && claims.Type != TypeRefresh {
		return nil, fmt.Errorf("%w: unknown token type %q", ErrMalformedToken, claims.Type)
	}
	if claims.IssuedAt != nil {
		if claims.IssuedAt.After(m.config.Now().Add(m.config.MaxFutureIAT)) {
			return nil, fmt.Errorf("%w: iat too far in the future", ErrMalformedToken)
		}
	}

	return claims, nil
}

// IsRefresh reports whether tokenStr parses successfully and is a refresh
// token. Any parse failure yields false.
func (m *Manager) IsRefresh(tokenStr string) bool {
	claims, err := m.Parse(tokenStr)
	if err != nil {
		return false
	}
	return claims.IsRefresh()
}
