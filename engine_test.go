package authcore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/mfa"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/alicebob/miniredis/v2"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct-horse-battery"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type codeInbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *codeInbox) SendCode(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codes == nil {
		s.codes = make(map[string]string)
	}
	s.codes[email] = code
	return nil
}

func (s *codeInbox) last(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

type harness struct {
	engine *authcore.Engine
	users  *memory.Users
	clock  *testClock
	inbox  *codeInbox
	audit  *authcore.ChannelSink
}

func testConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.JWT.SigningKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.SessionTTL = 15 * time.Minute
	cfg.JWT.RefreshTTL = 24 * time.Hour
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 256
	cfg.Revocation.PurgeInterval = 0
	return cfg
}

func newHarness(t *testing.T, mutate ...func(*authcore.Builder)) *harness {
	t.Helper()

	h := &harness{
		users: memory.NewUsers(),
		clock: &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		inbox: &codeInbox{},
		audit: authcore.NewChannelSink(256),
	}

	b := authcore.New().
		WithConfig(testConfig()).
		WithUserProvider(h.users).
		WithCodeSender(h.inbox).
		WithAuditSink(h.audit).
		WithClock(h.clock.Now)
	for _, fn := range mutate {
		fn(b)
	}

	engine, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close(context.Background()) })
	h.engine = engine
	return h
}

func (h *harness) register(t *testing.T, email string) *authcore.TokenPair {
	t.Helper()
	pair, err := h.engine.Register(context.Background(), authcore.RegisterRequest{Email: email, Password: testPassword})
	require.NoError(t, err)
	return pair
}

func sessionIssuedAt(t *testing.T, token string) time.Time {
	t.Helper()
	var claims gojwt.RegisteredClaims
	_, _, err := gojwt.NewParser().ParseUnverified(token, &claims)
	require.NoError(t, err)
	require.NotNil(t, claims.IssuedAt)
	return claims.IssuedAt.Time
}

func (h *harness) principalCtx(t *testing.T, token string) context.Context {
	t.Helper()
	p, err := h.engine.Authenticate(context.Background(), token)
	require.NoError(t, err)
	return authcore.WithPrincipal(context.Background(), p)
}

func TestRegisterIssuesPairWithNoRoles(t *testing.T) {
	h := newHarness(t)

	pair := h.register(t, "  Alice@Example.com ")
	require.NotEmpty(t, pair.SessionToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "alice@example.com", pair.User.Email)
	require.NotNil(t, pair.User.Roles)
	require.Empty(t, pair.User.Roles)
	require.True(t, h.clock.Now().Add(15*time.Minute).Equal(pair.SessionExpiresAt))

	p, err := h.engine.Authenticate(context.Background(), pair.SessionToken)
	require.NoError(t, err)
	require.Equal(t, pair.User.ID, p.UserID)
	require.Empty(t, p.Roles)

	_, err = h.engine.Register(context.Background(), authcore.RegisterRequest{Email: "alice@example.com", Password: testPassword})
	require.ErrorIs(t, err, authcore.ErrAccountExists)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.Register(ctx, authcore.RegisterRequest{Email: "not-an-email", Password: testPassword})
	require.ErrorIs(t, err, authcore.ErrInvalidRegistration)

	_, err = h.engine.Register(ctx, authcore.RegisterRequest{Email: "bob@example.com", Password: "short"})
	require.ErrorIs(t, err, authcore.ErrPasswordPolicy)
}

func TestLoginWithoutMFA(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice@example.com")

	res, err := h.engine.Login(context.Background(), "ALICE@example.com", testPassword)
	require.NoError(t, err)
	require.False(t, res.MFARequired)
	require.NotNil(t, res.Tokens)
	require.NotEmpty(t, res.Tokens.SessionToken)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice@example.com")
	ctx := context.Background()

	_, wrongPassword := h.engine.Login(ctx, "alice@example.com", "wrong-password-123")
	_, unknownUser := h.engine.Login(ctx, "nobody@example.com", testPassword)

	require.ErrorIs(t, wrongPassword, authcore.ErrAuthenticationFailed)
	require.ErrorIs(t, unknownUser, authcore.ErrAuthenticationFailed)
	require.Equal(t, wrongPassword.Error(), unknownUser.Error())
	require.Equal(t, uint64(2), h.engine.MetricsSnapshot().Counters[authcore.MetricLoginFailure])
}

func TestEmailCodeMFAEndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pair := h.register(t, "alice@example.com")
	require.Empty(t, pair.User.Roles)

	userCtx := h.principalCtx(t, pair.SessionToken)
	require.NoError(t, h.engine.EnableMFA(userCtx, mfa.MethodEmailCode, "", ""))
	require.NoError(t, h.users.SetRoles(pair.User.ID, "editor"))

	res, err := h.engine.Login(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)
	require.True(t, res.MFARequired)
	require.Nil(t, res.Tokens)
	require.NotEmpty(t, res.MFAChallengeToken)
	require.Equal(t, mfa.MethodEmailCode, res.MFAMethod)
	require.Equal(t, "a***@example.com", res.MaskedEmailHint)

	code := h.inbox.last("alice@example.com")
	require.NotEmpty(t, code)

	tokens, err := h.engine.VerifyMFA(ctx, res.MFAChallengeToken, code)
	require.NoError(t, err)
	require.Equal(t, []string{"editor"}, tokens.User.Roles)

	p, err := h.engine.Authenticate(ctx, tokens.SessionToken)
	require.NoError(t, err)
	require.True(t, p.HasRole("editor"))

	_, err = h.engine.VerifyMFA(ctx, res.MFAChallengeToken, code)
	require.ErrorIs(t, err, authcore.ErrAuthenticationFailed)
}

func TestMFAChallengeExpires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pair := h.register(t, "alice@example.com")
	require.NoError(t, h.engine.EnableMFA(h.principalCtx(t, pair.SessionToken), mfa.MethodEmailCode, "", ""))

	res, err := h.engine.Login(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)

	h.clock.Advance(5 * time.Minute)
	_, err = h.engine.VerifyMFA(ctx, res.MFAChallengeToken, h.inbox.last("alice@example.com"))
	require.ErrorIs(t, err, authcore.ErrAuthenticationFailed)
}

func TestTOTPEnrollmentAndLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pair := h.register(t, "alice@example.com")
	userCtx := h.principalCtx(t, pair.SessionToken)

	enrollment, err := h.engine.EnrollTOTP(userCtx)
	require.NoError(t, err)
	require.Contains(t, enrollment.URL, "issuer=authcore")

	code := func(at time.Time) string {
		c, err := totp.GenerateCodeCustom(enrollment.Secret, at, totp.ValidateOpts{
			Period:    30,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		require.NoError(t, err)
		return c
	}

	require.ErrorIs(t, h.engine.EnableMFA(userCtx, mfa.MethodTOTP, enrollment.Secret, "000000x"), authcore.ErrAuthenticationFailed)
	require.NoError(t, h.engine.EnableMFA(userCtx, mfa.MethodTOTP, enrollment.Secret, code(h.clock.Now())))

	h.clock.Advance(2 * time.Minute)
	res, err := h.engine.Login(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)
	require.Equal(t, mfa.MethodTOTP, res.MFAMethod)
	require.Empty(t, res.MaskedEmailHint)

	current := code(h.clock.Now())
	_, err = h.engine.VerifyMFA(ctx, res.MFAChallengeToken, current)
	require.NoError(t, err)

	// Same step, new challenge.
	res, err = h.engine.Login(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)
	_, err = h.engine.VerifyMFA(ctx, res.MFAChallengeToken, current)
	require.ErrorIs(t, err, authcore.ErrAuthenticationFailed)
	require.Equal(t, uint64(1), h.engine.MetricsSnapshot().Counters[authcore.MetricMFAReplayDetected])
}

func TestDisableMFARequiresPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pair := h.register(t, "alice@example.com")
	userCtx := h.principalCtx(t, pair.SessionToken)
	require.NoError(t, h.engine.EnableMFA(userCtx, mfa.MethodEmailCode, "", ""))
	require.ErrorIs(t, h.engine.EnableMFA(userCtx, "sms", "", ""), authcore.ErrInvalidMFAMethod)

	require.ErrorIs(t, h.engine.DisableMFA(userCtx, "wrong-password-123"), authcore.ErrAuthenticationFailed)
	require.NoError(t, h.engine.DisableMFA(userCtx, testPassword))

	res, err := h.engine.Login(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)
	require.False(t, res.MFARequired)
}

func TestRefreshIssuesFreshSessionAndRotates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pair := h.register(t, "alice@example.com")
	require.NoError(t, h.users.SetRoles(pair.User.ID, "admin"))

	h.clock.Advance(10 * time.Minute)
	t1 := h.clock.Now()

	next, err := h.engine.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.True(t, t1.Add(15*time.Minute).Equal(next.SessionExpiresAt))
	require.Equal(t, []string{"admin"}, next.User.Roles)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	p, err := h.engine.Authenticate(ctx, next.SessionToken)
	require.NoError(t, err)
	require.True(t, p.HasRole("admin"))
	require.True(t, t1.Add(15*time.Minute).Equal(p.ExpiresAt))

	// A second rotation stamps the new session with its own time, not the
	// login's or the first refresh's.
	h.clock.Advance(2 * time.Minute)
	t2 := h.clock.Now()

	last, err := h.engine.Refresh(ctx, next.RefreshToken)
	require.NoError(t, err)
	require.True(t, t2.Add(15*time.Minute).Equal(last.SessionExpiresAt))

	p, err = h.engine.Authenticate(ctx, last.SessionToken)
	require.NoError(t, err)
	require.True(t, t2.Add(15*time.Minute).Equal(p.ExpiresAt))
	require.Equal(t, t2.Unix(), sessionIssuedAt(t, last.SessionToken).Unix())
}

func TestRefreshRejectsSessionToken(t *testing.T) {
	h := newHarness(t)
	pair := h.register(t, "alice@example.com")

	_, err := h.engine.Refresh(context.Background(), pair.SessionToken)
	require.ErrorIs(t, err, authcore.ErrAuthenticationFailed)

	_, err = h.engine.Authenticate(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, authcore.ErrTokenTypeMismatch)
}

func TestRefreshReuseRevokesEverything(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pair := h.register(t, "alice@example.com")

	h.clock.Advance(time.Second)
	next, err := h.engine.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	_, err = h.engine.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, authcore.ErrAuthenticationFailed)
	require.Equal(t, uint64(1), h.engine.MetricsSnapshot().Counters[authcore.MetricRefreshReuseDetected])

	_, err = h.engine.Authenticate(ctx, next.SessionToken)
	require.ErrorIs(t, err, authcore.ErrRevokedToken)
	_, err = h.engine.Refresh(ctx, next.RefreshToken)
	require.ErrorIs(t, err, authcore.ErrAuthenticationFailed)
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pair := h.register(t, "alice@example.com")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []*authcore.TokenPair
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if next, err := h.engine.Refresh(ctx, pair.RefreshToken); err == nil {
				mu.Lock()
				winners = append(winners, next)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, winners, 1)

	// Losing a rotation race is not reuse: the winner's pair stays valid.
	p, err := h.engine.Authenticate(ctx, winners[0].SessionToken)
	require.NoError(t, err)
	require.Equal(t, pair.User.ID, p.UserID)
	_, err = h.engine.Refresh(ctx, winners[0].RefreshToken)
	require.NoError(t, err)
}

func TestExpiredSessionRejected(t *testing.T) {
	h := newHarness(t)
	pair := h.register(t, "alice@example.com")

	h.clock.Advance(15*time.Minute - time.Second)
	_, err := h.engine.Authenticate(context.Background(), pair.SessionToken)
	require.NoError(t, err)

	h.clock.Advance(time.Second)
	_, err = h.engine.Authenticate(context.Background(), pair.SessionToken)
	require.ErrorIs(t, err, authcore.ErrExpiredToken)

	_, err = h.engine.Authenticate(context.Background(), "not.a.token")
	require.ErrorIs(t, err, authcore.ErrMalformedToken)
}

func TestChangePasswordInvalidatesEverySession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.register(t, "alice@example.com")
	second, err := h.engine.Login(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)

	userCtx := h.principalCtx(t, first.SessionToken)
	require.ErrorIs(t, h.engine.ChangePassword(ctx, testPassword, "another-password-1"), authcore.ErrUnauthenticated)
	require.ErrorIs(t, h.engine.ChangePassword(userCtx, "wrong-password-123", "another-password-1"), authcore.ErrAuthenticationFailed)
	require.ErrorIs(t, h.engine.ChangePassword(userCtx, testPassword, testPassword), authcore.ErrPasswordReuse)
	require.ErrorIs(t, h.engine.ChangePassword(userCtx, testPassword, "short"), authcore.ErrPasswordPolicy)
	require.NoError(t, h.engine.ChangePassword(userCtx, testPassword, "another-password-1"))

	for _, token := range []string{first.SessionToken, second.Tokens.SessionToken} {
		_, err = h.engine.Authenticate(ctx, token)
		require.ErrorIs(t, err, authcore.ErrRevokedToken)
	}
	_, err = h.engine.Refresh(ctx, second.Tokens.RefreshToken)
	require.ErrorIs(t, err, authcore.ErrAuthenticationFailed)

	_, err = h.engine.Login(ctx, "alice@example.com", testPassword)
	require.ErrorIs(t, err, authcore.ErrAuthenticationFailed)

	h.clock.Advance(time.Second)
	res, err := h.engine.Login(ctx, "alice@example.com", "another-password-1")
	require.NoError(t, err)
	_, err = h.engine.Authenticate(ctx, res.Tokens.SessionToken)
	require.NoError(t, err)
}

func TestLogoutRevokesSessionAndRefresh(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pair := h.register(t, "alice@example.com")
	other, err := h.engine.Login(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)

	userCtx := h.principalCtx(t, pair.SessionToken)
	require.NoError(t, h.engine.Logout(userCtx, pair.RefreshToken))

	_, err = h.engine.Authenticate(ctx, pair.SessionToken)
	require.ErrorIs(t, err, authcore.ErrRevokedToken)

	// Other sessions survive a single logout.
	_, err = h.engine.Authenticate(ctx, other.Tokens.SessionToken)
	require.NoError(t, err)

	require.NoError(t, h.engine.LogoutAll(h.principalCtx(t, other.Tokens.SessionToken)))
	_, err = h.engine.Authenticate(ctx, other.Tokens.SessionToken)
	require.ErrorIs(t, err, authcore.ErrRevokedToken)

	_, err = h.engine.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, authcore.ErrAuthenticationFailed)
	_, err = h.engine.Refresh(ctx, other.Tokens.RefreshToken)
	require.ErrorIs(t, err, authcore.ErrAuthenticationFailed)
}

func TestLogoutIgnoresForeignRefreshToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := h.register(t, "alice@example.com")
	bob := h.register(t, "bob@example.com")

	require.NoError(t, h.engine.Logout(h.principalCtx(t, alice.SessionToken), bob.RefreshToken))

	_, err := h.engine.Refresh(ctx, bob.RefreshToken)
	require.NoError(t, err)
}

func TestAdmitElevenRequests(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		a, err := h.engine.Admit(ctx, "203.0.113.7")
		require.NoError(t, err)
		require.True(t, a.Allowed)
		require.Equal(t, i, a.Count)
	}

	a, err := h.engine.Admit(ctx, "203.0.113.7")
	require.ErrorIs(t, err, authcore.ErrRateLimited)
	require.False(t, a.Allowed)
	require.Equal(t, 60*time.Second, a.RetryAfter(h.clock.Now()))

	_, err = h.engine.Admit(ctx, "203.0.113.8")
	require.NoError(t, err)

	h.clock.Advance(time.Minute + time.Second)
	_, err = h.engine.Admit(ctx, "203.0.113.7")
	require.NoError(t, err)
}


func TestAdmissionRetryAfter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		name  string
		reset time.Time
		want  time.Duration
	}{
		{"whole seconds", now.Add(30 * time.Second), 30 * time.Second},
		{"rounds up", now.Add(1500 * time.Millisecond), 2 * time.Second},
		{"already reset", now.Add(-time.Second), time.Second},
		{"zero", time.Time{}, time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, authcore.Admission{ResetAt: tc.reset}.RetryAfter(now))
		})
	}
}
func TestAdmitDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = false
	h := newHarness(t, func(b *authcore.Builder) { b.WithConfig(cfg) })

	require.False(t, h.engine.RateLimitEnabled())
	for i := 0; i < 50; i++ {
		a, err := h.engine.Admit(context.Background(), "203.0.113.7")
		require.NoError(t, err)
		require.True(t, a.Allowed)
	}
}

func TestPasswordUpgradedOnLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.users.Put(authcore.UserRecord{
		UserID:       "legacy-1",
		Email:        "legacy@example.com",
		PasswordHash: legacyBcrypt(t, testPassword),
	})

	_, err := h.engine.Login(ctx, "legacy@example.com", testPassword)
	require.NoError(t, err)

	u, err := h.users.GetUserByID(ctx, "legacy-1")
	require.NoError(t, err)
	require.Contains(t, u.PasswordHash, "$argon2id$")
	require.Equal(t, uint64(1), h.engine.MetricsSnapshot().Counters[authcore.MetricPasswordUpgraded])

	_, err = h.engine.Login(ctx, "legacy@example.com", testPassword)
	require.NoError(t, err)
}

func legacyBcrypt(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuditEventsCarryRequestContext(t *testing.T) {
	h := newHarness(t)

	ctx := authcore.WithRequestID(context.Background(), "req-1")
	ctx = authcore.WithClientIP(ctx, "198.51.100.4")
	_, err := h.engine.Login(ctx, "nobody@example.com", testPassword)
	require.ErrorIs(t, err, authcore.ErrAuthenticationFailed)

	require.NoError(t, h.engine.Close(context.Background()))

	select {
	case ev := <-h.audit.Events():
		require.Equal(t, "login", ev.Type)
		require.False(t, ev.Success)
		require.Equal(t, "user_not_found", ev.Reason)
		require.Equal(t, "req-1", ev.RequestID)
		require.Equal(t, "198.51.100.4", ev.IP)
		require.True(t, h.clock.Now().Equal(ev.Timestamp))
	default:
		t.Fatal("expected an audit event")
	}
}

func TestBuildRejectsBadConfiguration(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.SigningKey = []byte("too-short")

	_, err := authcore.New().WithConfig(cfg).WithUserProvider(memory.NewUsers()).Build()
	require.ErrorIs(t, err, authcore.ErrConfiguration)

	_, err = authcore.New().WithConfig(testConfig()).Build()
	require.ErrorIs(t, err, authcore.ErrConfiguration)

	require.Panics(t, func() {
		authcore.New().WithConfig(cfg).WithUserProvider(memory.NewUsers()).MustBuild()
	})

	b := authcore.New().WithConfig(testConfig()).WithUserProvider(memory.NewUsers())
	e, err := b.Build()
	require.NoError(t, err)
	defer e.Close(context.Background())
	_, err = b.Build()
	require.ErrorIs(t, err, authcore.ErrConfiguration)
}

func TestRedisBackedEngine(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	h := newHarness(t, func(b *authcore.Builder) { b.WithRedis(rdb) })
	ctx := context.Background()

	pair := h.register(t, "alice@example.com")
	userCtx := h.principalCtx(t, pair.SessionToken)
	require.NoError(t, h.engine.Logout(userCtx, pair.RefreshToken))

	_, err = h.engine.Authenticate(ctx, pair.SessionToken)
	require.ErrorIs(t, err, authcore.ErrRevokedToken)

	mr.Close()
	_, err = h.engine.Login(ctx, "alice@example.com", testPassword)
	require.ErrorIs(t, err, authcore.ErrUnavailable)
	_, err = h.engine.Admit(ctx, "203.0.113.7")
	require.ErrorIs(t, err, authcore.ErrUnavailable)
	require.False(t, errors.Is(err, authcore.ErrRateLimited))
}
