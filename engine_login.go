package authcore

import (
	"context"
	"errors"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/mfa"
)

// Login checks email and password. Users without a second factor receive
// a token pair. Users with one receive a challenge-only result and must
// finish with VerifyMFA.
//
// An unknown email and a wrong password both return
// ErrAuthenticationFailed after the same amount of hashing work.
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	user, err := e.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_, _ = e.hasher.Verify(pass, e.dummyHash)
			return nil, e.reject(ctx, internalaudit.TypeLogin, MetricLoginFailure, "", reasonUserNotFound, nil)
		}
		return nil, e.unavailable(ctx, internalaudit.TypeLogin, "", err)
	}

	ok, err := e.hasher.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		return nil, e.reject(ctx, internalaudit.TypeLogin, MetricLoginFailure, user.UserID, reasonInvalidCredentials, err)
	}

	if e.config.Password.UpgradeOnLogin {
		e.upgradeHash(ctx, user, pass)
	}

	if user.MFAMethod.Valid() {
		issued, err := e.mfa.Issue(ctx, mfa.IssueRequest{
			UserID: user.UserID,
			Email:  user.Email,
			Method: user.MFAMethod,
		})
		if err != nil {
			return nil, e.unavailable(ctx, internalaudit.TypeMFAChallenge, user.UserID, err)
		}

		e.metricInc(MetricMFARequired)
		e.emitAudit(ctx, internalaudit.TypeMFAChallenge, true, user.UserID, "", "", map[string]string{
			"method": string(issued.Method),
		})
		return &LoginResult{
			MFARequired:       true,
			MFAChallengeToken: issued.ChallengeID,
			MFAMethod:         issued.Method,
			MaskedEmailHint:   issued.MaskedEmail,
		}, nil
	}

	pair, err := e.issuePair(ctx, user)
	if err != nil {
		return nil, e.unavailable(ctx, internalaudit.TypeLogin, user.UserID, err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitSuccess(ctx, internalaudit.TypeLogin, user.UserID, "")
	return &LoginResult{Tokens: pair}, nil
}

// upgradeHash rehashes pass under the current parameters. Failure is
// logged and does not fail the login.
func (e *Engine) upgradeHash(ctx context.Context, user UserRecord, pass string) {
	needs, err := e.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}

	hash, err := e.hasher.Hash(pass)
	if err != nil {
		e.log(ctx).Warn().Err(err).Str("user_id", user.UserID).Msg("password rehash failed")
		return
	}
	if err := e.users.UpdatePasswordHash(ctx, user.UserID, hash); err != nil {
		e.log(ctx).Warn().Err(err).Str("user_id", user.UserID).Msg("password rehash not stored")
		return
	}
	e.metricInc(MetricPasswordUpgraded)
}

// VerifyMFA answers the challenge issued by Login. On success the pair
// carries the user's roles as of now, not as of Login.
func (e *Engine) VerifyMFA(ctx context.Context, challengeToken, code string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	challenge, err := e.mfa.Verify(ctx, challengeToken, code)
	if err != nil {
		switch {
		case errors.Is(err, mfa.ErrUnavailable), errors.Is(err, ErrUnavailable):
			return nil, e.unavailable(ctx, internalaudit.TypeMFAVerify, "", err)
		case errors.Is(err, mfa.ErrTOTPReplay):
			e.metricInc(MetricMFAReplayDetected)
		}
		return nil, e.reject(ctx, internalaudit.TypeMFAVerify, MetricMFAFailure, "", mfaReason(err), err)
	}

	user, found, err := e.lookupUser(ctx, challenge.UserID)
	if err != nil {
		return nil, e.unavailable(ctx, internalaudit.TypeMFAVerify, challenge.UserID, err)
	}
	if !found {
		return nil, e.reject(ctx, internalaudit.TypeMFAVerify, MetricMFAFailure, challenge.UserID, reasonUserNotFound, nil)
	}

	pair, err := e.issuePair(ctx, user)
	if err != nil {
		return nil, e.unavailable(ctx, internalaudit.TypeMFAVerify, user.UserID, err)
	}

	e.metricInc(MetricMFASuccess)
	e.metricInc(MetricLoginSuccess)
	e.emitSuccess(ctx, internalaudit.TypeMFAVerify, user.UserID, "")
	return pair, nil
}

func mfaReason(err error) string {
	switch {
	case errors.Is(err, mfa.ErrChallengeExpired):
		return reasonMFAExpired
	case errors.Is(err, mfa.ErrChallengeAlreadyUsed):
		return reasonMFAUsed
	case errors.Is(err, mfa.ErrChallengeAttemptsExceeded):
		return reasonMFAAttempts
	case errors.Is(err, mfa.ErrTOTPReplay):
		return reasonMFAReplay
	case errors.Is(err, mfa.ErrChallengeNotFound):
		return reasonMFANotFound
	case errors.Is(err, ErrUserNotFound):
		return reasonUserNotFound
	default:
		return reasonMFAMismatch
	}
}
