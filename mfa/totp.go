package mfa

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Enrollment is the material a user loads into an authenticator app.
type Enrollment struct {
	Secret string
	URL    string
}

// GenerateTOTPSecret creates a new base32 secret for account.
func (m *Manager) GenerateTOTPSecret(issuer, account string) (Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      m.config.TOTPPeriod,
		Digits:      m.config.TOTPDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("mfa: generate totp secret: %w", err)
	}
	return Enrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

// ValidateTOTP reports whether code is valid for secret at now within the
// configured skew. It does not consult the replay guard.
func (m *Manager) ValidateTOTP(secret, code string, now time.Time) bool {
	_, ok := m.matchTOTP(secret, code, now)
	return ok
}

// matchTOTP returns the time step whose code equals code. Every step in the
// skew window is compared so the timing does not reveal which one matched.
func (m *Manager) matchTOTP(secret, code string, now time.Time) (int64, bool) {
	code = strings.TrimSpace(code)
	if secret == "" || len(code) != m.config.TOTPDigits.Length() {
		return 0, false
	}

	period := int64(m.config.TOTPPeriod)
	skew := int64(m.config.TOTPSkew)
	opts := totp.ValidateOpts{
		Period:    m.config.TOTPPeriod,
		Digits:    m.config.TOTPDigits,
		Algorithm: otp.AlgorithmSHA1,
	}

	var (
		matched int64
		found   bool
	)
	for offset := -skew; offset <= skew; offset++ {
		at := now.Add(time.Duration(offset*period) * time.Second)
		expected, err := totp.GenerateCodeCustom(secret, at, opts)
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 && !found {
			matched = at.Unix() / period
			found = true
		}
	}
	return matched, found
}

// replayWindow is how long an accepted step must be remembered: the span of
// time during which any code from it could still validate.
func (m *Manager) replayWindow() time.Duration {
	return time.Duration(m.config.TOTPPeriod*(2*m.config.TOTPSkew+1)) * time.Second
}

// ConfirmEnrollment checks the first code a user enters after loading
// secret into an authenticator. The matched step is claimed in the replay
// guard so the same code cannot also complete a login.
func (m *Manager) ConfirmEnrollment(ctx context.Context, userID, secret, code string) error {
	step, ok := m.matchTOTP(secret, code, m.config.Now())
	if !ok {
		return ErrChallengeCodeMismatch
	}
	if m.replay == nil {
		return nil
	}
	fresh, err := m.replay.Claim(ctx, userID, step, m.replayWindow())
	if err != nil {
		return err
	}
	if !fresh {
		return ErrTOTPReplay
	}
	return nil
}
