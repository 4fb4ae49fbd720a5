package recovery

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrkphani/heybo-engine/errors"
)

func TestOTPFailure_ProgressiveLockout(t *testing.T) {
	m, _ := newManager(t)
	const challenge = "chg-001"

	// Four invalid codes count down without locking.
	for attempt := 1; attempt <= MaxOTPAttempts-1; attempt++ {
		state := m.OTPFailure(challenge, OTPInvalid, "code mismatch")
		remaining := MaxOTPAttempts - attempt

		assert.Equal(t, "OTP_INVALID", state.Code)
		assert.True(t, state.Recoverable)
		assert.Equal(t, remaining, state.Details["attemptsRemaining"])
		assert.Equal(t, remaining, m.OTPAttemptsRemaining(challenge))

		primary := state.PrimaryAction()
		require.NotNil(t, primary)
		assert.Equal(t, errors.ActionRetry, primary.ID)
		assert.Contains(t, primary.Label, fmt.Sprintf("%d attempts left", remaining))
	}

	// The fifth invalid code locks the challenge out.
	state := m.OTPFailure(challenge, OTPInvalid, "code mismatch")
	assert.Equal(t, "OTP_LOCKED_OUT", state.Code)
	assert.False(t, state.Recoverable)
	assert.Equal(t, 0, state.Details["attemptsRemaining"])
	require.Len(t, state.Actions, 1)
	assert.Equal(t, errors.ActionWaitLockout, state.Actions[0].ID)

	// Budget stays pinned at zero on further failures.
	state = m.OTPFailure(challenge, OTPInvalid, "code mismatch")
	assert.Equal(t, "OTP_LOCKED_OUT", state.Code)
	assert.Equal(t, 0, m.OTPAttemptsRemaining(challenge))
}

func TestOTPFailure_CountersAreChallengeScoped(t *testing.T) {
	m, _ := newManager(t)

	m.OTPFailure("chg-a", OTPInvalid, "mismatch")
	m.OTPFailure("chg-a", OTPInvalid, "mismatch")

	assert.Equal(t, MaxOTPAttempts-2, m.OTPAttemptsRemaining("chg-a"))
	assert.Equal(t, MaxOTPAttempts, m.OTPAttemptsRemaining("chg-b"))
}

func TestOTPSucceeded_ResetsCounter(t *testing.T) {
	m, _ := newManager(t)
	const challenge = "chg-002"

	m.OTPFailure(challenge, OTPInvalid, "mismatch")
	m.OTPFailure(challenge, OTPInvalid, "mismatch")
	require.Equal(t, MaxOTPAttempts-2, m.OTPAttemptsRemaining(challenge))

	m.OTPSucceeded(challenge)
	assert.Equal(t, MaxOTPAttempts, m.OTPAttemptsRemaining(challenge))
}

func TestOTPFailure_NonInvalidKindsDoNotConsumeBudget(t *testing.T) {
	m, _ := newManager(t)
	const challenge = "chg-003"

	expired := m.OTPFailure(challenge, OTPExpired, "code too old")
	assert.Equal(t, "OTP_EXPIRED", expired.Code)
	assert.Equal(t, errors.ActionSendNewCode, expired.PrimaryAction().ID)

	limited := m.OTPFailure(challenge, OTPRateLimited, "slow down")
	assert.Equal(t, "OTP_RATE_LIMITED", limited.Code)
	assert.Equal(t, errors.SeverityHigh, limited.Severity)

	down := m.OTPFailure(challenge, OTPServiceDown, "sms gateway unreachable")
	assert.Equal(t, "OTP_SERVICE_DOWN", down.Code)
	assert.Equal(t, errors.SeverityCritical, down.Severity)
	assert.Equal(t, errors.ActionAltMethod, down.PrimaryAction().ID)

	assert.Equal(t, MaxOTPAttempts, m.OTPAttemptsRemaining(challenge))
}

func TestAuthFailure_Classification(t *testing.T) {
	m, _ := newManager(t)

	tests := []struct {
		kind        AuthFailureKind
		code        string
		primary     string
		severity    errors.Severity
		recoverable bool
	}{
		{AuthTokenExpired, "TOKEN_EXPIRED", errors.ActionReauthenticate, errors.SeverityHigh, true},
		{AuthTokenInvalid, "TOKEN_INVALID", errors.ActionReauthenticate, errors.SeverityHigh, true},
		{AuthTokenMalformed, "MALFORMED_TOKEN", errors.ActionClearAndRetry, errors.SeverityHigh, false},
		{AuthServiceDown, "AUTH_SERVICE_DOWN", errors.ActionRetry, errors.SeverityCritical, true},
	}
	for _, test := range tests {
		t.Run(string(test.kind), func(t *testing.T) {
			state := m.AuthFailure(test.kind, "upstream said no")
			assert.Equal(t, test.code, state.Code)
			assert.Equal(t, test.severity, state.Severity)
			assert.Equal(t, test.recoverable, state.Recoverable)
			require.NotNil(t, state.PrimaryAction())
			assert.Equal(t, test.primary, state.PrimaryAction().ID)
		})
	}
}

func TestAuthFailure_MalformedTokenNeverRetries(t *testing.T) {
	m, _ := newManager(t)
	state := m.AuthFailure(AuthTokenMalformed, "bad jwt segment count")

	err := m.RetryError(state.ID, func() {})
	assert.ErrorIs(t, err, errors.ErrNotRecoverable)
}
