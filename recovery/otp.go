package recovery

import (
	"fmt"

	"github.com/jrkphani/heybo-engine/errors"
)

// MaxOTPAttempts is the per-challenge budget of invalid codes before
// lockout.
const MaxOTPAttempts = 5

// OTPFailureKind names the OTP failure families.
type OTPFailureKind string

const (
	OTPInvalid     OTPFailureKind = "invalid-code"
	OTPExpired     OTPFailureKind = "expired-code"
	OTPRateLimited OTPFailureKind = "rate-limited"
	OTPServiceDown OTPFailureKind = "service-down"
)

// OTPFailure classifies an OTP failure for one challenge, implementing
// progressive lockout: every invalid code decrements the challenge's
// remaining-attempts counter (surfaced in the action label); at zero
// the only remaining action is waiting out the lockout. Expired codes
// offer a fresh code as primary; a downed OTP service offers an
// alternative method plus escalation.
func (m *Manager) OTPFailure(challengeID string, kind OTPFailureKind, message string) errors.State {
	switch kind {
	case OTPInvalid:
		remaining := m.decrementOTP(challengeID)
		if remaining <= 0 {
			return m.CreateErrorWithActions(
				errors.CategoryAuthentication,
				"OTP_LOCKED_OUT",
				message,
				"Too many incorrect codes. Verification is locked for a while",
				errors.SeverityHigh,
				false,
				[]errors.RecoveryAction{
					{ID: errors.ActionWaitLockout, Label: "Wait before trying again", Primary: true},
				},
				map[string]any{"challengeId": challengeID, "attemptsRemaining": 0},
			)
		}
		return m.CreateErrorWithActions(
			errors.CategoryAuthentication,
			"OTP_INVALID",
			message,
			"That code didn't match",
			errors.SeverityHigh,
			true,
			[]errors.RecoveryAction{
				{ID: errors.ActionRetry, Label: fmt.Sprintf("Try again (%d attempts left)", remaining), Primary: true},
				{ID: errors.ActionSendNewCode, Label: "Send a new code"},
				{ID: errors.ActionDismiss, Label: "Dismiss"},
			},
			map[string]any{"challengeId": challengeID, "attemptsRemaining": remaining},
		)
	case OTPExpired:
		return m.CreateErrorWithActions(
			errors.CategoryAuthentication,
			"OTP_EXPIRED",
			message,
			"That code has expired",
			errors.SeverityMedium,
			true,
			[]errors.RecoveryAction{
				{ID: errors.ActionSendNewCode, Label: "Send a new code", Primary: true},
				{ID: errors.ActionDismiss, Label: "Dismiss"},
			},
			map[string]any{"challengeId": challengeID},
		)
	case OTPRateLimited:
		return m.CreateErrorWithActions(
			errors.CategoryAuthentication,
			"OTP_RATE_LIMITED",
			message,
			"Too many codes requested. Give it a minute",
			errors.SeverityHigh,
			true,
			[]errors.RecoveryAction{
				{ID: errors.ActionWaitLockout, Label: "Wait and retry", Primary: true},
				{ID: errors.ActionDismiss, Label: "Dismiss"},
			},
			map[string]any{"challengeId": challengeID},
		)
	default: // OTPServiceDown
		return m.CreateErrorWithActions(
			errors.CategoryAuthentication,
			"OTP_SERVICE_DOWN",
			message,
			"Code delivery is temporarily unavailable",
			errors.SeverityCritical,
			true,
			[]errors.RecoveryAction{
				{ID: errors.ActionAltMethod, Label: "Verify another way", Primary: true},
				{ID: errors.ActionRetry, Label: "Try again"},
				{ID: errors.ActionContactSupport, Label: "Contact support"},
			},
			map[string]any{"challengeId": challengeID},
		)
	}
}

// OTPSucceeded clears a challenge's attempt counter after successful
// verification.
func (m *Manager) OTPSucceeded(challengeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.otpRemaining, challengeID)
}

// OTPAttemptsRemaining returns the challenge's remaining budget.
func (m *Manager) OTPAttemptsRemaining(challengeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if remaining, ok := m.otpRemaining[challengeID]; ok {
		return remaining
	}
	return MaxOTPAttempts
}

func (m *Manager) decrementOTP(challengeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining, ok := m.otpRemaining[challengeID]
	if !ok {
		remaining = MaxOTPAttempts
	}
	if remaining > 0 {
		remaining--
	}
	m.otpRemaining[challengeID] = remaining
	return remaining
}
