package recovery

import "github.com/jrkphani/heybo-engine/errors"

// AuthFailureKind names the authentication failure families the widget
// sees in practice.
type AuthFailureKind string

const (
	AuthTokenInvalid   AuthFailureKind = "token-invalid"
	AuthTokenExpired   AuthFailureKind = "token-expired"
	AuthTokenMalformed AuthFailureKind = "token-malformed"
	AuthServiceDown    AuthFailureKind = "service-down"
)

// AuthFailure classifies an authentication failure into an error state
// with the matching primary recovery action: re-authenticate for
// invalid/expired tokens, clear-and-retry for malformed tokens, and
// escalation for a downed auth service. Service-down is critical
// severity; everything else is high.
func (m *Manager) AuthFailure(kind AuthFailureKind, message string) errors.State {
	switch kind {
	case AuthTokenExpired:
		return m.CreateErrorWithActions(
			errors.CategoryAuthentication,
			"TOKEN_EXPIRED",
			message,
			"Your sign-in has expired. Please sign in again",
			errors.SeverityHigh,
			true,
			[]errors.RecoveryAction{
				{ID: errors.ActionReauthenticate, Label: "Sign in again", Primary: true},
				{ID: errors.ActionContinueGuest, Label: "Continue as guest"},
				{ID: errors.ActionDismiss, Label: "Dismiss"},
			},
			nil,
		)
	case AuthTokenInvalid:
		return m.CreateErrorWithActions(
			errors.CategoryAuthentication,
			"TOKEN_INVALID",
			message,
			"We couldn't verify your sign-in. Please sign in again",
			errors.SeverityHigh,
			true,
			[]errors.RecoveryAction{
				{ID: errors.ActionReauthenticate, Label: "Sign in again", Primary: true},
				{ID: errors.ActionDismiss, Label: "Dismiss"},
			},
			nil,
		)
	case AuthTokenMalformed:
		// Retrying the same token can never succeed; clear it first.
		return m.CreateErrorWithActions(
			errors.CategoryAuthentication,
			"MALFORMED_TOKEN",
			message,
			"Something went wrong with your sign-in data",
			errors.SeverityHigh,
			false,
			[]errors.RecoveryAction{
				{ID: errors.ActionClearAndRetry, Label: "Clear and sign in again", Primary: true},
				{ID: errors.ActionContactSupport, Label: "Contact support"},
				{ID: errors.ActionDismiss, Label: "Dismiss"},
			},
			nil,
		)
	default: // AuthServiceDown
		return m.CreateErrorWithActions(
			errors.CategoryAuthentication,
			"AUTH_SERVICE_DOWN",
			message,
			"Sign-in is temporarily unavailable",
			errors.SeverityCritical,
			true,
			[]errors.RecoveryAction{
				{ID: errors.ActionRetry, Label: "Try again", Primary: true},
				{ID: errors.ActionContinueGuest, Label: "Continue as guest"},
				{ID: errors.ActionContactSupport, Label: "Contact support"},
			},
			nil,
		)
	}
}
