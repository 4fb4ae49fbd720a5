package errors

import "time"

// Well-known recovery action IDs. The presentation layer dispatches on
// these; labels are display hints only.
const (
	ActionRetry          = "retry"
	ActionDismiss        = "dismiss"
	ActionReauthenticate = "re-authenticate"
	ActionClearAndRetry  = "clear-and-retry"
	ActionContactSupport = "contact-support"
	ActionSendNewCode    = "send-new-code"
	ActionWaitLockout    = "wait-for-lockout"
	ActionAltMethod      = "alternative-method"
	ActionSignIn         = "sign-in"
	ActionContinueGuest  = "continue-as-guest"
	ActionKeepThisDevice = "keep-this-device"
	ActionKeepOther      = "keep-other-device"
	ActionAcceptFallback = "accept-fallback"
	ActionBuildManually  = "build-manually"
)

// RecoveryAction is a labeled, invokable remedy attached to an error
// state or session warning. Exactly one action in a set should be
// primary.
type RecoveryAction struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Primary bool   `json:"primary"`
}

// State is one tracked failure: what went wrong, how bad it is, and
// what the user can do about it. States live in memory for the life of
// the session and are never persisted across a reload.
type State struct {
	ID          string           `json:"id"`
	Category    Category         `json:"category"`
	Code        string           `json:"code"`
	Message     string           `json:"message"`     // internal, for logs
	UserMessage string           `json:"userMessage"` // displayable
	Severity    Severity         `json:"severity"`
	Recoverable bool             `json:"recoverable"`
	RetryCount  int              `json:"retryCount"`
	MaxRetries  int              `json:"maxRetries"`
	Actions     []RecoveryAction `json:"recoveryActions"`
	Resolved    bool             `json:"resolved"`
	Timestamp   time.Time        `json:"timestamp"`
	Details     map[string]any   `json:"details,omitempty"`
}

// CanRetry reports whether the state has retry budget left.
func (s *State) CanRetry() bool {
	return s.Recoverable && !s.Resolved && s.RetryCount < s.MaxRetries
}

// PrimaryAction returns the primary recovery action, or the first action
// when none is marked primary, or nil for an empty action set.
func (s *State) PrimaryAction() *RecoveryAction {
	for i := range s.Actions {
		if s.Actions[i].Primary {
			return &s.Actions[i]
		}
	}
	if len(s.Actions) > 0 {
		return &s.Actions[0]
	}
	return nil
}

// DefaultActions returns the baseline action set for a new state:
// "retry" (primary) when recoverable, always "dismiss", and
// "contact support" at critical severity.
func DefaultActions(recoverable bool, severity Severity) []RecoveryAction {
	var actions []RecoveryAction
	if recoverable {
		actions = append(actions, RecoveryAction{ID: ActionRetry, Label: "Try again", Primary: true})
	}
	actions = append(actions, RecoveryAction{ID: ActionDismiss, Label: "Dismiss", Primary: !recoverable && severity < SeverityCritical})
	if severity >= SeverityCritical {
		actions = append(actions, RecoveryAction{ID: ActionContactSupport, Label: "Contact support", Primary: !recoverable})
	}
	return actions
}
