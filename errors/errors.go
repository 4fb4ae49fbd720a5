package errors

import (
	"errors"
	"fmt"
)

// Category classifies a failure for retry budgets and surfacing policy.
type Category string

const (
	// CategoryAuthentication covers token, credential and OTP failures.
	CategoryAuthentication Category = "authentication"
	// CategoryValidation covers business-rule and input failures. Never retried.
	CategoryValidation Category = "validation"
	// CategoryNetwork covers transport-level failures and timeouts.
	CategoryNetwork Category = "network"
	// CategoryAPI covers upstream service failures.
	CategoryAPI Category = "api"
	// CategoryML covers recommendation-source failures.
	CategoryML Category = "ml"
	// CategorySession covers session lifecycle failures (expiry, corruption, conflict).
	CategorySession Category = "session"
	// CategoryOrdering covers order submission failures.
	CategoryOrdering Category = "ordering"
	// CategoryCart covers cart mutation and consistency failures.
	CategoryCart Category = "cart"
)

// Severity ranks how urgently an error needs user attention.
type Severity int

const (
	// SeverityLow is informational; the flow continues unaffected.
	SeverityLow Severity = iota
	// SeverityMedium degrades the experience but has an automatic fallback.
	SeverityMedium
	// SeverityHigh blocks the current operation until a recovery action runs.
	SeverityHigh
	// SeverityCritical blocks the flow and surfaces a support-contact action.
	SeverityCritical
)

// String returns the string representation of Severity.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Session lifecycle errors
	ErrSessionExpired   = errors.New("session expired")
	ErrSessionCorrupted = errors.New("session record corrupted")
	ErrSessionConflict  = errors.New("session active on another device")
	ErrNoSession        = errors.New("no current session")

	// Authentication errors
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenInvalid     = errors.New("token invalid")
	ErrTokenMalformed   = errors.New("token malformed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrAuthServiceDown  = errors.New("authentication service unavailable")
	ErrOTPInvalid       = errors.New("otp code invalid")
	ErrOTPExpired       = errors.New("otp code expired")
	ErrOTPRateLimited   = errors.New("otp attempts rate limited")
	ErrOTPServiceDown   = errors.New("otp service unavailable")

	// Cart and bowl errors
	ErrCartEmpty           = errors.New("cart is empty")
	ErrCartVersionConflict = errors.New("cart modified concurrently")
	ErrBaseRequired        = errors.New("bowl requires a base")
	ErrSideCapReached      = errors.New("side limit reached")
	ErrWeightExceeded      = errors.New("bowl exceeds maximum weight")

	// Ingredient and availability errors
	ErrIngredientUnknown     = errors.New("ingredient not in catalog")
	ErrIngredientUnavailable = errors.New("ingredient unavailable")
	ErrLocationClosed        = errors.New("location outside operational hours")

	// Infrastructure errors
	ErrStoreUnavailable  = errors.New("key-value store unavailable")
	ErrKeyNotFound       = errors.New("key not found")
	ErrRevisionMismatch  = errors.New("revision mismatch (concurrent update)")
	ErrRequestTimeout    = errors.New("request timeout")
	ErrSourceUnavailable = errors.New("recommendation source unavailable")

	// Flow errors
	ErrInvalidTransition  = errors.New("invalid step transition")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
	ErrNotRecoverable     = errors.New("error is not recoverable")
)

// ClassifiedError wraps an error with its category
type ClassifiedError struct {
	Category  Category
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapAs wraps an error with a category and standard context
func WrapAs(category Category, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Category:  category,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

// CategoryOf returns the category of an error chain. Unclassified errors
// map to CategoryNetwork when they carry a known transport condition and
// CategoryAPI otherwise.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryAPI
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Category
	}

	switch {
	case errors.Is(err, ErrRequestTimeout),
		errors.Is(err, ErrStoreUnavailable):
		return CategoryNetwork
	case errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrSessionCorrupted),
		errors.Is(err, ErrSessionConflict),
		errors.Is(err, ErrNoSession):
		return CategorySession
	case errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenMalformed),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrAuthServiceDown):
		return CategoryAuthentication
	case errors.Is(err, ErrSourceUnavailable):
		return CategoryML
	case errors.Is(err, ErrCartEmpty),
		errors.Is(err, ErrCartVersionConflict):
		return CategoryCart
	case errors.Is(err, ErrBaseRequired),
		errors.Is(err, ErrSideCapReached),
		errors.Is(err, ErrWeightExceeded),
		errors.Is(err, ErrIngredientUnknown),
		errors.Is(err, ErrInvalidTransition):
		return CategoryValidation
	}

	return CategoryAPI
}

// IsInfrastructure reports whether failures in this category always
// produce an error state. Validation and business-rule categories are
// instead resolved locally by refusing a state transition.
func (c Category) IsInfrastructure() bool {
	switch c {
	case CategoryNetwork, CategoryAPI, CategoryML, CategorySession:
		return true
	default:
		return false
	}
}

// DefaultMaxRetries returns the retry budget assigned to new error
// states in this category.
func (c Category) DefaultMaxRetries() int {
	switch c {
	case CategoryAPI:
		return 3
	case CategoryNetwork:
		return 5
	case CategoryML:
		return 2
	case CategoryAuthentication:
		return 1
	case CategoryValidation:
		return 0
	default:
		return 1
	}
}

// nonRecoverableCodes are failure codes that no retry can fix.
var nonRecoverableCodes = map[string]bool{
	"MALFORMED_TOKEN":   true,
	"CORRUPTED_SESSION": true,
	"UNAUTHORIZED":      true,
}

// DefaultRecoverable reports whether an error code is recoverable by
// default. Malformed-token, corrupted-session and unauthorized codes are
// not; everything else is.
func DefaultRecoverable(code string) bool {
	return !nonRecoverableCodes[code]
}
