// Package errors provides standardized error handling for the order engine.
//
// # Overview
//
// Failures are classified into eight categories (authentication, validation,
// network, api, ml, session, ordering, cart), each with a default retry
// budget and recoverability policy. Infrastructure categories (network, api,
// ml, session) always surface as an error state through the recovery
// manager; validation and business-rule categories are resolved locally by
// refusing a state transition.
//
// # Error Wrapping Pattern
//
// All wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Use WrapAs to attach a category while wrapping:
//
//	return errors.WrapAs(errors.CategoryNetwork, err, "sessionRepo", "Load", "read session key")
//
// The plain Wrap preserves any category already on the chain. CategoryOf
// recovers the category from a wrapped chain via errors.As, defaulting to
// CategoryAPI for unclassified errors.
//
// # Standard Error Variables
//
// Well-known conditions have package-level variables (ErrSessionExpired,
// ErrSessionCorrupted, ErrCartVersionConflict, ...) so callers branch with
// errors.Is instead of string matching.
package errors
