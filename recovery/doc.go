// Package recovery implements the error and recovery manager.
//
// Every component that can fail reports through the manager instead of
// letting errors escape a component boundary. Each reported failure
// becomes an error state that moves from created through zero or more
// retries to resolved.
// The manager gates retries (budget per category, exponential backoff
// via the injected scheduler) but never re-runs the failed operation
// itself; the caller supplies the re-attempt when scheduling a retry.
//
// Two high-frequency failure families get specialized classification:
// authentication failures map to distinct primary recovery actions, and
// OTP failures implement progressive lockout with a per-challenge
// remaining-attempts counter.
//
// States live in memory for the life of the session and are never
// persisted across a reload.
package recovery
