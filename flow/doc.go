// Package flow orchestrates the ordering conversation as a state
// machine over the chatbot steps.
//
// Transitions are table-driven: each step lists the steps reachable
// from it, and guarded edges (entering cart review, entering checkout)
// additionally consult the validators. Every transition pushes the
// prior step onto a history stack for GoBack. Session expiry forces the
// flow back to authentication from anywhere, dropping in-memory cart
// state; the session manager has already backed the cart up durably.
//
// The orchestrator is the engine's outward surface: the presentation
// layer reads State snapshots and calls the action methods, nothing
// else.
package flow
