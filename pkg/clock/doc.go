// Package clock provides a cancellable delayed-callback scheduler.
//
// Session warning/expiry timers and retry backoff delays are the only
// time-driven control flow in the engine. Representing them behind the
// Scheduler interface keeps that control flow explicit and lets tests
// advance virtual time deterministically with Fake instead of sleeping.
package clock
