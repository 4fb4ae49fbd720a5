// Package heybo is the ordering engine behind the HeyBo grain-bowl
// widget: session lifecycle, bowl and cart validation, error recovery,
// recommendation fallbacks, ratings and the ordering flow state
// machine.
//
// # Architecture
//
// The engine is layered so that a widget frontend only talks to the
// flow orchestrator, and everything below it stays replaceable:
//
//   - flow: the step state machine the widget drives. Transitions are
//     guarded by validation, so a bowl without a base never reaches
//     cart review and an empty cart never reaches checkout.
//   - session: device-keyed session records with idle expiry, timeout
//     warnings, conflict detection across devices and durable cart
//     backup on expiry.
//   - validate: bowl and cart rules. Rules are split into blocking
//     errors (no base, hard weight cap) and advisory warnings
//     (approaching the weight limit), so composition stays permissive
//     while checkout stays safe.
//   - recovery: classified error tracking with per-category retry
//     budgets, exponential backoff and user-facing recovery actions,
//     including progressive OTP lockout.
//   - recommend: a fallback chain (ML source, cached results, popular
//     bowls, signature bowls) that always returns something to render.
//   - rating: durable post-order rating capture with background
//     delivery and a retry queue for offline periods.
//
// Supporting packages: menu (ingredient catalog and bowl composition),
// storage (in-memory and JetStream key-value stores), config (layered
// configuration), metric (Prometheus collectors), health (probe
// endpoints), natsclient (NATS connection management) and pkg
// (clock, cache, retry, worker utilities).
//
// State persists through the storage.KV interface. A kiosk or embedded
// deployment uses the in-memory store; shared deployments point the
// same code at a JetStream bucket. All timing goes through
// clock.Scheduler, so expiry and backoff are tested against a fake
// clock rather than wall time.
//
// cmd/heybo-engine runs the engine as a standalone backend with health
// and metrics endpoints.
package heybo
