// Package metric defines the engine's Prometheus instrumentation.
//
// All metrics live under the "heybo" namespace, grouped by subsystem
// (session, errors, flow, recommend, rating, cart). A nil *Metrics is
// valid everywhere: every recording method no-ops on a nil receiver so
// components can run unmetered in tests and embedded setups.
package metric
