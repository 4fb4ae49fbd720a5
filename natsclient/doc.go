// Package natsclient manages the engine's NATS connection.
//
// The client wraps nats.Connect with a circuit breaker: repeated
// connection failures open the circuit and back off exponentially, so
// a NATS outage does not turn into a reconnect storm from every widget
// backend at once. Health transitions are reported through a callback
// so the probe endpoints reflect connection state.
package natsclient
