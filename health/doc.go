// Package health tracks the liveness of the engine's backing services
// and exposes them on HTTP probe endpoints.
//
// Each dependency (NATS, session store, rating delivery) reports a
// Status into a shared Monitor. The aggregate rolls up to healthy,
// degraded or unhealthy, and Handler serves it as JSON with a 503 when
// any dependency is down. Probe responses are public on the widget
// backend, so status messages are sanitized before they leave the
// process.
package health
