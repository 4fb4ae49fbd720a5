// Package session owns the lifetime of one ordering session per device.
//
// The manager holds a single current session record in the key-value
// store, arms warning and expiry timers against the injected scheduler,
// and extends the session on activity when auto-extend is enabled. Timer
// callbacks always re-read the stored record before acting so an
// extension can never be raced by a stale timer.
//
// Expiry is the one path where state outlives a session: a non-empty
// cart is snapshotted to a durable backup key before the record is
// cleared. Corruption (missing required fields, undecodable payloads)
// clears storage and reports through the recovery manager rather than
// surfacing a decode error to callers.
package session
