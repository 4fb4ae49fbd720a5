// Package storage provides the engine's key-value persistence plane.
//
// The KV interface is deliberately small (Get/Set/Remove) because the
// engine treats persistence as an external collaborator: every component
// degrades to "treat as absent" on read failure rather than crashing.
//
// Two implementations are provided: Memory for tests and embedded use,
// and NATSKV over a JetStream key-value bucket for deployments that
// share session state through NATS.
//
// Typed records are persisted through a versioned envelope
// ({schemaVersion, savedAt, payload}) so corruption and schema drift are
// detected structurally instead of by ad hoc field-presence checks.
package storage
