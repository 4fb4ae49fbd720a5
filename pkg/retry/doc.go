// Package retry provides exponential backoff retry logic for the engine.
//
// Two consumers drive its shape: the storage adapters retry transient
// infrastructure failures inline via Do/DoWithResult, and the recovery
// manager uses ErrorBackoff to compute the delay scheduled before a
// caller is signalled to re-attempt a failed operation (1s doubling per
// attempt, capped at 10s).
//
// Errors wrapped with NonRetryable abort the loop immediately; all other
// errors are retried until the attempt budget or context is exhausted.
package retry
