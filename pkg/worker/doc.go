// Package worker provides a generic bounded worker pool.
//
// Submit never blocks: when the queue is full the work item is dropped
// and the caller told, so producers can fall back to their own durable
// queues instead of stalling. Optional Prometheus instrumentation
// registers per-pool counters and gauges under a caller-chosen prefix.
package worker
