// Package rating collects post-order ratings and delivers them to the
// remote rating endpoint without ever losing one.
//
// Every rating is appended to a durable local log first; remote
// delivery happens asynchronously on a worker pool. Failed deliveries
// land in a durable retry queue with a per-rating retry count and are
// replayed by Flush, up to the api-category budget. Orders awaiting a
// rating are tracked so the flow can decide whether to show the rating
// step at all.
package rating
