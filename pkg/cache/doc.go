// Package cache provides a generic, thread-safe TTL cache.
//
// The recommendation resolver uses it to keep the last successful
// result set per user so a primary-source outage can fall back to
// recently served recommendations before degrading further. Entries
// expire after their TTL and are evicted lazily on access and during
// Len/Keys scans.
package cache
