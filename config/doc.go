// Package config defines the engine configuration, a thread-safe
// accessor, and a layered JSON loader.
//
// Configuration is assembled from defaults, zero or more JSON file
// layers (later layers win, merged field by field), and HEYBO_*
// environment overrides. Duration fields accept Go duration strings in
// JSON ("24h", "5m"). SafeConfig hands out deep copies so a caller can
// never mutate shared state through a returned pointer.
package config
