package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Config is the complete engine configuration.
type Config struct {
	Version string        `json:"version"` // semantic version for config sync control
	Session SessionConfig `json:"session"`
	Limits  LimitsConfig  `json:"limits"`
	Retry   RetryConfig   `json:"retry"`
	NATS    NATSConfig    `json:"nats"`
	Catalog CatalogConfig `json:"catalog"`
}

// SessionConfig defines session lifecycle timing.
type SessionConfig struct {
	Duration         time.Duration `json:"duration"`          // total session lifetime
	WarningThreshold time.Duration `json:"warning_threshold"` // timeout warning lead time
	AutoExtend       bool          `json:"auto_extend"`       // extend on activity
}

// LimitsConfig defines bowl composition limits.
type LimitsConfig struct {
	MaxWeightGrams  int `json:"max_weight_grams"`
	WarnWeightGrams int `json:"warn_weight_grams"`
	MinOptimalGrams int `json:"min_optimal_grams"`
	MaxSides        int `json:"max_sides"`
}

// RetryConfig overrides the per-category retry budgets. Absent
// categories keep their built-in defaults.
type RetryConfig struct {
	Budgets map[string]int `json:"budgets,omitempty"`
}

// NATSConfig defines the JetStream KV connection for session storage.
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty"`
	Bucket        string        `json:"bucket,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
}

// CatalogConfig locates the ingredient catalog file.
type CatalogConfig struct {
	Path string `json:"path,omitempty"` // YAML catalog, optional when loaded programmatically
}

// knownRetryCategories are the budget keys Validate accepts.
var knownRetryCategories = map[string]bool{
	"authentication": true,
	"validation":     true,
	"network":        true,
	"api":            true,
	"ml":             true,
	"session":        true,
	"ordering":       true,
	"cart":           true,
}

// Validate checks the config for internally consistent values.
func (c *Config) Validate() error {
	if c.Session.Duration <= 0 {
		return errors.New("session.duration must be positive")
	}
	if c.Session.WarningThreshold <= 0 {
		return errors.New("session.warning_threshold must be positive")
	}
	if c.Session.WarningThreshold >= c.Session.Duration {
		return errors.New("session.warning_threshold must be shorter than session.duration")
	}

	l := c.Limits
	if l.MinOptimalGrams < 0 {
		return errors.New("limits.min_optimal_grams cannot be negative")
	}
	if l.WarnWeightGrams <= l.MinOptimalGrams {
		return errors.New("limits.warn_weight_grams must exceed limits.min_optimal_grams")
	}
	if l.MaxWeightGrams <= l.WarnWeightGrams {
		return errors.New("limits.max_weight_grams must exceed limits.warn_weight_grams")
	}
	if l.MaxSides < 1 {
		return errors.New("limits.max_sides must be at least 1")
	}

	for category, budget := range c.Retry.Budgets {
		if !knownRetryCategories[category] {
			return fmt.Errorf("retry.budgets: unknown category %q", category)
		}
		if budget < 0 {
			return fmt.Errorf("retry.budgets.%s cannot be negative", category)
		}
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// SafeConfig provides thread-safe access to configuration.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Defaults()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Version: "1.0.0",
		Session: SessionConfig{
			Duration:         24 * time.Hour,
			WarningThreshold: 5 * time.Minute,
			AutoExtend:       true,
		},
		Limits: LimitsConfig{
			MaxWeightGrams:  900,
			WarnWeightGrams: 720,
			MinOptimalGrams: 200,
			MaxSides:        3,
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			Bucket:        "heybo_sessions",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
	}
}
