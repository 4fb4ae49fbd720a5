package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Loader handles configuration loading with layers and overrides.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix: "HEYBO",
	}
}

// AddLayer adds a configuration file layer. Later layers win.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables validation on Load.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges defaults, all file layers, and environment overrides.
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range l.layers {
		raw, err := l.loadRawJSON(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = l.mergeFromMap(cfg, raw)
	}

	l.applyEnvOverrides(cfg)

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (l *Loader) loadRawJSON(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	l.parseDurations(raw)
	return raw, nil
}

// parseDurations converts duration strings to nanoseconds so the merged
// map unmarshals into time.Duration fields.
func (l *Loader) parseDurations(data map[string]any) {
	if session, ok := data["session"].(map[string]any); ok {
		parseDurationField(session, "duration")
		parseDurationField(session, "warning_threshold")
	}
	if nats, ok := data["nats"].(map[string]any); ok {
		parseDurationField(nats, "reconnect_wait")
	}
}

func parseDurationField(m map[string]any, key string) {
	if s, ok := m[key].(string); ok {
		if d, err := time.ParseDuration(s); err == nil {
			m[key] = d.Nanoseconds()
		}
	}
}

// mergeFromMap merges a raw config map over base, only overriding the
// fields present in the map.
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	mergedMap := deepMergeMaps(baseMap, override)

	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}
	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}
	return &merged
}

// deepMergeMaps recursively merges two maps with override winning.
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}

	return result
}

// applyEnvOverrides applies environment variable overrides.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(l.envPrefix + "_SESSION_DURATION"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Session.Duration = d
		}
	}
	if val := os.Getenv(l.envPrefix + "_SESSION_WARNING_THRESHOLD"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Session.WarningThreshold = d
		}
	}
	if val := os.Getenv(l.envPrefix + "_NATS_URLS"); val != "" {
		cfg.NATS.URLs = strings.Split(val, ",")
	}
	if val := os.Getenv(l.envPrefix + "_NATS_BUCKET"); val != "" {
		cfg.NATS.Bucket = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_USERNAME"); val != "" {
		cfg.NATS.Username = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_PASSWORD"); val != "" {
		cfg.NATS.Password = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_TOKEN"); val != "" {
		cfg.NATS.Token = val
	}
	if val := os.Getenv(l.envPrefix + "_CATALOG_PATH"); val != "" {
		cfg.Catalog.Path = val
	}
}
