package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	HealthPort      int
	ShutdownTimeout time.Duration
	ShowVersion     bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("HEYBO_CONFIG", ""),
		"Path to configuration file, empty for built-in defaults (env: HEYBO_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("HEYBO_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: HEYBO_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("HEYBO_LOG_FORMAT", "json"),
		"Log format: json, text (env: HEYBO_LOG_FORMAT)")

	flag.IntVar(&cfg.HealthPort, "health-port",
		getEnvInt("HEYBO_HEALTH_PORT", 8080),
		"Health and metrics port, 0 to disable (env: HEYBO_HEALTH_PORT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("HEYBO_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: HEYBO_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Parse()
	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion {
		return nil
	}
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.HealthPort < 0 || cfg.HealthPort > 65535 {
		return fmt.Errorf("invalid health port: %d", cfg.HealthPort)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
