package config

import (
	"fmt"
	"net/url"
)

// validate checks the configuration for errors.
func validate(cfg *Config) error {
	if cfg.Storage.RetentionDays < 0 {
		return fmt.Errorf("storage.retention_days must be non-negative")
	}

	if !isValidPolicyBackend(cfg.Storage.PolicyBackend) {
		return fmt.Errorf("invalid storage.policy_backend: %s (must be sqlite or redis)", cfg.Storage.PolicyBackend)
	}
	if cfg.Storage.PolicyBackend == PolicyBackendRedis && cfg.Redis.URL == "" {
		return fmt.Errorf("redis.url is required when storage.policy_backend is redis")
	}
	if cfg.Redis.PoolSize < 0 {
		return fmt.Errorf("redis.pool_size must be non-negative")
	}

	if cfg.Engine.Timeout <= 0 {
		return fmt.Errorf("engine.timeout must be positive")
	}
	if cfg.Engine.Workers <= 0 {
		return fmt.Errorf("engine.workers must be positive")
	}
	if cfg.Engine.QueueSize <= 0 {
		return fmt.Errorf("engine.queue_size must be positive")
	}

	if cfg.Gateway.URL != "" {
		u, err := url.Parse(cfg.Gateway.URL)
		if err != nil {
			return fmt.Errorf("invalid gateway.url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("invalid gateway.url: scheme must be ws or wss, got %q", u.Scheme)
		}
	}
	if cfg.Gateway.RequestTimeout <= 0 {
		return fmt.Errorf("gateway.request_timeout must be positive")
	}

	if !isValidColorMode(cfg.Display.Colors) {
		return fmt.Errorf("invalid display.colors: %s (must be auto, always, or never)", cfg.Display.Colors)
	}

	if !isValidTimezoneMode(cfg.Display.Timezone) {
		return fmt.Errorf("invalid display.timezone: %s (must be local or utc)", cfg.Display.Timezone)
	}

	if err := validateStreamTargets(cfg.Streams.Targets); err != nil {
		return err
	}

	return nil
}

func isValidPolicyBackend(backend PolicyBackend) bool {
	switch backend {
	case PolicyBackendSQLite, PolicyBackendRedis:
		return true
	default:
		return false
	}
}

// isValidColorMode returns true if the given mode is valid.
func isValidColorMode(mode ColorMode) bool {
	switch mode {
	case ColorAuto, ColorAlways, ColorNever:
		return true
	default:
		return false
	}
}

// isValidTimezoneMode returns true if the given mode is valid.
func isValidTimezoneMode(mode TimezoneMode) bool {
	switch mode {
	case TimezoneLocal, TimezoneUTC:
		return true
	default:
		return false
	}
}

// knownStreamTargetTypes lists the valid stream target types.
var knownStreamTargetTypes = map[string]bool{
	streamTargetTypeNop:    true,
	streamTargetTypeStdout: true,
}

func validateStreamTargets(targets []StreamTargetConfig) error {
	names := make(map[string]bool, len(targets))
	for i, t := range targets {
		if t.Name == "" {
			return fmt.Errorf("streams.targets[%d]: name must not be empty", i)
		}
		if t.Type == "" {
			return fmt.Errorf("streams.targets[%d]: type must not be empty", i)
		}
		if !knownStreamTargetTypes[t.Type] {
			return fmt.Errorf("streams.targets[%d]: unknown type %q", i, t.Type)
		}
		if names[t.Name] {
			return fmt.Errorf("streams.targets[%d]: duplicate name %q", i, t.Name)
		}
		names[t.Name] = true
	}
	return nil
}
