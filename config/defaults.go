package config

import (
	"github.com/spf13/viper"
)

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Operator API
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.token", "")

	// Storage defaults
	v.SetDefault("storage.path", "") // Empty means use platform default
	v.SetDefault("storage.retention_days", 90)
	v.SetDefault("storage.policy_backend", string(PolicyBackendSQLite))

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.key_prefix", "gatekeeper")
	v.SetDefault("redis.pool_size", 10)

	// Evaluation
	v.SetDefault("engine.timeout", "250ms")
	v.SetDefault("engine.workers", 4)
	v.SetDefault("engine.queue_size", 256)

	// Platform bridge
	v.SetDefault("gateway.url", "ws://127.0.0.1:7400/gateway")
	v.SetDefault("gateway.token", "")
	v.SetDefault("gateway.request_timeout", "10s")

	v.SetDefault("moderation.channels", map[string]string{})
	v.SetDefault("moderation.announce_blocks", false)

	// Display defaults
	v.SetDefault("display.colors", "auto")
	v.SetDefault("display.timezone", "local")

	// Streams defaults
	v.SetDefault("streams.targets", []StreamTargetConfig{
		{
			Name:    streamTargetTypeStdout,
			Type:    streamTargetTypeStdout,
			Enabled: true,
		},
	})
}
