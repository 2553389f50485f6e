// Package config provides configuration management using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Stream target types. Must be in sync with the stream package.
// We cannot depend on it because it would create a circular dependency.
const (
	streamTargetTypeNop    = "nop"
	streamTargetTypeStdout = "stdout"
)

// PolicyBackend selects where guild policy documents are kept.
type PolicyBackend string

const (
	// PolicyBackendSQLite keeps policies in the local database.
	PolicyBackendSQLite PolicyBackend = "sqlite"
	// PolicyBackendRedis keeps policies in Redis so several bot
	// processes share them.
	PolicyBackendRedis PolicyBackend = "redis"
)

// ColorMode represents the color output mode.
type ColorMode string

const (
	// ColorAuto automatically detects terminal support.
	ColorAuto ColorMode = "auto"
	// ColorAlways always uses colors.
	ColorAlways ColorMode = "always"
	// ColorNever never uses colors.
	ColorNever ColorMode = "never"
)

// TimezoneMode represents the timezone display mode.
type TimezoneMode string

const (
	// TimezoneLocal uses the local timezone.
	TimezoneLocal TimezoneMode = "local"
	// TimezoneUTC uses UTC.
	TimezoneUTC TimezoneMode = "utc"
)

// Config holds all configuration values.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Display    DisplayConfig    `mapstructure:"display"`
	Streams    StreamsConfig    `mapstructure:"streams"`
}

// ServerConfig holds operator API settings.
type ServerConfig struct {
	// Addr is the listen address. Empty disables the API.
	Addr  string `mapstructure:"addr"`
	Token string `mapstructure:"token"`
}

// StorageConfig holds storage-related settings.
type StorageConfig struct {
	Path          string        `mapstructure:"path"`
	RetentionDays int           `mapstructure:"retention_days"`
	PolicyBackend PolicyBackend `mapstructure:"policy_backend"`
}

// RedisConfig holds settings for the redis policy backend.
type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
	PoolSize  int    `mapstructure:"pool_size"`
}

// EngineConfig holds evaluation settings.
type EngineConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
}

// GatewayConfig holds the platform bridge connection settings.
type GatewayConfig struct {
	URL            string        `mapstructure:"url"`
	Token          string        `mapstructure:"token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ModerationConfig holds settings for acting on verdicts.
type ModerationConfig struct {
	// Channels maps a guild id to its moderation channel id.
	Channels       map[string]string `mapstructure:"channels"`
	AnnounceBlocks bool              `mapstructure:"announce_blocks"`
}

// DisplayConfig holds display-related settings.
type DisplayConfig struct {
	Colors   ColorMode    `mapstructure:"colors"`
	Timezone TimezoneMode `mapstructure:"timezone"`
}

// StreamsConfig holds stream target settings.
type StreamsConfig struct {
	Targets []StreamTargetConfig `mapstructure:"targets"`
}

// StreamTargetConfig holds settings for a single stream target.
type StreamTargetConfig struct {
	Name    string         `mapstructure:"name"`
	Type    string         `mapstructure:"type"`
	Enabled bool           `mapstructure:"enabled"`
	Config  map[string]any `mapstructure:"config"`
}

// Paths holds resolved filesystem paths.
type Paths struct {
	ConfigFile   string
	ConfigDir    string
	DataDir      string
	DatabaseFile string
}

// Load loads configuration from the given path or default locations.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		paths := ResolvePaths()

		v.SetConfigName("config")
		v.AddConfigPath(paths.ConfigDir)
	}

	// GATEKEEPER_GATEWAY_TOKEN overrides gateway.token and so on
	v.SetEnvPrefix("GATEKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a Config with all default values.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)

	return &cfg
}

// ResolvePaths returns the resolved filesystem paths for the current platform.
func ResolvePaths() *Paths {
	configDir := getConfigDir()
	dataDir := getDataDir()

	return &Paths{
		ConfigFile:   filepath.Join(configDir, "config.yaml"),
		ConfigDir:    configDir,
		DataDir:      dataDir,
		DatabaseFile: filepath.Join(dataDir, "gatekeeper.db"),
	}
}

// GetDatabasePath returns the resolved database path from config or default.
func (c *Config) GetDatabasePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}

	return ResolvePaths().DatabaseFile
}

// Retention returns the audit retention period. Zero disables pruning.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Storage.RetentionDays) * 24 * time.Hour
}

// ModerationChannel returns the moderation channel configured for a guild.
func (c *Config) ModerationChannel(guildID string) (string, bool) {
	id, ok := c.Moderation.Channels[guildID]
	return id, ok && id != ""
}

// ShouldUseColors returns true if colors should be used based on config and terminal.
func (c *Config) ShouldUseColors() bool {
	switch c.Display.Colors {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		fileInfo, _ := os.Stdout.Stat()
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
}

// Location returns the time zone timestamps are displayed in.
func (c *Config) Location() *time.Location {
	if c.Display.Timezone == TimezoneUTC {
		return time.UTC
	}
	return time.Local
}
