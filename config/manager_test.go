package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewManager_NoConfigFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")

	mgr, err := NewManager(configFile)
	require.NoError(t, err)
	require.NotNil(t, mgr)

	assert.Equal(t, configFile, mgr.ConfigPath())
	assert.NotNil(t, mgr.AllSettings())
	assert.Equal(t, "sqlite", mgr.Get("storage.policy_backend"))
}

func TestNewManager_WithExistingConfig(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
engine:
  workers: 16
storage:
  retention_days: 30
`), 0644))

	mgr, err := NewManager(configFile)
	require.NoError(t, err)

	assert.Equal(t, 16, mgr.Get("engine.workers"))
	assert.Equal(t, 30, mgr.Get("storage.retention_days"))
}

func TestNewManager_MalformedFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("engine: [\n"), 0644))

	_, err := NewManager(configFile)
	assert.Error(t, err)
}

func TestManager_Get_ReturnsDefaults(t *testing.T) {
	mgr, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	tests := []struct {
		key      string
		expected interface{}
	}{
		{"server.addr", "127.0.0.1:8080"},
		{"storage.retention_days", 90},
		{"redis.key_prefix", "gatekeeper"},
		{"engine.timeout", "250ms"},
		{"engine.workers", 4},
		{"gateway.request_timeout", "10s"},
		{"moderation.announce_blocks", false},
		{"display.colors", "auto"},
	}

	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			assert.Equal(t, tc.expected, mgr.Get(tc.key))
		})
	}
}

func TestManager_Set_CreatesCompleteConfigFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")

	mgr, err := NewManager(configFile)
	require.NoError(t, err)

	require.NoError(t, mgr.Set("engine.workers", 8))

	data, err := os.ReadFile(configFile)
	require.NoError(t, err)

	var configMap map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &configMap))

	for _, section := range []string{"server", "storage", "redis", "engine", "gateway", "moderation", "display", "streams"} {
		assert.Contains(t, configMap, section)
	}

	engine, ok := configMap["engine"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 8, engine["workers"])
	assert.Equal(t, 256, engine["queue_size"])
}

func TestManager_Set_PreservesExistingValues(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
gateway:
  token: bot-token
storage:
  retention_days: 60
`), 0644))

	mgr, err := NewManager(configFile)
	require.NoError(t, err)

	require.NoError(t, mgr.Set("display.colors", "always"))

	assert.Equal(t, "bot-token", mgr.Get("gateway.token"))
	assert.Equal(t, 60, mgr.Get("storage.retention_days"))
	assert.Equal(t, "always", mgr.Get("display.colors"))

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, "bot-token", cfg.Gateway.Token)
	assert.Equal(t, ColorAlways, cfg.Display.Colors)
}

func TestManager_Set_RejectsInvalidValue(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")

	mgr, err := NewManager(configFile)
	require.NoError(t, err)

	err = mgr.Set("storage.policy_backend", "etcd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid storage.policy_backend")

	assert.Equal(t, "sqlite", mgr.Get("storage.policy_backend"))
	assert.NoFileExists(t, configFile)
}

func TestManager_Set_CreatesConfigDir(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")

	mgr, err := NewManager(configFile)
	require.NoError(t, err)

	require.NoError(t, mgr.Set("server.token", "abc"))
	assert.FileExists(t, configFile)
}

func TestManager_Set_ModerationChannel(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")

	mgr, err := NewManager(configFile)
	require.NoError(t, err)

	require.NoError(t, mgr.Set("moderation.channels.g1", "c1"))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	id, ok := cfg.ModerationChannel("g1")
	assert.True(t, ok)
	assert.Equal(t, "c1", id)
}

func TestManager_Reset_RemovesConfigFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")

	mgr, err := NewManager(configFile)
	require.NoError(t, err)

	require.NoError(t, mgr.Set("engine.workers", 2))
	assert.FileExists(t, configFile)

	require.NoError(t, mgr.Reset())
	assert.NoFileExists(t, configFile)
	assert.Equal(t, 4, mgr.Get("engine.workers"))
}

func TestManager_Reset_NonExistentFile(t *testing.T) {
	mgr, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.NoError(t, mgr.Reset())
}

func TestManager_HasKey(t *testing.T) {
	mgr, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.True(t, mgr.HasKey("engine.timeout"))
	assert.False(t, mgr.HasKey("engine.nonexistent"))
}

func TestManager_Config(t *testing.T) {
	mgr, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	cfg, err := mgr.Config()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		input    string
		expected interface{}
	}{
		{"true", true},
		{"false", false},
		{"42", 42},
		{"-1", -1},
		{"250ms", "250ms"},
		{"[a, b, c]", []string{"a", "b", "c"}},
		{"[single]", []string{"single"}},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseValue(tc.input))
		})
	}
}
