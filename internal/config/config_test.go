package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "fitcoach", cfg.Name)
	assert.Equal(t, ModeOptimized, cfg.Memory.Mode)
	assert.Equal(t, 10, cfg.Router.HopCap)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ModeOptimized, cfg.Memory.Mode)
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("memory:\n  mode: standard\nrouter:\n  hop_cap: 5\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeStandard, cfg.Memory.Mode)
	assert.Equal(t, 5, cfg.Router.HopCap)
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("memory:\n  mode: turbo\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid memory mode")
}

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"ultra_compact", "optimized", "standard", "full"} {
		mode, err := ParseMode(valid)
		require.NoError(t, err)
		assert.Equal(t, Mode(valid), mode)
	}

	_, err := ParseMode("emergency_turbo")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("MEMORY_MODE overrides file mode", func(t *testing.T) {
		t.Setenv("MEMORY_MODE", "ultra_compact")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, ModeUltraCompact, cfg.Memory.Mode)
	})

	t.Run("GEMINI_API_KEY wins over ANTHROPIC_API_KEY", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")
		t.Setenv("GEMINI_API_KEY", "gem-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "gem-key", cfg.LLM.APIKey)
		assert.Equal(t, "gemini", cfg.LLM.Provider)
	})

	t.Run("invalid MEMORY_MODE is fatal at Load", func(t *testing.T) {
		t.Setenv("MEMORY_MODE", "bogus")

		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}

func TestSessionIdleTimeout(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 168.0, cfg.SessionIdleTimeout().Hours())

	cfg.Store.SessionIdleTimeout = "not-a-duration"
	assert.Equal(t, 168.0, cfg.SessionIdleTimeout().Hours())
}
