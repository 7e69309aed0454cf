package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test. Empty variables are treated as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "DATABASE_URL", "REDIS_URL", "JWT_SECRET", "DEV_MODE", "TICK_INTERVAL",
		"RULESET_PATH", "SAVE_PATH", "MAP_WIDTH", "MAP_HEIGHT", "AI_FACTIONS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)
	clearEnv(t)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8009", cfg.Port)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 100*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, "chiron-saves.db", cfg.SavePath)
	assert.Equal(t, 40, cfg.MapWidth)
	assert.Equal(t, 24, cfg.MapHeight)
	assert.Equal(t, 3, cfg.AIFactions)
	assert.False(t, cfg.DevMode)
	assert.Empty(t, cfg.RulesetPath)
}

func TestLoad_WithConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	clearEnv(t)

	dir := t.TempDir()
	file := "port: \"9100\"\nmap_width: 64\ntick_interval: 250ms\nruleset_path: rules/alpha.yaml\ndev_mode: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chiron.yaml"), []byte(file), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, 64, cfg.MapWidth)
	assert.Equal(t, 24, cfg.MapHeight)
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, "rules/alpha.yaml", cfg.RulesetPath)
	assert.True(t, cfg.DevMode)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	clearEnv(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chiron.yaml"), []byte("port: \"9100\"\nai_factions: 5\n"), 0644))
	t.Setenv("PORT", "7000")
	t.Setenv("AI_FACTIONS", "2")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, 2, cfg.AIFactions)
}

func TestLoad_MalformedFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	clearEnv(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chiron.yaml"), []byte("port: [unterminated\n"), 0644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoad_RejectsNonPositiveTick(t *testing.T) {
	t.Cleanup(viper.Reset)
	clearEnv(t)
	t.Setenv("TICK_INTERVAL", "0s")

	_, err := Load(t.TempDir())
	require.Error(t, err)
}
