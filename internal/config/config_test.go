package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 10, cfg.Server.ShutdownTimeoutSecs)
	assert.Empty(t, cfg.Database.DSN)
	assert.Equal(t, 500, cfg.Game.DefaultMaxPoints)
	assert.Equal(t, 64, cfg.Game.MaxNameLength)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  address: ":9090"
database:
  dsn: "postgres://localhost/spades"
game:
  default_max_points: 250
logging:
  level: debug
  format: console
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "postgres://localhost/spades", cfg.Database.DSN)
	assert.Equal(t, 250, cfg.Game.DefaultMaxPoints)
	assert.Equal(t, 64, cfg.Game.MaxNameLength, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPADES_SERVER_ADDRESS", ":7070")
	t.Setenv("SPADES_GAME_DEFAULT_MAX_POINTS", "100")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, 100, cfg.Game.DefaultMaxPoints)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("game:\n  default_max_points: -5\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: valid\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
