package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "tracking_", cfg.Tracking.CookiePrefix)
	assert.Equal(t, 30*24*time.Hour, cfg.Tracking.CookieTTL)
	assert.Equal(t, "/tracking-manager.js", cfg.Tracking.LibraryPath)
	assert.Contains(t, cfg.AllowedOrigins, "http://localhost:4321")
	assert.Equal(t, slog.LevelInfo, cfg.Logging.SlogLevel())
}

func TestLoadEnvFileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TRACKING_COOKIE_PREFIX=uniacc_tracking_\nLOG_LEVEL=debug\n"), 0o600))
	t.Setenv("TRACKING_COOKIE_TTL", "48h")

	cfg, err := Load(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		os.Unsetenv("TRACKING_COOKIE_PREFIX")
		os.Unsetenv("LOG_LEVEL")
	})

	assert.Equal(t, "uniacc_tracking_", cfg.Tracking.CookiePrefix)
	assert.Equal(t, 48*time.Hour, cfg.Tracking.CookieTTL)
	assert.Equal(t, slog.LevelDebug, cfg.Logging.SlogLevel())
}

func TestLoadRejectsRelativeLibraryPath(t *testing.T) {
	t.Setenv("TRACKING_LIBRARY_PATH", "tracking-manager.js")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "TRACKING_LIBRARY_PATH")
}
