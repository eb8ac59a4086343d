// Package config provides centralized configuration for the tracking manager.
// Values come from the environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the service.
type Config struct {
	// Server Configuration
	Port               string        `env:"PORT"                 envDefault:"8080"`
	ServerReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT"  envDefault:"15s"`
	ServerWriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	ServerIdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT"  envDefault:"60s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT"     envDefault:"30s"`
	ReleaseMode        bool          `env:"GIN_RELEASE_MODE"     envDefault:"false"`
	AllowedOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:4321,http://127.0.0.1:3000,http://127.0.0.1:4321,http://[::1]:3000,http://[::1]:4321"`

	Tracking TrackingConfig
	Logging  LoggingConfig
}

// TrackingConfig controls cookie persistence and library delivery.
type TrackingConfig struct {
	CookiePrefix   string        `env:"TRACKING_COOKIE_PREFIX"  envDefault:"tracking_"`
	CookieTTL      time.Duration `env:"TRACKING_COOKIE_TTL"     envDefault:"720h"`
	LibraryPath    string        `env:"TRACKING_LIBRARY_PATH"   envDefault:"/tracking-manager.js"`
	LibraryVersion string        `env:"TRACKING_LIBRARY_VERSION" envDefault:"1.0.1"`
	EntryPoint     string        `env:"TRACKING_ENTRY_POINT"    envDefault:"trackingManager"`
	ScriptID       string        `env:"TRACKING_SCRIPT_ID"      envDefault:"tracking-manager-script"`
	DiagnosticsURL string        `env:"TRACKING_DIAGNOSTICS_URL" envDefault:"/api/v1/tracking/diagnostics"`
	PhoneRegion    string        `env:"TRACKING_PHONE_REGION"   envDefault:"CL"`
}

// LoggingConfig controls the channeled logger.
type LoggingConfig struct {
	Level     string `env:"LOG_LEVEL"     envDefault:"INFO"`
	JSON      bool   `env:"LOG_JSON"      envDefault:"true"`
	ToFile    bool   `env:"LOG_TO_FILE"   envDefault:"false"`
	Directory string `env:"LOG_DIRECTORY" envDefault:"logs"`
	Source    bool   `env:"LOG_SOURCE"    envDefault:"false"`
}

// SlogLevel parses Level, falling back to info.
func (l LoggingConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load reads .env (when present) and then the process environment.
// Variables already set in the environment win over .env entries.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	if err := godotenv.Load(envFiles...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
		log.Println("No .env file found -- config defaults will be used")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Tracking.CookiePrefix == "" {
		return fmt.Errorf("TRACKING_COOKIE_PREFIX must not be empty")
	}
	if c.Tracking.CookieTTL <= 0 {
		return fmt.Errorf("TRACKING_COOKIE_TTL must be positive, got %s", c.Tracking.CookieTTL)
	}
	if !strings.HasPrefix(c.Tracking.LibraryPath, "/") {
		return fmt.Errorf("TRACKING_LIBRARY_PATH must be absolute, got %q", c.Tracking.LibraryPath)
	}
	return nil
}
