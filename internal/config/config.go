// Package config reads runtime settings from the environment and the phase
// catalog seed from YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/neomorfeo/processiq/internal/adapter/otel"
)

// ErrMissingAuthSecret is returned by RequireAuthSecret when no signing secret is set.
var ErrMissingAuthSecret = errors.New("PROCESSIQ_AUTH_SECRET is not set")

// Config is the process-wide configuration.
type Config struct {
	Port         string
	DatabasePath string
	AuthSecret   string
	// Location sets the calendar-day boundary of SLA status.
	Location    *time.Location
	CatalogSeed string
	LogLevel    slog.Level
	Telemetry   otel.Config
}

// FromEnv builds Config from environment variables with sensible defaults.
func FromEnv() (Config, error) {
	tz := envOrDefault("PROCESSIQ_TIMEZONE", "America/Sao_Paulo")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("PROCESSIQ_TIMEZONE: %w", err)
	}

	level, err := parseLevel(envOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	env := envOrDefault("OTEL_ENVIRONMENT", "development")
	return Config{
		Port:         envOrDefault("PORT", "8080"),
		DatabasePath: envOrDefault("DATABASE_PATH", "processiq.db"),
		AuthSecret:   os.Getenv("PROCESSIQ_AUTH_SECRET"),
		Location:     loc,
		CatalogSeed:  os.Getenv("PROCESSIQ_CATALOG_SEED"),
		LogLevel:     level,
		Telemetry: otel.Config{
			ServiceName:    envOrDefault("OTEL_SERVICE_NAME", "processiq"),
			ServiceVersion: envOrDefault("OTEL_SERVICE_VERSION", "0.1.0"),
			Environment:    env,
			Exporter:       envOrDefault("OTEL_EXPORTER", "stdout"),
			Insecure:       env == "development",
		},
	}, nil
}

// Production reports whether the deployment environment is production.
func (c Config) Production() bool {
	return c.Telemetry.Environment == "production"
}

// RequireAuthSecret fails when commands that sign or verify tokens lack a secret.
func (c Config) RequireAuthSecret() error {
	if c.AuthSecret == "" {
		return ErrMissingAuthSecret
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
