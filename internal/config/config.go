package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/logger"
	"github.com/joho/godotenv"
)

const (
	ShapeObject = "object"
	ShapeArray  = "array"
)

type Config struct {
	BackendURL        string
	ServerPort        string
	DBURL             string
	RabbitMQURL       string
	RefreshInterval   time.Duration
	RenderTimeout     time.Duration
	FallbackAfter     time.Duration
	RequestTimeout    time.Duration
	SnapshotRetention time.Duration
	UserDetailShape   string
	MigrationsSource  string
}

// * LoadConfiguration reads the configuration from the .env file and the environment
func LoadConfiguration() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		BackendURL:       os.Getenv("BACKEND_URL"),
		ServerPort:       os.Getenv("SERVER_PORT"),
		DBURL:            os.Getenv("DB_PATH"),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		UserDetailShape:  os.Getenv("USER_DETAIL_SHAPE"),
		MigrationsSource: os.Getenv("MIGRATIONS_SOURCE"),
	}

	if cfg.BackendURL == "" {
		return nil, errors.New("BACKEND_URL is required")
	}
	if u, err := url.Parse(cfg.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("BACKEND_URL %q is not an absolute URL", cfg.BackendURL)
	}

	if cfg.ServerPort == "" {
		cfg.ServerPort = ":8081"
	}

	if cfg.MigrationsSource == "" {
		cfg.MigrationsSource = "file://migrations"
	}

	switch cfg.UserDetailShape {
	case "":
		cfg.UserDetailShape = ShapeObject
	case ShapeObject, ShapeArray:
	default:
		return nil, fmt.Errorf("USER_DETAIL_SHAPE should be %q or %q, got %q", ShapeObject, ShapeArray, cfg.UserDetailShape)
	}

	durations := []struct {
		env    string
		target *time.Duration
		def    string
	}{
		{"REFRESH_INTERVAL", &cfg.RefreshInterval, "15m"},
		{"RENDER_TIMEOUT", &cfg.RenderTimeout, "3s"},
		{"REQUEST_TIMEOUT", &cfg.RequestTimeout, "30s"},
		{"SNAPSHOT_RETENTION", &cfg.SnapshotRetention, "168h"},
	}
	for _, d := range durations {
		raw := os.Getenv(d.env)
		if raw == "" {
			raw = d.def
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.env, err)
		}
		*d.target = v
	}

	if cfg.RefreshInterval <= 0 {
		return nil, errors.New("REFRESH_INTERVAL must be positive")
	}

	// * Snapshots must be served before the page gives up waiting on a slow backend
	if raw := os.Getenv("FALLBACK_AFTER"); raw != "" {
		v, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid FALLBACK_AFTER: %w", err)
		}
		cfg.FallbackAfter = v
	} else {
		cfg.FallbackAfter = cfg.RenderTimeout * 2 / 3
	}
	if cfg.FallbackAfter <= 0 || cfg.FallbackAfter >= cfg.RenderTimeout {
		return nil, fmt.Errorf("FALLBACK_AFTER (%s) must be positive and shorter than RENDER_TIMEOUT (%s)", cfg.FallbackAfter, cfg.RenderTimeout)
	}

	logger.Info("✅ configuration loaded, backend %s", cfg.BackendURL)
	return cfg, nil
}

// * SnapshotsEnabled reports whether a snapshot database is configured
func (c *Config) SnapshotsEnabled() bool {
	return c.DBURL != ""
}
