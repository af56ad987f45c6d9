// Package config loads the console configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/melih/lighthouse-console/internal/core/cache"
	"github.com/melih/lighthouse-console/internal/core/connection"
	"github.com/melih/lighthouse-console/internal/core/services"
)

// Environment overrides.
const (
	EnvBackendURL = "LIGHTHOUSE_BACKEND_URL"
	EnvListen     = "LIGHTHOUSE_LISTEN"
)

type Config struct {
	Listen      string            `yaml:"listen" validate:"required"`
	Backend     BackendConfig     `yaml:"backend"`
	Sync        SyncConfig        `yaml:"sync"`
	Cache       CacheConfig       `yaml:"cache"`
	Preferences PreferencesConfig `yaml:"preferences"`
	Proxy       ProxyConfig       `yaml:"proxy"`
	Log         LogConfig         `yaml:"log"`
}

type BackendConfig struct {
	BaseURL  string        `yaml:"base_url" validate:"required,url"`
	PushPath string        `yaml:"push_path" validate:"required,startswith=/"`
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
}

type SyncConfig struct {
	ReconnectDelay       time.Duration `yaml:"reconnect_delay" validate:"gt=0"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay" validate:"gtefield=ReconnectDelay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts" validate:"gte=1"`
	SettleDelay          time.Duration `yaml:"settle_delay" validate:"gte=0"`
}

type CacheConfig struct {
	CollectionTTL time.Duration `yaml:"collection_ttl" validate:"gt=0"`
	GenericTTL    time.Duration `yaml:"generic_ttl" validate:"gt=0"`
	Size          int           `yaml:"size" validate:"gte=1"`
}

type PreferencesConfig struct {
	// File is where auto-update and the refresh interval persist. Empty
	// keeps them in memory.
	File string `yaml:"file"`
}

type ProxyConfig struct {
	Enabled bool `yaml:"enabled"`
	// CachePrefixes are backend paths whose GET responses are cached.
	CachePrefixes []string `yaml:"cache_prefixes" validate:"dive,startswith=/"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns a configuration for a backend on localhost:8080.
func Default() Config {
	conn := connection.DefaultConfig()
	svc := services.DefaultConfig()
	c := cache.DefaultOptions()
	return Config{
		Listen: ":3000",
		Backend: BackendConfig{
			BaseURL:  "http://localhost:8080",
			PushPath: "/ws/containers",
			Timeout:  15 * time.Second,
		},
		Sync: SyncConfig{
			ReconnectDelay:       conn.ReconnectDelay,
			ReconnectMaxDelay:    conn.ReconnectMaxDelay,
			MaxReconnectAttempts: conn.MaxAttempts,
			SettleDelay:          svc.SettleDelay,
		},
		Cache: CacheConfig{
			CollectionTTL: c.CollectionTTL,
			GenericTTL:    c.GenericTTL,
			Size:          c.Size,
		},
		Proxy: ProxyConfig{
			Enabled:       true,
			CachePrefixes: []string{"/api/settings", "/api/system"},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvListen)); v != "" {
		cfg.Listen = v
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ServiceConfig maps the sync section onto the service.
func (c Config) ServiceConfig() services.Config {
	cfg := services.DefaultConfig()
	cfg.SettleDelay = c.Sync.SettleDelay
	cfg.RequestTimeout = c.Backend.Timeout
	cfg.Connection.ReconnectDelay = c.Sync.ReconnectDelay
	cfg.Connection.ReconnectMaxDelay = c.Sync.ReconnectMaxDelay
	cfg.Connection.MaxAttempts = c.Sync.MaxReconnectAttempts
	return cfg
}

// CacheOptions maps the cache section.
func (c Config) CacheOptions() cache.Options {
	return cache.Options{
		CollectionTTL: c.Cache.CollectionTTL,
		GenericTTL:    c.Cache.GenericTTL,
		Size:          c.Cache.Size,
	}
}

// Logger builds the process logger.
func (c Config) Logger() *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.Log.Level))
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
