package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader reads configuration from a yaml file layered over the defaults, with
// a handful of environment overrides for secrets and addresses.
type Loader struct {
	path      string
	useDotEnv bool
}

// NewLoader creates a loader for the given config file path. An empty path
// keeps the defaults plus environment overrides.
func NewLoader(path string) *Loader {
	return &Loader{
		path:      path,
		useDotEnv: true,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// Load produces the effective configuration.
func (l *Loader) Load() (*Config, error) {
	if l.useDotEnv {
		// Absent .env file simply means system environment only.
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", l.path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", l.path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SCC_CHANNEL_URL"); v != "" {
		cfg.Channel.URL = v
	}
	if v := os.Getenv("SCC_AUTH_BASE_URL"); v != "" {
		cfg.Auth.BaseURL = v
	}
	if v := os.Getenv("SCC_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SCC_TOKEN_SECRET"); v != "" {
		cfg.Server.TokenSecret = v
	}
	if v := os.Getenv("SCC_REDIS_ADDR"); v != "" {
		cfg.Server.Store.Type = "redis"
		cfg.Server.Store.Redis.Addr = v
	}
	if v := os.Getenv("SCC_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Server.Store.Redis.DB = db
		}
	}
	if v := os.Getenv("SCC_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
