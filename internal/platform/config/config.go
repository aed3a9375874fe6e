package config

import (
	"time"
)

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Channel ChannelConfig `yaml:"channel"`
	Auth    AuthConfig    `yaml:"auth"`
	Server  ServerConfig  `yaml:"server"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

// ChannelConfig configures the client-side event channel.
type ChannelConfig struct {
	URL               string        `yaml:"url"`
	DialTimeout       time.Duration `yaml:"dial_timeout"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
}

// AuthConfig configures the REST auth client and local credential storage.
type AuthConfig struct {
	BaseURL        string        `yaml:"base_url"`
	CredentialFile string        `yaml:"credential_file"`
	CredentialTTL  time.Duration `yaml:"credential_ttl"`
}

// ServerConfig configures the reference backend daemon.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	WSPath       string        `yaml:"ws_path"`
	AllowOrigins []string      `yaml:"allow_origins"`
	TokenSecret  string        `yaml:"token_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	SQLitePath   string        `yaml:"sqlite_path"`
	Store        StoreConfig   `yaml:"store"`
}

// StoreConfig selects the qr-session store driver.
type StoreConfig struct {
	Type  string           `yaml:"type"`
	Redis RedisStoreConfig `yaml:"redis,omitempty"`
}

type RedisStoreConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}
