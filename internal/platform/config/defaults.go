package config

import "time"

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
			Dir:   "",
			File:  "scc-link.log",
		},
		Channel: ChannelConfig{
			URL:               "ws://127.0.0.1:8820/ws",
			DialTimeout:       10 * time.Second,
			ReconnectAttempts: 5,
			ReconnectDelay:    time.Second,
		},
		Auth: AuthConfig{
			BaseURL:        "http://127.0.0.1:8820",
			CredentialFile: "",
			CredentialTTL:  24 * time.Hour,
		},
		Server: ServerConfig{
			Addr:         "0.0.0.0:8820",
			WSPath:       "/ws",
			AllowOrigins: []string{"*"},
			TokenSecret:  "",
			TokenTTL:     24 * time.Hour,
			SessionTTL:   5 * time.Minute,
			SQLitePath:   "data/scc-link.db",
			Store: StoreConfig{
				Type: "memory",
			},
		},
	}
}
