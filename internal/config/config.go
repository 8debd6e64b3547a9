package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.convo/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`

	Server ServerConfig `toml:"server"`
	Push   PushConfig   `toml:"push"`
	Chat   ChatConfig   `toml:"chat"`
	Admin  AdminConfig  `toml:"admin"`
}

// ServerConfig points at the backend REST collaborator.
type ServerConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
	UserID  string `toml:"user_id"`
}

// PushConfig points at the real-time transport.
type PushConfig struct {
	URL               string `toml:"url"`
	ReconnectBaseMs   int64  `toml:"reconnect_base_ms"`
	ReconnectMaxMs    int64  `toml:"reconnect_max_ms"`
	MaxReconnectTries int    `toml:"max_reconnect_tries"`
}

// ChatConfig tunes the reconciliation subsystem.
type ChatConfig struct {
	PageSize      int   `toml:"page_size"`
	TypingTTLMs   int64 `toml:"typing_ttl_ms"`
	MatchWindowMs int64 `toml:"match_window_ms"`
}

// AdminConfig controls the local read-only HTTP surface.
type AdminConfig struct {
	Addr string `toml:"addr"`
}

// Defaults fills zero-value fields in place and returns the config.
func (c *Config) Defaults() *Config {
	if c.DefaultSession == "" {
		c.DefaultSession = "default"
	}
	if c.Push.ReconnectBaseMs == 0 {
		c.Push.ReconnectBaseMs = 1000
	}
	if c.Push.ReconnectMaxMs == 0 {
		c.Push.ReconnectMaxMs = 30000
	}
	if c.Push.MaxReconnectTries == 0 {
		c.Push.MaxReconnectTries = 10
	}
	if c.Chat.PageSize == 0 {
		c.Chat.PageSize = 50
	}
	if c.Chat.TypingTTLMs == 0 {
		c.Chat.TypingTTLMs = 4000
	}
	if c.Chat.MatchWindowMs == 0 {
		c.Chat.MatchWindowMs = 5000
	}
	if c.Admin.Addr == "" {
		c.Admin.Addr = "127.0.0.1:7621"
	}
	return c
}

// TypingTTL returns the typing visibility timeout as a duration.
func (c *Config) TypingTTL() time.Duration {
	return time.Duration(c.Chat.TypingTTLMs) * time.Millisecond
}

// MatchWindow returns the optimistic-match window as a duration.
func (c *Config) MatchWindow() time.Duration {
	return time.Duration(c.Chat.MatchWindowMs) * time.Millisecond
}

// Load reads config from the given path and applies defaults.
// Returns an error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return cfg.Defaults(), nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
