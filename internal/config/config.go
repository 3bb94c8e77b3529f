package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.wppview/config.toml.
type Config struct {
	DefaultSession string         `toml:"default_session"`
	Timeline       TimelineConfig `toml:"timeline"`
	Backend        BackendConfig  `toml:"backend"`
}

// TimelineConfig tunes the message timeline.
type TimelineConfig struct {
	// PageSize is how many messages each page fetch requests.
	PageSize int `toml:"page_size"`
	// RetainLimit is the per-chat retention high-water mark; trimming
	// keeps this many of the most recent messages.
	RetainLimit int `toml:"retain_limit"`
	// SentMediaTTLSeconds bounds the local cache of just-sent media.
	SentMediaTTLSeconds int `toml:"sent_media_ttl_seconds"`
}

// BackendConfig points at the backend daemon.
type BackendConfig struct {
	// Socket overrides the default per-session backend socket path.
	Socket string `toml:"socket"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Timeline: TimelineConfig{
			PageSize:            50,
			RetainLimit:         200,
			SentMediaTTLSeconds: 300,
		},
	}
}

// Load reads config from the given path and applies defaults for unset
// values. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if cfg.Timeline.PageSize <= 0 {
		cfg.Timeline.PageSize = 50
	}
	if cfg.Timeline.RetainLimit <= 0 {
		cfg.Timeline.RetainLimit = 200
	}
	if cfg.Timeline.SentMediaTTLSeconds <= 0 {
		cfg.Timeline.SentMediaTTLSeconds = 300
	}
	return cfg, nil
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
