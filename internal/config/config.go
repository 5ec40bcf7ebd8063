// Package config loads studysync configuration from a config file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrNoRemoteDSN is returned by Config.DSN when no remote database URL is
// configured.
var ErrNoRemoteDSN = errors.New("remote database url not configured (set DATABASE_URL)")

// Config holds everything the CLI and daemon need to wire the engine.
type Config struct {
	DataDir     string        `mapstructure:"data_dir"`     // directory holding the local store and session file
	RemoteURL   string        `mapstructure:"-"`            // remote Postgres connection string, from environment
	SyncTimeout time.Duration `mapstructure:"sync_timeout"` // per-operation remote timeout
	Daemon      Daemon        `mapstructure:"daemon"`       // sync daemon section
	LogFile     string        `mapstructure:"log_file"`     // rotating log target for daemon mode, empty for stderr only
}

// Daemon tunes the background sync daemon.
type Daemon struct {
	PullInterval time.Duration `mapstructure:"pull_interval"` // how often to refresh from the remote store
	Debounce     time.Duration `mapstructure:"debounce"`      // quiet window before reacting to store-file changes
}

// StorePath returns the local document path under the data directory.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "studysync.json")
}

// SessionPath returns the persisted auth session path.
func (c *Config) SessionPath() string {
	return filepath.Join(c.DataDir, ".session.json")
}

// DSN returns the remote connection string if configured.
func (c *Config) DSN() (string, error) {
	if c.RemoteURL == "" {
		return "", ErrNoRemoteDSN
	}
	return c.RemoteURL, nil
}

// Load reads configuration from config.yaml (working directory, then the
// data directory) and the environment. Every key has a usable default; only
// the remote URL must come from the environment, and only commands that
// touch the remote store need it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".studysync"))
	}

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("sync_timeout", "30s")
	v.SetDefault("daemon.pull_interval", "5m")
	v.SetDefault("daemon.debounce", "2s")
	v.SetDefault("log_file", "")

	v.SetEnvPrefix("studysync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database_url", "DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	cfg.RemoteURL = v.GetString("database_url")

	return &cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".studysync"
	}
	return filepath.Join(home, ".studysync")
}
