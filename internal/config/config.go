// Package config loads and validates the sorter configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/receipt-sorter/internal/common"
)

// Config is the resolved configuration for one command run.
type Config struct {
	DatabasePath string
	Server       ServerConfig
	Workers      int
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr             string
	CORSOrigins      []string
	ClassifyInterval time.Duration
}

// Load reads the configuration from v. It follows this precedence:
// 1. Flags and config file values bound to v (including SORTER_ env vars)
// 2. PORT from the environment for the listen address
// 3. Default values
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DatabasePath: v.GetString("database.path"),
		Workers:      v.GetInt("classify.workers"),
		Server: ServerConfig{
			Addr:             v.GetString("server.addr"),
			CORSOrigins:      v.GetStringSlice("server.cors_origins"),
			ClassifyInterval: v.GetDuration("server.classify_interval"),
		},
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = DefaultDatabasePath()
	} else {
		cfg.DatabasePath = ExpandPath(cfg.DatabasePath)
	}

	if cfg.Server.Addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.Server.Addr = ":" + port
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values no command can run with.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: classify.workers must not be negative, got %d", common.ErrInvalidConfig, c.Workers)
	}
	if c.Server.ClassifyInterval < 0 {
		return fmt.Errorf("%w: server.classify_interval must not be negative", common.ErrInvalidConfig)
	}
	if c.Server.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
			return fmt.Errorf("%w: server.addr %q: %w", common.ErrInvalidConfig, c.Server.Addr, err)
		}
	}
	return nil
}

// RequireServer checks the settings the serve command needs.
func (c *Config) RequireServer() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr", common.ErrMissingConfig)
	}
	return nil
}
