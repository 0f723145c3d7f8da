package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr         string `toml:"addr"`
	ReadTimeout  string `toml:"read_timeout"`
	WriteTimeout string `toml:"write_timeout"`
	IdleTimeout  string `toml:"idle_timeout"`
}

// DatabaseConfig holds database configuration. The DATABASE_URL
// environment variable overrides the file value.
type DatabaseConfig struct {
	URL string `toml:"url"`
}

// EngineConfig holds rule engine defaults applied to accounts that have no
// explicit settings of their own.
type EngineConfig struct {
	ScriptTimeout      string `toml:"script_timeout"`
	DebugMode          bool   `toml:"debug_mode"`
	DebugRetentionDays int    `toml:"debug_retention_days"`
	DebugLogLimit      int    `toml:"debug_log_limit"`
	PurgeInterval      string `toml:"purge_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Engine   EngineConfig   `toml:"engine"`
	Logging  LoggingConfig  `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  "15s",
			WriteTimeout: "15s",
			IdleTimeout:  "60s",
		},
		Engine: EngineConfig{
			ScriptTimeout:      "250ms",
			DebugMode:          false,
			DebugRetentionDays: 7,
			DebugLogLimit:      200,
			PurgeInterval:      "1h",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// Load reads a TOML config file into the defaults and applies environment
// overrides. A missing path is not an error; defaults plus environment
// apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}

	return cfg, nil
}

// ParseDuration parses a duration string, falling back when empty or
// invalid.
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
