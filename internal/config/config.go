// Package config loads server configuration from a YAML file with environment
// variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Address             string `mapstructure:"address"`
	ShutdownTimeoutSecs int    `mapstructure:"shutdown_timeout_secs"`
}

// DatabaseConfig selects persistence. An empty DSN runs the server with the
// in-memory store; games then do not survive a restart.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type GameConfig struct {
	DefaultMaxPoints int `mapstructure:"default_max_points"`
	MaxNameLength    int `mapstructure:"max_name_length"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from path, falling back to defaults when the file
// is absent. Every key can be overridden via SPADES_* environment variables,
// e.g. SPADES_SERVER_ADDRESS or SPADES_DATABASE_DSN.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("database.dsn", "")
	v.SetDefault("game.default_max_points", 500)
	v.SetDefault("game.max_name_length", 64)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetEnvPrefix("SPADES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Address == "" {
		return errors.New("server.address must not be empty")
	}
	if c.Game.DefaultMaxPoints <= 0 {
		return fmt.Errorf("game.default_max_points must be positive, got %d", c.Game.DefaultMaxPoints)
	}
	if c.Game.MaxNameLength <= 0 {
		return fmt.Errorf("game.max_name_length must be positive, got %d", c.Game.MaxNameLength)
	}
	return nil
}
