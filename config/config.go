// Package config defines the relay process's configuration, loaded from a
// YAML file with environment-variable overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/chainrelay/chainrelay/core"
)

// DatabaseConfig names the driver and connection string the event store
// opens. Driver is either "sqlite3" or "mysql".
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// LoggingConfig controls the zerolog level and output format.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Config is the full relayd process configuration.
type Config struct {
	Listen          string           `mapstructure:"listen"`
	DebugAddr       string           `mapstructure:"debugAddr"`
	Database        DatabaseConfig   `mapstructure:"database"`
	Kinds           core.KindMapping `mapstructure:"kinds"`
	MaxChainDepth   int              `mapstructure:"maxChainDepth"`
	DefaultLimit    int              `mapstructure:"defaultLimit"`
	MaxMessageBytes int64            `mapstructure:"maxMessageBytes"`
	Logging         LoggingConfig    `mapstructure:"logging"`
}

// defaults returns a config suitable for local development: a sqlite
// database, the default kind mapping, and the verifier/store package
// defaults for depth and query limits.
func defaults() *Config {
	return &Config{
		Listen:          ":8080",
		DebugAddr:       ":6060",
		Database:        DatabaseConfig{Driver: "sqlite3", DSN: "relay.db"},
		Kinds:           core.DefaultKindMapping,
		MaxChainDepth:   5,
		DefaultLimit:    500,
		MaxMessageBytes: 256 * 1024,
		Logging:         LoggingConfig{Level: "info", JSON: false},
	}
}

// Load reads path (if non-empty) as YAML into a Config seeded with
// defaults, then applies environment overrides under the CHAINRELAY_
// prefix (e.g. CHAINRELAY_DATABASE_DSN).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("chainrelay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only consults keys viper already knows, so bind every key
	// for an override to apply when the file omits it (or there is no file).
	for _, key := range []string{
		"listen", "debugAddr", "database.driver", "database.dsn",
		"kinds.schemadefinition", "kinds.credentialgrant", "kinds.revocation", "kinds.renewal",
		"maxChainDepth", "defaultLimit", "maxMessageBytes", "logging.level", "logging.json",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	cfg := defaults()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Database.Driver != "sqlite3" && cfg.Database.Driver != "mysql" {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	return cfg, nil
}
