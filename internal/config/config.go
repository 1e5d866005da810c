// Package config loads graphledger's process-level configuration: a
// viper-based Config struct, Load(env) merging a default file plus an
// environment-specific override.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"graphledger/internal/utils"
)

// Config is graphledger's process-level configuration: genesis
// difficulty and log level. Validator identities come from the startup
// flags, not from this struct. It mirrors only the concerns
// this process actually has — no storage/VM sections, since the system
// is in-memory only (Non-goal: durable storage).
type Config struct {
	Genesis struct {
		Difficulty int `mapstructure:"difficulty" json:"difficulty"`
	} `mapstructure:"genesis" json:"genesis"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
	} `mapstructure:"logging" json:"logging"`
}

// Load reads the default configuration file plus any environment-specific
// override, then applies environment-variable overrides on top
// (GRAPHLEDGER_* via viper's AutomaticEnv).
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("genesis.difficulty", 0)

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, utils.Wrap(err, "load config")
		}
	}
	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
			}
		}
	}

	viper.SetEnvPrefix("graphledger")
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &cfg, nil
}

// LoadFromEnv loads configuration using the GRAPHLEDGER_ENV environment
// variable to select the override file, falling back to defaults alone.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("GRAPHLEDGER_ENV", ""))
}
