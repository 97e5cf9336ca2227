// Package config resolves jot settings from flags' defaults, a .jot.yaml
// file, a .env file and JOT_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the CLI and server need
type Config struct {
	DBPath         string `mapstructure:"db"`
	SecretsDir     string `mapstructure:"secrets_dir"`
	Document       string `mapstructure:"document"`
	Model          string `mapstructure:"model"`
	ContextEntries int    `mapstructure:"context_entries"`
	LogLevel       string `mapstructure:"log_level"`
	Addr           string `mapstructure:"addr"`
}

// Load reads configuration. dir is where the database and secrets live by
// default, normally ~/.jot; it is also searched for .jot.yaml after the
// working directory. A missing config file is not an error.
func Load(dir string) (*Config, error) {
	// .env only fills variables that are not already set
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetDefault("db", filepath.Join(dir, "jot.db"))
	v.SetDefault("secrets_dir", filepath.Join(dir, "secrets"))
	v.SetDefault("document", "journal")
	v.SetDefault("model", "claude-sonnet-4-20250514")
	v.SetDefault("context_entries", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("addr", ":8080")

	v.SetConfigName(".jot") // .yaml is implicit
	v.SetEnvPrefix("JOT")
	v.AutomaticEnv()

	if override := os.Getenv("JOT_CONFIG_PATH"); override != "" {
		v.AddConfigPath(override)
	}
	v.AddConfigPath(".")
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// DefaultDir is ~/.jot, or .jot when the home directory is unknown
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jot"
	}
	return filepath.Join(home, ".jot")
}
