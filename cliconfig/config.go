// Package cliconfig loads the on-disk defaults for the imagecached binary,
// the same way tagTonic's config package loads ~/.tagTonic.yaml: viper reads
// a YAML file from the home directory (or the current directory), falling
// back to hardcoded defaults when no file exists.
package cliconfig

import (
	"fmt"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the Controller settings a user can override without passing
// flags every invocation.
type Config struct {
	RamBudgetMB   int64  `mapstructure:"ram_budget_mb"`
	VideoBudgetMB int64  `mapstructure:"video_budget_mb"`
	LoadersMax    int    `mapstructure:"loaders_max"`
	DecodeWorkers int    `mapstructure:"decode_workers"`
	LogLevel      string `mapstructure:"log_level"`
}

// DefaultConfig returns the settings used when no config file is present.
func DefaultConfig() *Config {
	return &Config{
		RamBudgetMB:   256,
		VideoBudgetMB: 128,
		LoadersMax:    16,
		DecodeWorkers: 16,
		LogLevel:      "info",
	}
}

// Load reads ~/.imagecached.yaml (or ./.imagecached.yaml) over the defaults.
// A missing file is not an error.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := homedir.Dir()
	if err != nil {
		return nil, fmt.Errorf("cliconfig: resolve home directory: %w", err)
	}

	viper.AddConfigPath(home)
	viper.AddConfigPath(".")
	viper.SetConfigName(".imagecached")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if err := viper.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("cliconfig: unmarshal config: %w", err)
		}
	}

	return cfg, nil
}
