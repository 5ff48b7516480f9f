// Package config loads project settings: source root, cache file path,
// flush interval, and the engine symbol-catalog file, from an optional
// YAML file with per-field defaults.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the project's compiler configuration.
type Config struct {
	// SourceRoot is the directory of .rs2 files the cache walks on Diff.
	SourceRoot string `mapstructure:"source_root"`
	// CachePath is where the project cache is persisted between runs.
	CachePath string `mapstructure:"cache_path"`
	// DefinitionsPath is the engine symbol catalog loaded via
	// symtable.LoadDefinitions before any project diff runs.
	DefinitionsPath string `mapstructure:"definitions_path"`
	// FlushInterval is how often the background flusher checks the dirty
	// flag.
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// Default returns the baseline configuration used when no config file is
// present.
func Default() *Config {
	return &Config{
		SourceRoot:      "scripts",
		CachePath:       "rs2c.cache",
		DefinitionsPath: "definitions.yml",
		FlushInterval:   5 * time.Second,
	}
}

// Load reads configuration from path (if non-empty and present) layered
// over Default, with each field independently overridable; a missing file
// at the default path is not an error, any other read failure is.
func Load(path string) (*Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("source_root", def.SourceRoot)
	v.SetDefault("cache_path", def.CachePath)
	v.SetDefault("definitions_path", def.DefinitionsPath)
	v.SetDefault("flush_interval", def.FlushInterval)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
