package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the sweeper daemon configuration file.
type Config struct {
	Store struct {
		Driver   string `yaml:"driver"` // sqlite, pg or mongo
		DSN      string `yaml:"dsn"`
		Database string `yaml:"database"` // mongo only, overrides the URI path
		Migrate  bool   `yaml:"migrate"`
	} `yaml:"store"`

	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		LockTTL  time.Duration `yaml:"lock_ttl"`
	} `yaml:"redis"`

	Sweep struct {
		Interval  time.Duration `yaml:"interval"`
		BatchSize int           `yaml:"batch_size"`
		Once      bool          `yaml:"once"`
	} `yaml:"sweep"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// loadConfig reads path, expands environment variables and applies defaults.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults
	if config.Store.Driver == "" {
		config.Store.Driver = "sqlite"
	}
	if config.Sweep.Interval == 0 {
		config.Sweep.Interval = time.Hour
	}
	if config.Sweep.BatchSize == 0 {
		config.Sweep.BatchSize = 100
	}

	switch config.Store.Driver {
	case "sqlite", "pg", "mongo":
	default:
		return nil, fmt.Errorf("unsupported store driver %q", config.Store.Driver)
	}
	if config.Store.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}

	return &config, nil
}
