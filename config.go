package liveboard2sqlite

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrMissingDatabase     = errors.New("database path is required")
	ErrNoStations          = errors.New("at least one station is required")
	ErrInvalidTimeout      = errors.New("irail.timeout_sec must be at least 1")
	ErrInvalidSweepMinutes = errors.New("sweep_interval_min must be at least 1")
	ErrInvalidRedisTTL     = errors.New("redis.ttl_sec must be at least 1")
	ErrInvalidLogLevel     = errors.New("logging.level must be one of: debug, info, warn, error")
)

// Config is the explicit startup configuration. Every required field is
// validated once at load time rather than looked up ad hoc.
type Config struct {
	Listen           string        `yaml:"listen"`
	Database         string        `yaml:"database"`
	IRail            IRailConfig   `yaml:"irail"`
	Stations         []string      `yaml:"stations"`
	SweepIntervalMin int           `yaml:"sweep_interval_min"`
	Redis            RedisConfig   `yaml:"redis"`
	Logging          LoggingConfig `yaml:"logging"`
}

type IRailConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// RedisConfig enables the board snapshot cache when an address is set.
type RedisConfig struct {
	Addr   string `yaml:"addr"`
	TTLSec int    `yaml:"ttl_sec"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the configuration used when no file is provided.
func DefaultConfig() *Config {
	return &Config{
		Listen:   ":8080",
		Database: "departures.db",
		IRail: IRailConfig{
			BaseURL:    DefaultBaseURL,
			TimeoutSec: 30,
		},
		Stations:         []string{"Brussels-Central", "Antwerp-Central", "Ghent-Saint-Peter's"},
		SweepIntervalMin: 15,
		Redis:            RedisConfig{TTLSec: 300},
		Logging:          LoggingConfig{Level: "info"},
	}
}

// LoadConfig reads a YAML config file, applying defaults for absent fields.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Database == "" {
		return ErrMissingDatabase
	}

	if len(c.Stations) == 0 {
		return ErrNoStations
	}
	for i, station := range c.Stations {
		if _, err := ValidateStationName(station); err != nil {
			return fmt.Errorf("stations[%d]: %w", i, err)
		}
	}

	if c.IRail.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if c.SweepIntervalMin < 1 {
		return ErrInvalidSweepMinutes
	}

	if c.Redis.Addr != "" && c.Redis.TTLSec < 1 {
		return ErrInvalidRedisTTL
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	return nil
}

func (c *Config) IRailTimeout() time.Duration {
	return time.Duration(c.IRail.TimeoutSec) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMin) * time.Minute
}

func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Redis.TTLSec) * time.Second
}
