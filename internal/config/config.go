// Package config handles YAML run configuration parsing and validation.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root run configuration.
type Config struct {
	Scenario string      `yaml:"scenario" validate:"required"`
	Users    int         `yaml:"users" validate:"gt=0"`
	PaceRPS  int         `yaml:"pace_rps" validate:"gte=0"`
	LogLevel string      `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Sinks    SinksConfig `yaml:"sinks"`
}

// SinksConfig selects and configures the attached result sinks. At least
// one sink must be enabled or the run would produce no durable results.
type SinksConfig struct {
	Console   bool             `yaml:"console"`
	File      string           `yaml:"file,omitempty"`
	Histogram *HistogramConfig `yaml:"histogram,omitempty"`
}

// HistogramConfig tunes the latency histogram sink.
type HistogramConfig struct {
	MaxDuration time.Duration `yaml:"max_duration" validate:"gt=0"`
	SigFigs     int           `yaml:"significant_figures" validate:"min=1,max=5"`
}

// Kinds returns the number of enabled sink kinds.
func (s SinksConfig) Kinds() int {
	n := 0
	if s.Console {
		n++
	}
	if s.File != "" {
		n++
	}
	if s.Histogram != nil {
		n++
	}
	return n
}

// Load reads, parses and validates a YAML run configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates raw YAML configuration.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		Sinks:    SinksConfig{Console: true},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if cfg.Sinks.Kinds() == 0 {
		return nil, fmt.Errorf("validating config: at least one sink must be enabled")
	}
	return cfg, nil
}
