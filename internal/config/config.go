// Package config holds all noesis configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all noesis configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Working memory configuration
	Memory MemoryConfig `yaml:"memory"`

	// Learning hyperparameters (rule confidence / operator preference)
	Learning LearningConfig `yaml:"learning"`

	// Knowledge base files
	KB KBConfig `yaml:"kb"`

	// Long-term memory store
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig controls the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode"`
	Level      string          `yaml:"level" json:"level"`
	Categories map[string]bool `yaml:"categories,omitempty" json:"categories,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "noesis",
		Version: "1.0.0",

		Memory:   DefaultMemoryConfig(),
		Learning: DefaultLearningConfig(),
		KB:       DefaultKBConfig(),
		Store:    DefaultStoreConfig(),

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads a YAML config file, returning defaults when the file is absent.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config back out as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Memory.MinBelief < 0.1 || c.Memory.MinBelief > 1.0 {
		return fmt.Errorf("memory.min_belief %.2f outside [0.1, 1.0]", c.Memory.MinBelief)
	}
	if c.Learning.MinPref <= 0 || c.Learning.MinPref > 1.2 {
		return fmt.Errorf("learning.min_pref %.2f outside (0, 1.2]", c.Learning.MinPref)
	}
	if c.Memory.HaloBands < 0 || c.Memory.HaloBands > 3 {
		return fmt.Errorf("memory.halo_bands %d outside [0, 3]", c.Memory.HaloBands)
	}
	return nil
}

// applyEnvOverrides lets a few knobs be changed without editing files.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("NOESIS_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = b
		}
	}
	if v := os.Getenv("NOESIS_MIN_BELIEF"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Memory.MinBelief = f
		}
	}
	if v := os.Getenv("NOESIS_KB_DIR"); v != "" {
		c.KB.Dir = v
	}
	if v := os.Getenv("NOESIS_STORE_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
}
