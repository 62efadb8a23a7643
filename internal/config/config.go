// Package config holds all converse configuration, loaded from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"converse/internal/logging"
)

// Config holds all converse configuration.
type Config struct {
	// Core settings
	Name string `yaml:"name"`

	// Engine tuning
	Engine EngineConfig `yaml:"engine"`

	// Grounding thresholds
	Grounding GroundingConfig `yaml:"grounding"`

	// Domain registry
	Domain DomainConfig `yaml:"domain"`

	// Checkpoint store
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging logging.Config `yaml:"logging"`
}

// EngineConfig tunes the turn loop.
type EngineConfig struct {
	// SelectionCapFloor is the minimum selection-cycle cap per turn. The
	// effective cap is max(floor, plan leaves + SelectionCapSlack).
	SelectionCapFloor int `yaml:"selection_cap_floor"`
	SelectionCapSlack int `yaml:"selection_cap_slack"`
}

// GroundingConfig holds the confidence thresholds of the ICM strategy and
// the move types that are always explicitly confirmed.
type GroundingConfig struct {
	PessimisticBelow float64  `yaml:"pessimistic_below"`
	OptimisticFrom   float64  `yaml:"optimistic_from"`
	AlwaysConfirm    []string `yaml:"always_confirm"`
}

// DomainConfig locates the domain library.
type DomainConfig struct {
	LibraryPath string `yaml:"library_path"`
	WatchReload bool   `yaml:"watch_reload"`
}

// StoreConfig locates the checkpoint database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Name: "converse",
		Engine: EngineConfig{
			SelectionCapFloor: 10,
			SelectionCapSlack: 5,
		},
		Grounding: GroundingConfig{
			PessimisticBelow: 0.5,
			OptimisticFrom:   0.7,
		},
		Store: StoreConfig{
			Path: "converse.db",
		},
		Logging: logging.Config{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// CONVERSE_* environment overrides. A missing file is not an error; the
// defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CONVERSE_DOMAIN_LIBRARY"); v != "" {
		cfg.Domain.LibraryPath = v
	}
	if v := os.Getenv("CONVERSE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("CONVERSE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CONVERSE_SELECTION_CAP_FLOOR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Engine.SelectionCapFloor = n
		}
	}
}

func (c Config) validate() error {
	if c.Grounding.PessimisticBelow <= 0 || c.Grounding.OptimisticFrom <= c.Grounding.PessimisticBelow {
		return fmt.Errorf("grounding thresholds must satisfy 0 < pessimistic_below < optimistic_from, got %.2f/%.2f",
			c.Grounding.PessimisticBelow, c.Grounding.OptimisticFrom)
	}
	if c.Engine.SelectionCapFloor < 1 {
		return fmt.Errorf("selection_cap_floor must be at least 1, got %d", c.Engine.SelectionCapFloor)
	}
	return nil
}
