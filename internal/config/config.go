// Package config loads and saves the monitoring configuration. Files may be
// JSON or YAML, selected by extension; a missing or malformed file falls
// back to defaults and is never fatal. Values are clamped to their
// documented ranges on load.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"loadwatch/internal/load"
)

// DefaultPath is the stock config file location.
const DefaultPath = "load_config.json"

// Config is the full persisted configuration surface.
type Config struct {
	Thresholds    load.Thresholds  `json:"thresholds" yaml:"thresholds"`
	TariffRates   load.TariffTable `json:"tariff_rates" yaml:"tariff_rates"`
	LoadProfiles  []load.Profile   `json:"load_profiles" yaml:"load_profiles"`
	LoggingOn     bool             `json:"logging_enabled" yaml:"logging_enabled"`
	AlertSoundsOn bool             `json:"alert_sounds" yaml:"alert_sounds"`
	VoiceAlertsOn bool             `json:"voice_alerts" yaml:"voice_alerts"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Thresholds:    load.DefaultThresholds(),
		TariffRates:   load.DefaultTariffs(),
		LoadProfiles:  load.DefaultProfiles(),
		LoggingOn:     true,
		AlertSoundsOn: true,
		VoiceAlertsOn: false,
	}
}

// Load reads the file at path. A missing file returns defaults with a nil
// error; a malformed file returns defaults with the parse error so callers
// can log it and continue.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := unmarshal(path, data, &cfg); err != nil {
		return Default(), fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg.sanitized(), nil
}

// Save writes the configuration to path in the format implied by its
// extension. Best-effort persistence; the caller decides how to surface
// failures.
func Save(path string, cfg Config) error {
	if path == "" {
		path = DefaultPath
	}
	data, err := marshal(path, cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

func marshal(path string, cfg Config) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(cfg)
	}
	return json.MarshalIndent(cfg, "", "    ")
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// sanitized clamps thresholds, repairs tariffs and drops invalid profiles.
func (c Config) sanitized() Config {
	c.Thresholds = c.Thresholds.Clamped()
	if c.TariffRates.Validate() != nil {
		c.TariffRates = load.DefaultTariffs()
	}
	if len(c.LoadProfiles) == 0 {
		c.LoadProfiles = load.DefaultProfiles()
		return c
	}
	valid := c.LoadProfiles[:0]
	for _, profile := range c.LoadProfiles {
		if profile.Validate() == nil {
			valid = append(valid, profile)
		}
	}
	if len(valid) == 0 {
		valid = load.DefaultProfiles()
	}
	c.LoadProfiles = valid
	return c
}
