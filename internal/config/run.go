package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/motion.report/internal/serialmux"
	"github.com/banshee-data/motion.report/internal/units"
)

const (
	DefaultOutputDir      = "."
	DefaultListen         = "localhost:8090"
	DefaultReplayInterval = 100 * time.Millisecond
)

// RunConfig holds the I/O settings of the service. Tracker thresholds are
// fixed and deliberately absent.
type RunConfig struct {
	// Serial holds the line settings used when PortPath is set.
	Serial   serialmux.PortOptions `json:"serial"`
	PortPath string                `json:"port_path,omitempty"`

	OutputDir string `json:"output_dir,omitempty"`
	Listen    string `json:"listen,omitempty"`
	Units     string `json:"units,omitempty"` // API display units

	// Dev mode replay.
	Fixtures       string `json:"fixtures,omitempty"`
	ReplayInterval string `json:"replay_interval,omitempty"` // duration string like "100ms"
}

// DefaultRunConfig returns the settings used when no config file is given.
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		OutputDir: DefaultOutputDir,
		Listen:    DefaultListen,
		Units:     units.Metres,
	}
}

// LoadRunConfig loads a RunConfig from a JSON file. Fields omitted from the
// file keep their defaults.
func LoadRunConfig(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultRunConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *RunConfig) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if c.Listen == "" {
		return fmt.Errorf("listen must not be empty")
	}
	if !units.IsValid(c.Units) {
		return fmt.Errorf("invalid units '%s': must be one of %s", c.Units, units.GetValidUnitsString())
	}
	if _, err := c.Serial.Normalise(); err != nil {
		return fmt.Errorf("invalid serial options: %w", err)
	}
	if c.ReplayInterval != "" {
		d, err := time.ParseDuration(c.ReplayInterval)
		if err != nil {
			return fmt.Errorf("invalid replay_interval '%s': %w", c.ReplayInterval, err)
		}
		if d < 0 {
			return fmt.Errorf("replay_interval must be non-negative, got %s", c.ReplayInterval)
		}
	}
	return nil
}

// GetReplayInterval returns the dev-mode line cadence.
func (c *RunConfig) GetReplayInterval() time.Duration {
	if c.ReplayInterval == "" {
		return DefaultReplayInterval
	}
	d, err := time.ParseDuration(c.ReplayInterval)
	if err != nil {
		return DefaultReplayInterval
	}
	return d
}
