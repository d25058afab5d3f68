// Package config provides configuration loading and management for npsanalyzer.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Frequency grid onto which every NPS profile is resampled (line pairs per cm)
	Frequency struct {
		StartFreq float64 `yaml:"startFreq"`
		EndFreq   float64 `yaml:"endFreq"`
		Step      float64 `yaml:"step"`
	} `yaml:"frequency"`

	// Truncation of low-magnitude tails of resampled profiles
	Truncation struct {
		Enabled bool `yaml:"enabled"`

		// ThresholdPercent is the percentage of the profile maximum below which
		// the tail is dropped
		ThresholdPercent float64 `yaml:"thresholdPercent"`
	} `yaml:"truncation"`

	// Background removal before the FFT
	Detrend struct {
		// UseFitting selects a polynomial surface fit instead of mean subtraction
		UseFitting bool `yaml:"useFitting"`

		// FitOrder is the polynomial order of the surface fit (1 or 2)
		FitOrder int `yaml:"fitOrder"`
	} `yaml:"detrend"`

	Image struct {
		// DefaultPixelSpacingMm is used when an image carries no usable spacing
		DefaultPixelSpacingMm float64 `yaml:"defaultPixelSpacingMm"`
	} `yaml:"image"`

	Processing struct {
		// NumCores specifies how many series are processed in parallel
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Input dataset scanning
	Input struct {
		// Extensions of image files, in order of preference
		Extensions []string `yaml:"extensions"`

		// Exclude lists substrings; files whose path contains one are skipped
		Exclude []string `yaml:"exclude"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// ReportFile is where the YAML result report is written
		ReportFile string `yaml:"reportFile"`

		// Save2DNPS writes a normalized preview image of every 2D NPS
		Save2DNPS bool `yaml:"save2DNPS"`

		// PreviewDir is the directory for the 2D NPS previews
		PreviewDir string `yaml:"previewDir"`

		// PreviewSize is the edge length of the preview images in pixels
		PreviewSize int `yaml:"previewSize"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// Analysis is the immutable parameter set handed to the NPS engine.
type Analysis struct {
	StartFreq              float64
	EndFreq                float64
	Step                   float64
	UseTruncation          bool
	TruncationThresholdPct float64
	UseFitting             bool
	FitOrder               int
	DefaultPixelSpacingMm  float64
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Frequency.StartFreq = 0
	cfg.Frequency.EndFreq = 20
	cfg.Frequency.Step = 0.01

	cfg.Truncation.Enabled = false
	cfg.Truncation.ThresholdPercent = 1

	cfg.Detrend.UseFitting = false
	cfg.Detrend.FitOrder = 2

	cfg.Image.DefaultPixelSpacingMm = 0.781

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	cfg.Input.Extensions = []string{".dcm", ".tif", ".png", ".jpg"}

	cfg.Output.ReportFile = "nps_report.yaml"
	cfg.Output.Save2DNPS = false
	cfg.Output.PreviewDir = "nps_2d"
	cfg.Output.PreviewSize = 256
	cfg.Output.Verbose = true

	return cfg
}

// DefaultAnalysis returns the analysis parameters of DefaultConfig.
func DefaultAnalysis() Analysis {
	return DefaultConfig().Analysis()
}

// Analysis extracts the engine parameters.
func (c *Config) Analysis() Analysis {
	return Analysis{
		StartFreq:              c.Frequency.StartFreq,
		EndFreq:                c.Frequency.EndFreq,
		Step:                   c.Frequency.Step,
		UseTruncation:          c.Truncation.Enabled,
		TruncationThresholdPct: c.Truncation.ThresholdPercent,
		UseFitting:             c.Detrend.UseFitting,
		FitOrder:               c.Detrend.FitOrder,
		DefaultPixelSpacingMm:  c.Image.DefaultPixelSpacingMm,
	}
}

// Validate checks the engine parameters for values the computation cannot use.
func (a Analysis) Validate() error {
	var errs []error
	if a.Step <= 0 {
		errs = append(errs, fmt.Errorf("frequency step must be positive, got %g", a.Step))
	}
	if a.EndFreq < a.StartFreq {
		errs = append(errs, fmt.Errorf("end frequency %g is below start frequency %g", a.EndFreq, a.StartFreq))
	}
	if a.UseFitting && (a.FitOrder < 1 || a.FitOrder > 2) {
		errs = append(errs, fmt.Errorf("fit order must be 1 or 2, got %d", a.FitOrder))
	}
	if a.TruncationThresholdPct < 0 || a.TruncationThresholdPct >= 100 {
		errs = append(errs, fmt.Errorf("truncation threshold must be in [0,100), got %g", a.TruncationThresholdPct))
	}
	if a.DefaultPixelSpacingMm <= 0 {
		errs = append(errs, fmt.Errorf("default pixel spacing must be positive, got %g", a.DefaultPixelSpacingMm))
	}
	return errors.Join(errs...)
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	err := c.Analysis().Validate()
	if c.Processing.NumCores < 1 {
		err = errors.Join(err, fmt.Errorf("numCores must be at least 1, got %d", c.Processing.NumCores))
	}
	if c.Output.Save2DNPS && c.Output.PreviewSize < 1 {
		err = errors.Join(err, fmt.Errorf("previewSize must be at least 1, got %d", c.Output.PreviewSize))
	}
	return err
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
