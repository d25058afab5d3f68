package nps

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"npsanalyzer/internal/models"
	"npsanalyzer/pkg/pixelstats"
)

// ImageResult is the outcome of one image: the mean of its resampled ROI profiles,
// the peak of that mean and the pixel statistics of its ROIs.
type ImageResult struct {
	ImageID string `yaml:"imageId"`
	Path    string `yaml:"path"`

	// ROIs are the processed rectangles, ROISizes their "width x height" in pixels
	ROIs     []models.ROI `yaml:"rois,flow"`
	ROISizes []string     `yaml:"roiSizes,flow"`

	Spacing models.PixelSpacing `yaml:"spacing"`

	// SpacingFallback is set when the image had no usable spacing and the
	// configured default was used
	SpacingFallback bool `yaml:"spacingFallback"`

	Profile models.Profile        `yaml:"profile"`
	Peak    models.PeakDescriptor `yaml:"peak"`
	Pixels  pixelstats.ImageStats `yaml:"pixels"`

	// AUC and Integral2D are the per-ROI spectral summaries in ROI order
	AUC            []float64 `yaml:"auc,flow"`
	Integral2D     []float64 `yaml:"integral2D,flow"`
	MeanAUC        float64   `yaml:"meanAuc"`
	MeanIntegral2D float64   `yaml:"meanIntegral2D"`

	// Previews lists the written 2D NPS images, if enabled
	Previews []string `yaml:"previews,omitempty"`
}

// SeriesAggregate is the series-level summary over all images of a series.
type SeriesAggregate struct {
	Profile models.Profile        `yaml:"profile"`
	Peak    models.PeakDescriptor `yaml:"peak"`

	pixelstats.SeriesStats `yaml:",inline"`

	// MeanAUC and MeanIntegral2D average over every ROI of the series
	MeanAUC        float64 `yaml:"meanAuc"`
	MeanIntegral2D float64 `yaml:"meanIntegral2D"`
}

// SeriesResult is everything computed for one series.
type SeriesResult struct {
	Study     string          `yaml:"study"`
	Series    string          `yaml:"series"`
	Images    []ImageResult   `yaml:"images"`
	Aggregate SeriesAggregate `yaml:"aggregate"`

	// SpacingFallbacks counts the images that used the default pixel spacing
	SpacingFallbacks int           `yaml:"spacingFallbacks"`
	Duration         time.Duration `yaml:"duration"`
}

// SeriesFailure records a series whose processing was aborted.
type SeriesFailure struct {
	Study   string `yaml:"study"`
	Series  string `yaml:"series"`
	Message string `yaml:"error"`
	Err     error  `yaml:"-"`
}

// Report collects the results of one run, ordered by study and series.
type Report struct {
	Series   []SeriesResult  `yaml:"series"`
	Failures []SeriesFailure `yaml:"failures,omitempty"`

	// Unmatched lists ROI assignment keys that matched no image of the hierarchy
	Unmatched []string `yaml:"unmatched,omitempty"`

	// Merged lists ROI assignment keys folded into another key of the same image
	Merged []string `yaml:"merged,omitempty"`
}

// Lookup returns the result of a series.
func (r *Report) Lookup(study, series string) (*SeriesResult, bool) {
	for i := range r.Series {
		if r.Series[i].Study == study && r.Series[i].Series == series {
			return &r.Series[i], true
		}
	}
	return nil, false
}

// WriteReport saves a report as YAML.
func WriteReport(report *Report, path string) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
