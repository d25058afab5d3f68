// Package nps runs the noise power spectrum analysis over a dataset: it indexes the
// ROI assignments, estimates the NPS of every ROI and aggregates the results per
// image and per series.
package nps

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"npsanalyzer/internal/logger"
	"npsanalyzer/internal/models"
	"npsanalyzer/pkg/aggregate"
	"npsanalyzer/pkg/config"
	"npsanalyzer/pkg/indexer"
	"npsanalyzer/pkg/loader"
	"npsanalyzer/pkg/peak"
	"npsanalyzer/pkg/pixelstats"
	"npsanalyzer/pkg/resample"
	"npsanalyzer/pkg/spectral"
)

// PreviewWriter stores a rendering of the 2D NPS of one ROI and returns its location.
type PreviewWriter interface {
	Save(name string, res *spectral.Result) (string, error)
}

// Params holds the analysis parameters and the collaborators of a run.
type Params struct {
	// Analysis holds the engine parameters; it is copied and never modified
	Analysis config.Analysis

	// NumCores specifies how many series are processed in parallel
	NumCores int

	// Source loads the pixel array of an image path
	Source loader.PixelSource

	// Previews, when set, receives the 2D NPS of every ROI
	Previews PreviewWriter

	// Logger receives progress and warnings. Defaults to the process logger.
	Logger logrus.FieldLogger
}

// Metrics summarizes the last run
type Metrics struct {
	SeriesProcessed  int
	SeriesFailed     int
	ImagesProcessed  int
	ROIsProcessed    int
	UnmatchedROIs    int
	SpacingFallbacks int
	Elapsed          time.Duration
}

// Analyzer computes NPS results for the series of a dataset.
//
// Processing follows the hierarchy study -> series -> image -> ROI:
// 1. Crop the ROI and estimate its 2D and radial NPS
// 2. Resample the radial profile onto the frequency grid (and truncate it)
// 3. Average the ROI profiles of an image and characterize the peak
// 4. Average the image profiles of a series and characterize the peak
//
// Pixel statistics are computed from the same crops alongside the spectra.
// Series are independent and run in parallel; each keeps its own accumulators.
type Analyzer struct {
	params *Params

	// grid is the resampling target derived from params.Analysis
	grid []float64

	log     logrus.FieldLogger
	metrics Metrics
}

// NewAnalyzer validates the parameters and creates an analyzer.
func NewAnalyzer(params *Params) (*Analyzer, error) {
	if params == nil {
		return nil, errors.New("analyzer parameters are required")
	}
	if err := params.Analysis.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis parameters: %w", err)
	}
	if params.Source == nil {
		return nil, errors.New("a pixel source is required")
	}

	p := *params
	if p.NumCores < 1 {
		p.NumCores = 1
	}
	log := p.Logger
	if log == nil {
		log = logger.Logger
	}

	return &Analyzer{
		params: &p,
		grid:   resample.TargetGrid(p.Analysis),
		log:    log,
	}, nil
}

// Run indexes the ROI assignments against the hierarchy and processes every indexed
// series. A failing series does not stop the others: its error is recorded in the
// report and the first failure, in study/series order, is returned after all series
// have finished.
func (a *Analyzer) Run(hierarchy models.DirectoryHierarchy, assignments models.ROIAssignments) (*Report, error) {
	start := time.Now()

	index, diag := indexer.Build(hierarchy, assignments)
	a.metrics = Metrics{UnmatchedROIs: diag.UnmatchedCount()}
	if n := diag.UnmatchedCount(); n > 0 {
		a.log.WithFields(logrus.Fields{
			"count": n,
			"keys":  diag.Unmatched,
		}).Warn("ROI entries matched no image of the dataset")
	}
	if len(diag.Merged) > 0 {
		a.log.WithField("keys", diag.Merged).Debug("ROI entries merged into an existing image")
	}

	type job struct {
		study  string
		series string
		images []models.ImageROIs
	}
	var jobs []job
	for _, study := range index.StudyIDs() {
		for _, series := range index.SeriesIDs(study) {
			jobs = append(jobs, job{study: study, series: series, images: index.Series(study, series)})
		}
	}
	a.log.WithFields(logrus.Fields{
		"series": len(jobs),
		"rois":   index.ROICount(),
		"cores":  a.params.NumCores,
	}).Info("Starting NPS analysis")

	type seriesOutcome struct {
		idx    int
		result *SeriesResult
		err    error
	}
	resultChan := make(chan seriesOutcome)
	slots := make(chan struct{}, a.params.NumCores)

	for i, j := range jobs {
		go func(idx int, j job) {
			slots <- struct{}{}
			defer func() { <-slots }()

			res, err := a.ProcessSeries(j.study, j.series, j.images)
			resultChan <- seriesOutcome{idx: idx, result: res, err: err}
		}(i, j)
	}

	outcomes := make([]seriesOutcome, len(jobs))
	for completed := 1; completed <= len(jobs); completed++ {
		out := <-resultChan
		outcomes[out.idx] = out

		elapsed := time.Since(start)
		remaining := elapsed / time.Duration(completed) * time.Duration(len(jobs)-completed)
		entry := a.log.WithFields(logrus.Fields{
			"study":     jobs[out.idx].study,
			"series":    jobs[out.idx].series,
			"progress":  fmt.Sprintf("%d/%d", completed, len(jobs)),
			"remaining": remaining.Round(time.Millisecond),
		})
		if out.err != nil {
			entry.WithError(out.err).Error("Series failed")
		} else {
			entry.WithField("duration", out.result.Duration.Round(time.Millisecond)).Info("Series finished")
		}
	}

	report := &Report{Unmatched: diag.Unmatched, Merged: diag.Merged}
	var firstErr error
	for i, out := range outcomes {
		if out.err != nil {
			report.Failures = append(report.Failures, SeriesFailure{
				Study:   jobs[i].study,
				Series:  jobs[i].series,
				Message: out.err.Error(),
				Err:     out.err,
			})
			if firstErr == nil {
				firstErr = fmt.Errorf("series %s/%s: %w", jobs[i].study, jobs[i].series, out.err)
			}
			a.metrics.SeriesFailed++
			continue
		}

		report.Series = append(report.Series, *out.result)
		a.metrics.SeriesProcessed++
		a.metrics.ImagesProcessed += len(out.result.Images)
		a.metrics.SpacingFallbacks += out.result.SpacingFallbacks
		for _, img := range out.result.Images {
			a.metrics.ROIsProcessed += len(img.ROIs)
		}
	}
	a.metrics.Elapsed = time.Since(start)

	if firstErr != nil {
		return report, fmt.Errorf("%d of %d series failed, first: %w", len(report.Failures), len(jobs), firstErr)
	}
	return report, nil
}

// ProcessSeries computes the results of one series. Images without ROIs are
// skipped; a series without any processable image is degenerate.
func (a *Analyzer) ProcessSeries(study, series string, images []models.ImageROIs) (*SeriesResult, error) {
	start := time.Now()
	log := a.log.WithFields(logrus.Fields{"study": study, "series": series})
	log.WithField("images", len(images)).Debug("Processing series")

	result := &SeriesResult{Study: study, Series: series}
	var (
		profiles  []models.Profile
		imgStats  []pixelstats.ImageStats
		aucs      []float64
		integrals []float64
	)

	for _, img := range images {
		if len(img.ROIs) == 0 {
			log.WithField("image", img.ImageID).Debug("Skipping image without ROIs")
			continue
		}

		res, err := a.processImage(study, series, img, log)
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", img.ImageID, err)
		}

		result.Images = append(result.Images, *res)
		if res.SpacingFallback {
			result.SpacingFallbacks++
		}
		profiles = append(profiles, res.Profile)
		imgStats = append(imgStats, res.Pixels)
		aucs = append(aucs, res.AUC...)
		integrals = append(integrals, res.Integral2D...)
	}

	if len(result.Images) == 0 {
		return nil, models.Degenerate("series "+study+"/"+series, "no image with ROIs")
	}

	profile, err := aggregate.Series(profiles)
	if err != nil {
		return nil, fmt.Errorf("series aggregation: %w", err)
	}
	seriesStats, err := pixelstats.ForSeries(imgStats)
	if err != nil {
		return nil, err
	}

	result.Aggregate = SeriesAggregate{
		Profile:        profile,
		Peak:           peak.Characterize(profile, a.params.Analysis.StartFreq),
		SeriesStats:    seriesStats,
		MeanAUC:        stat.Mean(aucs, nil),
		MeanIntegral2D: stat.Mean(integrals, nil),
	}
	result.Duration = time.Since(start)
	return result, nil
}

// processImage loads one image and processes its ROIs in selection order.
func (a *Analyzer) processImage(study, series string, img models.ImageROIs, log logrus.FieldLogger) (*ImageResult, error) {
	arr, err := a.params.Source.Load(img.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load pixels: %w", err)
	}

	res := &ImageResult{ImageID: img.ImageID, Path: img.Path, Spacing: arr.Spacing}
	if !arr.Spacing.Valid() {
		res.Spacing = models.UniformSpacing(a.params.Analysis.DefaultPixelSpacingMm)
		res.SpacingFallback = true
		log.WithFields(logrus.Fields{
			"image":   img.ImageID,
			"default": a.params.Analysis.DefaultPixelSpacingMm,
		}).Warn("Pixel spacing missing or invalid, using default")
	}

	opts := spectral.Options{
		UseFitting: a.params.Analysis.UseFitting,
		FitOrder:   a.params.Analysis.FitOrder,
	}
	baseName := strings.TrimSuffix(filepath.Base(img.Path), filepath.Ext(img.Path))

	profiles := make([]models.Profile, 0, len(img.ROIs))
	roiStats := make([]models.PixelStats, 0, len(img.ROIs))
	for i, roi := range img.ROIs {
		crop, err := arr.Crop(roi)
		if err != nil {
			return nil, err
		}

		spectrum, err := spectral.Compute(crop, res.Spacing.Row, opts)
		if err != nil {
			return nil, fmt.Errorf("ROI %s: %w", roi, err)
		}

		if a.params.Previews != nil {
			name := fmt.Sprintf("%s_%s_%s_roi%d", study, series, baseName, i+1)
			path, err := a.params.Previews.Save(name, spectrum)
			if err != nil {
				return nil, err
			}
			res.Previews = append(res.Previews, path)
		}

		profile, err := resample.Resample(spectrum.Profile.Profile, a.grid)
		if err != nil {
			return nil, fmt.Errorf("ROI %s: %w", roi, err)
		}
		if a.params.Analysis.UseTruncation {
			profile = resample.Truncate(profile, a.params.Analysis.TruncationThresholdPct)
		}

		ps, err := pixelstats.ForROI(crop)
		if err != nil {
			return nil, fmt.Errorf("ROI %s: %w", roi, err)
		}

		profiles = append(profiles, profile)
		roiStats = append(roiStats, ps)
		res.ROIs = append(res.ROIs, roi)
		res.ROISizes = append(res.ROISizes, fmt.Sprintf("%dx%d", roi.Width(), roi.Height()))
		res.AUC = append(res.AUC, spectrum.Profile.AUC)
		res.Integral2D = append(res.Integral2D, spectrum.Profile.Integral2D)
	}

	res.Profile, err = aggregate.Images(profiles)
	if err != nil {
		return nil, err
	}
	res.Peak = peak.Characterize(res.Profile, a.params.Analysis.StartFreq)

	res.Pixels, err = pixelstats.ForImage(roiStats)
	if err != nil {
		return nil, err
	}
	res.MeanAUC = stat.Mean(res.AUC, nil)
	res.MeanIntegral2D = stat.Mean(res.Integral2D, nil)

	log.WithFields(logrus.Fields{
		"image": img.ImageID,
		"rois":  len(img.ROIs),
	}).Debug("Image processed")
	return res, nil
}

// GetMetrics returns the metrics of the last run
func (a *Analyzer) GetMetrics() Metrics {
	return a.metrics
}
