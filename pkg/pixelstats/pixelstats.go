// Package pixelstats computes first-order intensity statistics of ROIs and their
// second-order statistics across the images of a series.
package pixelstats

import (
	"fmt"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"npsanalyzer/internal/models"
)

// ImageStats summarizes the ROIs of one image
type ImageStats struct {
	// ROIs holds the per-ROI statistics in selection order
	ROIs []models.PixelStats `yaml:"rois"`

	// Mean is the mean of the ROI mean intensities
	Mean float64 `yaml:"mean"`

	// SD is the mean of the ROI standard deviations
	SD float64 `yaml:"sd"`

	// SDOfROIMeans and SDOfROISDs are population standard deviations across the ROIs
	SDOfROIMeans float64 `yaml:"sdOfRoiMeans"`
	SDOfROISDs   float64 `yaml:"sdOfRoiSds"`
}

// SeriesStats summarizes the images of one series. All deviations are population
// standard deviations of the per-image values.
type SeriesStats struct {
	MeanOfMeans float64 `yaml:"meanOfMeans"`
	MeanOfSDs   float64 `yaml:"meanOfSds"`
	SDOfMeans   float64 `yaml:"sdOfMeans"`
	SDOfSDs     float64 `yaml:"sdOfSds"`
}

// ForROI returns the mean intensity and population standard deviation of a pixel region.
func ForROI(roi *models.PixelArray) (models.PixelStats, error) {
	if len(roi.Data) == 0 {
		return models.PixelStats{}, models.Degenerate("pixel statistics", "empty pixel region")
	}
	mean, sd := stat.PopMeanStdDev(roi.Data, nil)
	return models.PixelStats{MeanIntensity: mean, StandardDeviation: sd}, nil
}

// ForImage aggregates the statistics of the ROIs of one image.
func ForImage(rois []models.PixelStats) (ImageStats, error) {
	if len(rois) == 0 {
		return ImageStats{}, models.Degenerate("image statistics", "no ROIs")
	}

	means := make([]float64, len(rois))
	sds := make([]float64, len(rois))
	for i, r := range rois {
		means[i] = r.MeanIntensity
		sds[i] = r.StandardDeviation
	}

	summary, err := summarize(means, sds)
	if err != nil {
		return ImageStats{}, fmt.Errorf("image statistics: %w", err)
	}

	return ImageStats{
		ROIs:         append([]models.PixelStats(nil), rois...),
		Mean:         summary.MeanOfMeans,
		SD:           summary.MeanOfSDs,
		SDOfROIMeans: summary.SDOfMeans,
		SDOfROISDs:   summary.SDOfSDs,
	}, nil
}

// ForSeries aggregates the per-image statistics of one series.
func ForSeries(images []ImageStats) (SeriesStats, error) {
	if len(images) == 0 {
		return SeriesStats{}, models.Degenerate("series statistics", "no images")
	}

	means := make([]float64, len(images))
	sds := make([]float64, len(images))
	for i, img := range images {
		means[i] = img.Mean
		sds[i] = img.SD
	}

	summary, err := summarize(means, sds)
	if err != nil {
		return SeriesStats{}, fmt.Errorf("series statistics: %w", err)
	}
	return summary, nil
}

func summarize(means, sds []float64) (SeriesStats, error) {
	var (
		s   SeriesStats
		err error
	)
	if s.MeanOfMeans, err = stats.Mean(means); err != nil {
		return s, err
	}
	if s.MeanOfSDs, err = stats.Mean(sds); err != nil {
		return s, err
	}
	if s.SDOfMeans, err = stats.StandardDeviationPopulation(means); err != nil {
		return s, err
	}
	if s.SDOfSDs, err = stats.StandardDeviationPopulation(sds); err != nil {
		return s, err
	}
	return s, nil
}
