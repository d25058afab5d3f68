// Package aggregate averages resampled NPS profiles across the ROIs of an image
// and across the images of a series.
package aggregate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"npsanalyzer/internal/models"
)

// axisTolerance is the relative tolerance for two frequencies to count as the same grid point
const axisTolerance = 1e-9

// Images averages the ROI profiles of one image. Shorter profiles are zero-padded to the
// longest member; the frequency axis is copied from the first member of maximum length.
// Resampled profiles are prefixes of one target grid, so that axis is the finest
// grid every member lies on.
func Images(profiles []models.Profile) (models.Profile, error) {
	if len(profiles) == 0 {
		return models.Profile{}, models.Degenerate("image aggregation", "no profiles")
	}
	return paddedMean(profiles, longest(profiles)), nil
}

// Series averages the image profiles of one series. Members must agree on the frequencies
// of their common prefix; shorter members are then zero-padded like in Images. Members
// that disagree yield ErrAggregationShapeMismatch.
func Series(profiles []models.Profile) (models.Profile, error) {
	if len(profiles) == 0 {
		return models.Profile{}, models.Degenerate("series aggregation", "no profiles")
	}

	for i, p := range profiles {
		if len(p.Values) != len(p.Frequencies) {
			return models.Profile{}, fmt.Errorf("%w: member %d has %d values for %d frequencies",
				models.ErrAggregationShapeMismatch, i, len(p.Values), len(p.Frequencies))
		}
	}

	ref := longest(profiles)
	for i, p := range profiles {
		for k, f := range p.Frequencies {
			want := profiles[ref].Frequencies[k]
			if math.Abs(f-want) > axisTolerance*math.Max(1, math.Abs(want)) {
				return models.Profile{}, fmt.Errorf("%w: member %d has frequency %g at %d, expected %g",
					models.ErrAggregationShapeMismatch, i, f, k, want)
			}
		}
	}

	return paddedMean(profiles, ref), nil
}

// longest returns the index of the first profile of maximum length
func longest(profiles []models.Profile) int {
	best := 0
	for i, p := range profiles {
		if p.Len() > profiles[best].Len() {
			best = i
		}
	}
	return best
}

func paddedMean(profiles []models.Profile, ref int) models.Profile {
	n := profiles[ref].Len()
	sum := make([]float64, n)
	for _, p := range profiles {
		floats.Add(sum[:p.Len()], p.Values)
	}
	floats.Scale(1/float64(len(profiles)), sum)

	return models.Profile{
		Values:      sum,
		Frequencies: append([]float64(nil), profiles[ref].Frequencies...),
	}
}
