// Package resample maps raw NPS profiles onto the configured uniform frequency grid
// and truncates low-magnitude tails.
package resample

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"

	"npsanalyzer/internal/models"
	"npsanalyzer/pkg/config"
)

// Grid is a uniform frequency grid [Start, End] sampled every Step.
type Grid struct {
	Start float64
	End   float64
	Step  float64
}

// Points returns the grid frequencies Start + i·Step that do not exceed End.
func (g Grid) Points() []float64 {
	if g.Step <= 0 || g.End < g.Start {
		return nil
	}
	// the epsilon keeps End on the grid when (End-Start)/Step is integral
	n := int(math.Floor((g.End-g.Start)/g.Step+1e-9)) + 1
	points := make([]float64, n)
	for i := range points {
		points[i] = g.Start + float64(i)*g.Step
	}
	if points[n-1] > g.End {
		points[n-1] = g.End
	}
	return points
}

// TargetGrid returns the configured resampling frequencies.
func TargetGrid(a config.Analysis) []float64 {
	return Grid{Start: a.StartFreq, End: a.EndFreq, Step: a.Step}.Points()
}

// Resample re-expresses a profile on the target frequencies by piecewise-linear
// interpolation between the bracketing source samples. It stops at the first
// target frequency outside the source range, so the result is a prefix of the
// target grid; it never extrapolates. Negative interpolated values are clamped
// to zero.
func Resample(src models.Profile, target []float64) (models.Profile, error) {
	if len(src.Values) != len(src.Frequencies) {
		return models.Profile{}, fmt.Errorf("resample: %d values for %d frequencies",
			len(src.Values), len(src.Frequencies))
	}

	var line *interp.PiecewiseLinear
	if len(src.Frequencies) >= 2 {
		line = &interp.PiecewiseLinear{}
		if err := line.Fit(src.Frequencies, src.Values); err != nil {
			return models.Profile{}, fmt.Errorf("resample: %w", err)
		}
	}

	out := models.Profile{
		Values:      make([]float64, 0, len(target)),
		Frequencies: make([]float64, 0, len(target)),
	}
	for _, f := range target {
		lower, upper, ok := bracket(src.Frequencies, f)
		if !ok {
			break
		}

		var v float64
		if lower == upper {
			v = src.Values[lower]
		} else {
			v = line.Predict(f)
		}
		if v < 0 {
			v = 0
		}

		out.Values = append(out.Values, v)
		out.Frequencies = append(out.Frequencies, f)
	}
	return out, nil
}

// bracket returns the indices of the largest source frequency <= f and the
// smallest source frequency >= f.
func bracket(freqs []float64, f float64) (lower, upper int, ok bool) {
	upper = sort.SearchFloat64s(freqs, f)
	if upper == len(freqs) {
		return 0, 0, false
	}
	if freqs[upper] == f {
		return upper, upper, true
	}
	if upper == 0 {
		return 0, 0, false
	}
	return upper - 1, upper, true
}

// Truncate keeps the leading samples whose value exceeds thresholdPct percent of the
// profile maximum and drops everything from the first sample that does not.
func Truncate(p models.Profile, thresholdPct float64) models.Profile {
	if len(p.Values) == 0 {
		return p.Clone()
	}

	peak := p.Values[0]
	for _, v := range p.Values[1:] {
		peak = math.Max(peak, v)
	}
	threshold := thresholdPct / 100 * peak

	keep := 0
	for keep < len(p.Values) && p.Values[keep] > threshold {
		keep++
	}

	return models.Profile{
		Values:      append([]float64(nil), p.Values[:keep]...),
		Frequencies: append([]float64(nil), p.Frequencies[:keep]...),
	}
}
