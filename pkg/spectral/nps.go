// Package spectral computes the noise power spectrum of an ROI: the 2D NPS via FFT,
// its radial average and the frequency axis in line pairs per cm.
package spectral

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"

	"npsanalyzer/internal/models"
)

// Result is the spectral estimate of one ROI
type Result struct {
	// Profile holds the radially averaged 1D NPS with AUC and 2D integral
	Profile models.RawProfile

	// NPS2D is the centred 2D NPS, row-major
	NPS2D []float64

	// Width and Height are the dimensions of NPS2D
	Width  int
	Height int
}

// Compute estimates the NPS of a single ROI.
//
// Parameters:
//   - roi: the ROI pixel samples
//   - spacingMm: physical pixel size used for the frequency axis
//   - opts: background removal mode
func Compute(roi *models.PixelArray, spacingMm float64, opts Options) (*Result, error) {
	if roi.Width == 0 || roi.Height == 0 {
		return nil, models.Degenerate("nps", "empty pixel region")
	}
	if !(spacingMm > 0) || math.IsInf(spacingMm, 0) {
		return nil, models.Degenerate("nps", "invalid pixel spacing %g", spacingMm)
	}

	detrended, err := Detrend(roi, opts)
	if err != nil {
		return nil, err
	}

	nps := PowerSpectrum2D(detrended, roi.Width, roi.Height)
	values := RadialMean(nps, roi.Width, roi.Height)
	freqs := Frequencies(max(roi.Width, roi.Height), spacingMm)

	return &Result{
		Profile: models.RawProfile{
			Profile:    models.Profile{Values: values, Frequencies: freqs},
			AUC:        floats.Sum(values),
			Integral2D: floats.Sum(nps),
		},
		NPS2D:  nps,
		Width:  roi.Width,
		Height: roi.Height,
	}, nil
}

// PowerSpectrum2D returns |DFT|² / (height²·width²) with the zero frequency
// shifted to the centre.
func PowerSpectrum2D(detrended []float64, width, height int) []float64 {
	spectrum := fft2D(detrended, width, height)

	norm := 1 / (float64(height) * float64(height) * float64(width) * float64(width))
	power := make([]float64, len(spectrum))
	for i, c := range spectrum {
		a := cmplx.Abs(c)
		power[i] = a * a * norm
	}
	return shift2D(power, width, height)
}

// RadialMean reduces a centred 2D spectrum to a 1D profile of max(width,height)/2+1
// samples. Sample r is the mean of all points at distance [r-0.5, r+0.5) from the
// centre; sample 0 is the centre point itself.
func RadialMean(nps []float64, width, height int) []float64 {
	cx, cy := width/2, height/2
	n := max(width, height)/2 + 1

	sums := make([]float64, n)
	counts := make([]int, n)
	for y := 0; y < height; y++ {
		dy := float64(y - cy)
		for x := 0; x < width; x++ {
			dx := float64(x - cx)
			bin := int(math.Floor(math.Sqrt(dx*dx+dy*dy) + 0.5))
			if bin < n {
				sums[bin] += nps[y*width+x]
				counts[bin]++
			}
		}
	}

	profile := make([]float64, n)
	for r := range profile {
		if counts[r] > 0 {
			profile[r] = sums[r] / float64(counts[r])
		}
	}
	profile[0] = nps[cy*width+cx]
	return profile
}

// Frequencies returns the axis k / (size · spacing[cm]) for k = 0..size/2,
// in line pairs per cm.
func Frequencies(size int, spacingMm float64) []float64 {
	n := size/2 + 1
	freqs := make([]float64, n)
	d := float64(size) * spacingMm / 10
	for k := range freqs {
		freqs[k] = float64(k) / d
	}
	return freqs
}

// Normalize maps values linearly onto [0, 1]. A constant input cannot be
// normalized and yields a DegenerateInputError.
func Normalize(values []float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, models.Degenerate("normalize", "empty input")
	}
	lo, hi := floats.Min(values), floats.Max(values)
	if hi == lo {
		return nil, models.Degenerate("normalize", "max equals min (%g)", hi)
	}

	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - lo) / (hi - lo)
	}
	return out, nil
}
