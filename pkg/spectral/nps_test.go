package spectral

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"npsanalyzer/internal/models"
)

// createTestROI creates a pixel array filled by the given pattern
func createTestROI(width, height int, pattern func(x, y int) float64) *models.PixelArray {
	roi := models.NewPixelArray(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			roi.Set(x, y, pattern(x, y))
		}
	}
	roi.Spacing = models.UniformSpacing(0.5)
	return roi
}

func randomROI(width, height int, seed int64) *models.PixelArray {
	rng := rand.New(rand.NewSource(seed))
	return createTestROI(width, height, func(x, y int) float64 {
		return 100 + rng.NormFloat64()*10
	})
}

// TestFFT2DMatchesNaiveDFT checks the row/column FFT against a direct DFT
// on a non power-of-two, non-square array
func TestFFT2DMatchesNaiveDFT(t *testing.T) {
	width, height := 5, 3
	roi := randomROI(width, height, 1)

	got := fft2D(roi.Data, width, height)

	for v := 0; v < height; v++ {
		for u := 0; u < width; u++ {
			var want complex128
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					angle := -2 * math.Pi * (float64(u*x)/float64(width) + float64(v*y)/float64(height))
					want += complex(roi.At(x, y), 0) * cmplx.Exp(complex(0, angle))
				}
			}
			if cmplx.Abs(got[v*width+u]-want) > 1e-8 {
				t.Errorf("DFT mismatch at (%d,%d): got %v, want %v", u, v, got[v*width+u], want)
			}
		}
	}
}

func TestShift2DCentresZeroFrequency(t *testing.T) {
	for _, dims := range [][2]int{{4, 4}, {5, 3}, {1, 6}} {
		width, height := dims[0], dims[1]
		data := make([]float64, width*height)
		data[0] = 1

		shifted := shift2D(data, width, height)
		if shifted[(height/2)*width+width/2] != 1 {
			t.Errorf("%dx%d: zero frequency not at centre", width, height)
		}
	}
}

func TestConstantROIGivesZeroSpectrum(t *testing.T) {
	roi := createTestROI(16, 16, func(x, y int) float64 { return 42 })

	res, err := Compute(roi, 0.5, Options{})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	for i, v := range res.NPS2D {
		if v != 0 {
			t.Fatalf("Expected all-zero 2D NPS, got %g at %d", v, i)
		}
	}
	if res.Profile.AUC != 0 || res.Profile.Integral2D != 0 {
		t.Errorf("Expected zero AUC and integral, got %g and %g", res.Profile.AUC, res.Profile.Integral2D)
	}
}

func TestAUCIsProfileSum(t *testing.T) {
	roi := randomROI(24, 20, 7)

	res, err := Compute(roi, 0.4, Options{})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if res.Profile.AUC != floats.Sum(res.Profile.Values) {
		t.Errorf("AUC %g differs from profile sum %g", res.Profile.AUC, floats.Sum(res.Profile.Values))
	}
	if len(res.Profile.Values) != len(res.Profile.Frequencies) {
		t.Errorf("Values and frequencies differ in length: %d vs %d",
			len(res.Profile.Values), len(res.Profile.Frequencies))
	}
	for i, v := range res.Profile.Values {
		if v < 0 {
			t.Errorf("Negative NPS value %g at %d", v, i)
		}
	}
}

// TestIntegral2DIsVariance relies on Parseval: with the 1/(h²w²) normalization the
// 2D integral equals the population variance of the mean-detrended ROI
func TestIntegral2DIsVariance(t *testing.T) {
	roi := randomROI(32, 32, 3)

	res, err := Compute(roi, 0.5, Options{})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	_, sd := stat.PopMeanStdDev(roi.Data, nil)
	if math.Abs(res.Profile.Integral2D-sd*sd) > 1e-9*sd*sd {
		t.Errorf("Integral2D %g, expected variance %g", res.Profile.Integral2D, sd*sd)
	}
}

func TestCosinePeaksAtItsRadius(t *testing.T) {
	size, k0 := 32, 4
	roi := createTestROI(size, size, func(x, y int) float64 {
		return 50 * math.Cos(2*math.Pi*float64(k0*x)/float64(size))
	})

	res, err := Compute(roi, 0.5, Options{})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if idx := floats.MaxIdx(res.Profile.Values); idx != k0 {
		t.Errorf("Expected radial peak at %d, got %d (%v)", k0, idx, res.Profile.Values)
	}
}

func TestRadialMean(t *testing.T) {
	nps := []float64{
		1, 1, 1,
		1, 9, 1,
		1, 1, 1,
	}
	got := RadialMean(nps, 3, 3)
	want := []float64{9, 1}
	if !floats.Equal(got, want) {
		t.Errorf("RadialMean = %v, want %v", got, want)
	}
}

func TestRadialMeanNonSquare(t *testing.T) {
	roi := randomROI(8, 4, 11)
	res, err := Compute(roi, 1, Options{})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if len(res.Profile.Values) != 5 {
		t.Errorf("Expected max(8,4)/2+1 = 5 samples, got %d", len(res.Profile.Values))
	}
}

func TestFrequencies(t *testing.T) {
	got := Frequencies(8, 0.5)
	want := []float64{0, 2.5, 5, 7.5, 10}
	if !floats.EqualApprox(got, want, 1e-12) {
		t.Errorf("Frequencies = %v, want %v", got, want)
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Errorf("Frequencies not strictly increasing at %d", i)
		}
	}
}

func TestComputeRejectsInvalidSpacing(t *testing.T) {
	roi := randomROI(4, 4, 1)
	for _, spacing := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := Compute(roi, spacing, Options{})
		var degenerate *models.DegenerateInputError
		if !errors.As(err, &degenerate) {
			t.Errorf("spacing %g: expected DegenerateInputError, got %v", spacing, err)
		}
	}
}

func TestFitSurfaceRemovesPlane(t *testing.T) {
	roi := createTestROI(12, 10, func(x, y int) float64 {
		return 3 + 2*float64(x) - float64(y) + 0.5*float64(x*y)
	})

	detrended, err := Detrend(roi, Options{UseFitting: true, FitOrder: 1})
	if err != nil {
		t.Fatalf("Detrend failed: %v", err)
	}
	for i, v := range detrended {
		if math.Abs(v) > 1e-8 {
			t.Fatalf("Residual %g at %d after removing a bilinear surface", v, i)
		}
	}
}

func TestFitSurfaceRemovesQuadratic(t *testing.T) {
	roi := createTestROI(9, 11, func(x, y int) float64 {
		fx, fy := float64(x), float64(y)
		return 10 + fx*fx - 2*fy*fy + 0.1*fx*fx*fy
	})

	detrended, err := Detrend(roi, Options{UseFitting: true, FitOrder: 2})
	if err != nil {
		t.Fatalf("Detrend failed: %v", err)
	}
	for i, v := range detrended {
		if math.Abs(v) > 1e-7 {
			t.Fatalf("Residual %g at %d after removing a quadratic surface", v, i)
		}
	}
}

func TestFitSurfaceTooSmall(t *testing.T) {
	_, err := FitSurface([]float64{1, 2}, 2, 1, 1)
	var degenerate *models.DegenerateInputError
	if !errors.As(err, &degenerate) {
		t.Errorf("Expected DegenerateInputError, got %v", err)
	}
}

func TestMeanDetrendHasZeroMean(t *testing.T) {
	roi := randomROI(10, 10, 5)
	detrended, err := Detrend(roi, Options{})
	if err != nil {
		t.Fatalf("Detrend failed: %v", err)
	}
	if m := stat.Mean(detrended, nil); math.Abs(m) > 1e-9 {
		t.Errorf("Expected zero mean, got %g", m)
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize([]float64{2, 4, 6})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if !floats.Equal(got, []float64{0, 0.5, 1}) {
		t.Errorf("Normalize = %v", got)
	}

	_, err = Normalize([]float64{3, 3, 3})
	var degenerate *models.DegenerateInputError
	if !errors.As(err, &degenerate) {
		t.Errorf("Expected DegenerateInputError for constant input, got %v", err)
	}
}
