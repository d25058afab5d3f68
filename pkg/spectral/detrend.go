package spectral

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"npsanalyzer/internal/models"
)

// Options selects the background removal applied before the FFT.
type Options struct {
	// UseFitting subtracts a least-squares polynomial surface instead of the mean
	UseFitting bool

	// FitOrder is the polynomial order of the surface (1 or 2)
	FitOrder int
}

// Detrend returns the ROI samples with the background estimate removed.
func Detrend(roi *models.PixelArray, opts Options) ([]float64, error) {
	if len(roi.Data) == 0 {
		return nil, models.Degenerate("detrend", "empty pixel region")
	}

	var background []float64
	if opts.UseFitting {
		surface, err := FitSurface(roi.Data, roi.Width, roi.Height, opts.FitOrder)
		if err != nil {
			return nil, err
		}
		background = surface
	}

	mean := stat.Mean(roi.Data, nil)
	detrended := make([]float64, len(roi.Data))
	for i, v := range roi.Data {
		if background != nil {
			detrended[i] = v - background[i]
		} else {
			detrended[i] = v - mean
		}
	}
	return detrended, nil
}

// FitSurface fits the polynomial sum_{p,q<=order} c_pq x^p y^q to a row-major array
// by least squares and returns the fitted surface. Order 1 is the bilinear surface
// a + bx + cy + dxy, order 2 adds the quadratic and mixed terms up to x²y².
//
// Coordinates are mapped to [-1, 1] before building the design matrix to keep
// the system well conditioned for large ROIs.
func FitSurface(data []float64, width, height, order int) ([]float64, error) {
	if order < 1 || order > 2 {
		return nil, models.Degenerate("surface fit", "unsupported order %d", order)
	}
	if width <= order || height <= order {
		return nil, models.Degenerate("surface fit", "%dx%d region too small for order %d", width, height, order)
	}

	terms := (order + 1) * (order + 1)
	n := width * height
	design := mat.NewDense(n, terms, nil)

	powers := func(v float64) []float64 {
		p := make([]float64, order+1)
		p[0] = 1
		for i := 1; i <= order; i++ {
			p[i] = p[i-1] * v
		}
		return p
	}

	for y := 0; y < height; y++ {
		py := powers(normalizedCoord(y, height))
		for x := 0; x < width; x++ {
			px := powers(normalizedCoord(x, width))
			row := y*width + x
			k := 0
			for i := 0; i <= order; i++ {
				for j := 0; j <= order; j++ {
					design.Set(row, k, px[i]*py[j])
					k++
				}
			}
		}
	}

	var coef mat.VecDense
	if err := coef.SolveVec(design, mat.NewVecDense(n, append([]float64(nil), data...))); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, models.Degenerate("surface fit", "ill-conditioned system (condition %g)", float64(cond))
		}
		return nil, models.Degenerate("surface fit", "%v", err)
	}

	var fitted mat.VecDense
	fitted.MulVec(design, &coef)

	surface := make([]float64, n)
	for i := range surface {
		surface[i] = fitted.AtVec(i)
	}
	return surface, nil
}

func normalizedCoord(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return 2*float64(i)/float64(n-1) - 1
}
