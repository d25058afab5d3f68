package spectral

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// fft2D performs a 2D Fast Fourier Transform on a row-major array.
//
// Rows are transformed with Gonum's real FFT and completed through conjugate
// symmetry, columns with the complex FFT. Both work for any length, so ROIs
// need not be square or power-of-two sized.
//
// Parameters:
//   - data: Input samples as a 1D array (row-major order)
//   - width, height: Dimensions of the array
//
// Returns:
//   - The unshifted 2D DFT as a row-major array of complex numbers
func fft2D(data []float64, width, height int) []complex128 {
	result := make([]complex128, width*height)

	rowFFT := fourier.NewFFT(width)
	rowOutput := make([]complex128, width/2+1) // Gonum FFT output size for real input

	for y := 0; y < height; y++ {
		rowFFT.Coefficients(rowOutput, data[y*width:(y+1)*width])

		row := result[y*width : (y+1)*width]
		copy(row, rowOutput)
		for x := len(rowOutput); x < width; x++ {
			// Use conjugate symmetry: F(n-k) = F*(k)
			c := rowOutput[width-x]
			row[x] = complex(real(c), -imag(c))
		}
	}

	colFFT := fourier.NewCmplxFFT(height)
	colInput := make([]complex128, height)
	colOutput := make([]complex128, height)

	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			colInput[y] = result[y*width+x]
		}

		colFFT.Coefficients(colOutput, colInput)

		for y := 0; y < height; y++ {
			result[y*width+x] = colOutput[y]
		}
	}

	return result
}

// shift2D moves the zero-frequency sample to (width/2, height/2).
func shift2D(data []float64, width, height int) []float64 {
	shifted := make([]float64, len(data))
	for y := 0; y < height; y++ {
		sy := (y + height/2) % height
		for x := 0; x < width; x++ {
			sx := (x + width/2) % width
			shifted[sy*width+sx] = data[y*width+x]
		}
	}
	return shifted
}
