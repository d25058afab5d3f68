package loader

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/tiff"

	"npsanalyzer/internal/models"
)

// Luma weights for colour to gray conversion
const (
	redWeight   = 0.2989
	greenWeight = 0.5870
	blueWeight  = 0.1140
)

// LoadRaster decodes a PNG, JPEG or TIFF image into a gray pixel array.
// Raster formats carry no pixel spacing, so the spacing is unspecified.
func LoadRaster(path string) (*models.PixelArray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	arr := FromImage(img)
	if arr.Width == 0 || arr.Height == 0 {
		return nil, fmt.Errorf("%s: empty %s image", path, format)
	}
	return arr, nil
}

// FromImage converts a decoded image to signed 16-bit gray samples. Gray images keep
// their native sample values, colour images are reduced with the luma weights on
// 8-bit channels.
func FromImage(img image.Image) *models.PixelArray {
	b := img.Bounds()
	arr := models.NewPixelArray(b.Dx(), b.Dy())

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var v float64
			switch src := img.(type) {
			case *image.Gray:
				v = float64(src.GrayAt(x, y).Y)
			case *image.Gray16:
				v = float64(src.Gray16At(x, y).Y)
			default:
				r, g, bl, _ := img.At(x, y).RGBA()
				v = redWeight*float64(r>>8) + greenWeight*float64(g>>8) + blueWeight*float64(bl>>8)
			}
			arr.Set(x-b.Min.X, y-b.Min.Y, toInt16(v))
		}
	}
	return arr
}
