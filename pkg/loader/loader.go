// Package loader supplies pixel arrays and pixel spacing for image identifiers.
// DICOM files are decoded with github.com/suyashkumar/dicom, raster images
// (PNG, JPEG, TIFF) with the image package and golang.org/x/image.
package loader

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"npsanalyzer/internal/models"
)

// PixelSource loads the pixel array of an image.
// The returned spacing has Specified == false when the image carries no spacing metadata.
type PixelSource interface {
	Load(imageID string) (*models.PixelArray, error)
}

// rasterExtensions are decoded as raster images; everything else is read as DICOM
var rasterExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
}

// FileLoader reads images from the file system, dispatching on the file extension.
type FileLoader struct{}

// NewFileLoader creates a file system pixel source
func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Load reads the image at path.
func (l *FileLoader) Load(path string) (*models.PixelArray, error) {
	if rasterExtensions[strings.ToLower(filepath.Ext(path))] {
		return LoadRaster(path)
	}
	return LoadDICOM(path)
}

// MemorySource serves pre-loaded pixel arrays keyed by image identifier.
type MemorySource map[string]*models.PixelArray

// Load returns the stored array.
func (m MemorySource) Load(imageID string) (*models.PixelArray, error) {
	arr, ok := m[imageID]
	if !ok {
		return nil, fmt.Errorf("image %q not found", imageID)
	}
	return arr, nil
}

// toInt16 truncates toward zero and saturates at the int16 range
func toInt16(v float64) float64 {
	return math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Trunc(v)))
}
