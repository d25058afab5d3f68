package loader

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"npsanalyzer/internal/models"
)

// LoadDICOM parses a DICOM file and returns the first frame with the modality
// rescale applied. PixelSpacing is reported as unspecified when the tag is missing
// or malformed.
func LoadDICOM(path string) (*models.PixelArray, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DICOM %s: %w", path, err)
	}

	elem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("%s: no pixel data: %w", path, err)
	}
	info, ok := elem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok || len(info.Frames) == 0 {
		return nil, fmt.Errorf("%s: pixel data holds no frames", path)
	}
	frame := info.Frames[0]
	if frame.Encapsulated {
		return nil, fmt.Errorf("%s: encapsulated (compressed) pixel data is not supported", path)
	}

	native := frame.NativeData
	width, height := native.Cols(), native.Rows()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%s: empty frame", path)
	}

	slope := floatTag(ds, tag.RescaleSlope, 1)
	intercept := floatTag(ds, tag.RescaleIntercept, 0)
	signed := intTag(ds, tag.PixelRepresentation, 0) == 1
	bits := native.BitsPerSample()

	arr := models.NewPixelArray(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			px, err := native.GetPixel(x, y)
			if err != nil {
				return nil, fmt.Errorf("%s: pixel (%d,%d): %w", path, x, y, err)
			}
			v := px[0]
			if signed && bits > 0 && bits < 64 && v >= 1<<(bits-1) {
				v -= 1 << bits
			}
			arr.Set(x, y, float64(v)*slope+intercept)
		}
	}

	arr.Spacing = spacing(ds)
	return arr, nil
}

// spacing reads PixelSpacing (row, column) in mm
func spacing(ds dicom.Dataset) models.PixelSpacing {
	values, err := stringsTag(ds, tag.PixelSpacing)
	if err != nil || len(values) == 0 {
		return models.PixelSpacing{}
	}

	row, err := strconv.ParseFloat(strings.TrimSpace(values[0]), 64)
	if err != nil {
		return models.PixelSpacing{}
	}
	col := row
	if len(values) > 1 {
		if c, err := strconv.ParseFloat(strings.TrimSpace(values[1]), 64); err == nil {
			col = c
		}
	}

	s := models.PixelSpacing{Row: row, Col: col, Specified: true}
	if !s.Valid() {
		return models.PixelSpacing{}
	}
	return s
}

func stringsTag(ds dicom.Dataset, t tag.Tag) ([]string, error) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return nil, err
	}
	values, ok := elem.Value.GetValue().([]string)
	if !ok {
		return nil, errors.New("not a string element")
	}
	return values, nil
}

func floatTag(ds dicom.Dataset, t tag.Tag, fallback float64) float64 {
	values, err := stringsTag(ds, t)
	if err != nil || len(values) == 0 {
		return fallback
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(values[0]), 64)
	if err != nil {
		return fallback
	}
	return v
}

func intTag(ds dicom.Dataset, t tag.Tag, fallback int) int {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return fallback
	}
	values, ok := elem.Value.GetValue().([]int)
	if !ok || len(values) == 0 {
		return fallback
	}
	return values[0]
}
