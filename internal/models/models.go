package models

import (
	"fmt"
	"math"
	"sort"
)

// ROI is a rectangular region of interest in image pixel coordinates.
// X0/Y0 is the upper left corner, X1/Y1 the lower right corner (exclusive).
type ROI struct {
	X0 int `yaml:"x0"`
	Y0 int `yaml:"y0"`
	X1 int `yaml:"x1"`
	Y1 int `yaml:"y1"`
}

// Width returns the ROI width in pixels
func (r ROI) Width() int { return r.X1 - r.X0 }

// Height returns the ROI height in pixels
func (r ROI) Height() int { return r.Y1 - r.Y0 }

func (r ROI) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", r.X0, r.Y0, r.X1, r.Y1)
}

// Validate checks the ROI against the dimensions of the image it belongs to.
func (r ROI) Validate(width, height int) error {
	switch {
	case r.X1 <= r.X0 || r.Y1 <= r.Y0:
		return &InvalidROIError{ROI: r, Width: width, Height: height, Reason: "empty rectangle"}
	case r.X0 < 0 || r.Y0 < 0:
		return &InvalidROIError{ROI: r, Width: width, Height: height, Reason: "negative origin"}
	case r.X1 > width || r.Y1 > height:
		return &InvalidROIError{ROI: r, Width: width, Height: height, Reason: "exceeds image bounds"}
	}
	return nil
}

// PixelSpacing is the physical size of one pixel in mm.
type PixelSpacing struct {
	// Row is the spacing between adjacent rows (DICOM PixelSpacing[0])
	Row float64 `yaml:"row"`

	// Col is the spacing between adjacent columns (DICOM PixelSpacing[1])
	Col float64 `yaml:"col"`

	// Specified is false when the image source carried no spacing metadata
	Specified bool `yaml:"specified"`
}

// Valid reports whether the spacing can be used to build a frequency axis.
func (s PixelSpacing) Valid() bool {
	return s.Specified && s.Row > 0 && !math.IsInf(s.Row, 0) && !math.IsNaN(s.Row)
}

// UniformSpacing returns a specified spacing with identical row and column size.
func UniformSpacing(mm float64) PixelSpacing {
	return PixelSpacing{Row: mm, Col: mm, Specified: true}
}

// PixelArray is a 2D grid of signed intensity samples of one image
type PixelArray struct {
	// Data holds the samples in row-major order
	Data []float64

	// Width and Height are the dimensions in pixels
	Width  int
	Height int

	// Spacing is the physical pixel size reported by the image source
	Spacing PixelSpacing
}

// NewPixelArray allocates a zeroed pixel array.
func NewPixelArray(width, height int) *PixelArray {
	return &PixelArray{
		Data:   make([]float64, width*height),
		Width:  width,
		Height: height,
	}
}

// At returns the sample at column x, row y.
func (p *PixelArray) At(x, y int) float64 {
	return p.Data[y*p.Width+x]
}

// Set stores a sample at column x, row y.
func (p *PixelArray) Set(x, y int, v float64) {
	p.Data[y*p.Width+x] = v
}

// Crop copies the ROI out of the array. The spacing is carried over.
func (p *PixelArray) Crop(roi ROI) (*PixelArray, error) {
	if err := roi.Validate(p.Width, p.Height); err != nil {
		return nil, err
	}

	sub := NewPixelArray(roi.Width(), roi.Height())
	sub.Spacing = p.Spacing
	for y := 0; y < sub.Height; y++ {
		src := (roi.Y0+y)*p.Width + roi.X0
		copy(sub.Data[y*sub.Width:(y+1)*sub.Width], p.Data[src:src+sub.Width])
	}
	return sub, nil
}

// ROIAssignments maps an image identifier to the ROIs selected on it,
// in selection order.
type ROIAssignments map[string][]ROI

// DirectoryHierarchy maps study -> series -> ordered image paths.
type DirectoryHierarchy map[string]map[string][]string

// StudyIDs returns the study identifiers in sorted order.
func (h DirectoryHierarchy) StudyIDs() []string {
	return sortedKeys(h)
}

// SeriesIDs returns the series identifiers of a study in sorted order.
func (h DirectoryHierarchy) SeriesIDs(study string) []string {
	return sortedKeys(h[study])
}

// ImageROIs is one image entry of the hierarchical index
type ImageROIs struct {
	// ImageID is the key of the ROI assignment map
	ImageID string `yaml:"imageId"`

	// Path is the hierarchy entry ImageID was matched against
	Path string `yaml:"path"`

	// ROIs are the rectangles selected on the image
	ROIs []ROI `yaml:"rois"`
}

// Index is the hierarchical ROI index: study -> series -> images.
// Images of a series keep the order of the directory hierarchy.
type Index map[string]map[string][]ImageROIs

// Series returns the image list of a series.
func (idx Index) Series(study, series string) []ImageROIs {
	return idx[study][series]
}

// Put stores the image list of a series, creating the study entry when missing.
func (idx Index) Put(study, series string, images []ImageROIs) {
	idx.studyEntry(study)[series] = images
}

func (idx Index) studyEntry(study string) map[string][]ImageROIs {
	entry, ok := idx[study]
	if !ok {
		entry = make(map[string][]ImageROIs)
		idx[study] = entry
	}
	return entry
}

// Lookup returns the ROIs stored for an image of a series.
func (idx Index) Lookup(study, series, imageID string) ([]ROI, bool) {
	for _, img := range idx[study][series] {
		if img.ImageID == imageID {
			return img.ROIs, true
		}
	}
	return nil, false
}

// StudyIDs returns the indexed studies in sorted order.
func (idx Index) StudyIDs() []string {
	return sortedKeys(idx)
}

// SeriesIDs returns the indexed series of a study in sorted order.
func (idx Index) SeriesIDs(study string) []string {
	return sortedKeys(idx[study])
}

// ROICount returns the total number of indexed ROIs.
func (idx Index) ROICount() int {
	n := 0
	for _, study := range idx {
		for _, images := range study {
			for _, img := range images {
				n += len(img.ROIs)
			}
		}
	}
	return n
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Profile is a 1D NPS profile: values over an ascending frequency axis
// in line pairs per cm. len(Values) == len(Frequencies).
type Profile struct {
	Values      []float64 `yaml:"values,flow"`
	Frequencies []float64 `yaml:"frequencies,flow"`
}

// Len returns the number of samples
func (p Profile) Len() int { return len(p.Values) }

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	return Profile{
		Values:      append([]float64(nil), p.Values...),
		Frequencies: append([]float64(nil), p.Frequencies...),
	}
}

// RawProfile is the radially averaged NPS of a single ROI before resampling
type RawProfile struct {
	Profile `yaml:",inline"`

	// AUC is the sum of the 1D profile values
	AUC float64 `yaml:"auc"`

	// Integral2D is the sum of all 2D NPS samples
	Integral2D float64 `yaml:"integral2D"`
}

// Deviation is a bandwidth distance in line pairs per cm that may be undefined
// when the profile never crosses the threshold.
type Deviation struct {
	Value   float64
	Defined bool
}

// Undefined is the sentinel for a threshold crossing that was never found.
var Undefined = Deviation{}

// DefinedDeviation wraps a measured distance.
func DefinedDeviation(v float64) Deviation {
	return Deviation{Value: v, Defined: true}
}

func (d Deviation) String() string {
	if !d.Defined {
		return "undefined"
	}
	return fmt.Sprintf("%g", d.Value)
}

// MarshalYAML writes the value, or the string "undefined".
func (d Deviation) MarshalYAML() (interface{}, error) {
	if !d.Defined {
		return "undefined", nil
	}
	return d.Value, nil
}

// PeakDescriptor describes the dominant peak of a profile and the 60% bandwidth
// deviations around it.
type PeakDescriptor struct {
	PeakValue      float64   `yaml:"peakValue"`
	PeakFrequency  float64   `yaml:"peakFrequency"`
	LeftDeviation  Deviation `yaml:"leftDeviation"`
	RightDeviation Deviation `yaml:"rightDeviation"`

	// StrongPeak is false when no collected peak reached 10% of the global maximum
	StrongPeak bool `yaml:"strongPeak"`
}

// PixelStats holds the first-order statistics of one ROI
type PixelStats struct {
	MeanIntensity     float64 `yaml:"meanIntensity"`
	StandardDeviation float64 `yaml:"standardDeviation"`
}
