// Package visualization renders 2D noise power spectra as preview images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"npsanalyzer/pkg/spectral"
)

// Viewer renders one centred 2D NPS map
type Viewer struct {
	// nps holds the 2D NPS samples in row-major order
	nps []float64

	// dimensions of the map
	width  int
	height int
}

// NewViewer creates a viewer for a row-major 2D NPS map
func NewViewer(nps []float64, width, height int) *Viewer {
	return &Viewer{
		nps:    nps,
		width:  width,
		height: height,
	}
}

// Render normalizes the map to the full 16-bit gray range. A constant map cannot be
// normalized and yields a DegenerateInputError.
func (v *Viewer) Render() (*image.Gray16, error) {
	if v.width*v.height != len(v.nps) || len(v.nps) == 0 {
		return nil, fmt.Errorf("map of %d samples does not match %dx%d", len(v.nps), v.width, v.height)
	}

	norm, err := spectral.Normalize(v.nps)
	if err != nil {
		return nil, err
	}

	img := image.NewGray16(image.Rect(0, 0, v.width, v.height))
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(norm[y*v.width+x]*65535 + 0.5)})
		}
	}
	return img, nil
}

// Scale resizes an image to size x size pixels with bilinear interpolation.
func Scale(src image.Image, size int) image.Image {
	dst := image.NewGray16(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// SaveImage writes an image as JPEG when the file name ends in .jpg or .jpeg,
// as PNG otherwise.
func SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		return png.Encode(file, img)
	}
}

// Previewer writes scaled 2D NPS previews into a directory.
type Previewer struct {
	dir  string
	size int
}

// NewPreviewer creates a previewer writing size x size images into dir
func NewPreviewer(dir string, size int) *Previewer {
	return &Previewer{dir: dir, size: size}
}

// Save renders the 2D NPS of one ROI and writes it as NPS_2D__<name>.png.
// It returns the written path.
func (p *Previewer) Save(name string, res *spectral.Result) (string, error) {
	img, err := NewViewer(res.NPS2D, res.Width, res.Height).Render()
	if err != nil {
		return "", fmt.Errorf("preview %s: %w", name, err)
	}

	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return "", err
	}

	filename := filepath.Join(p.dir, "NPS_2D__"+sanitize(name)+".png")
	if err := SaveImage(Scale(img, p.size), filename); err != nil {
		return "", fmt.Errorf("preview %s: %w", name, err)
	}
	return filename, nil
}

// sanitize maps path separators and other unsafe characters to underscores
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ', '(', ')', ',':
			return '_'
		}
		return r
	}, name)
}
