package visualization

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"npsanalyzer/internal/models"
	"npsanalyzer/pkg/spectral"
)

// createTestMap builds a width x height map with increasing values
func createTestMap(width, height int) []float64 {
	nps := make([]float64, width*height)
	for i := range nps {
		nps[i] = float64(i)
	}
	return nps
}

// TestNewViewer verifies that a new viewer is created with the correct parameters
func TestNewViewer(t *testing.T) {
	width, height := 6, 4
	nps := createTestMap(width, height)

	viewer := NewViewer(nps, width, height)

	if viewer.width != width {
		t.Errorf("Expected width %d, got %d", width, viewer.width)
	}
	if viewer.height != height {
		t.Errorf("Expected height %d, got %d", height, viewer.height)
	}
	if len(viewer.nps) != len(nps) {
		t.Errorf("Expected map length %d, got %d", len(nps), len(viewer.nps))
	}
}

// TestRender verifies the normalization onto the 16-bit range
func TestRender(t *testing.T) {
	width, height := 4, 3
	img, err := NewViewer(createTestMap(width, height), width, height).Render()
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if img.Bounds().Dx() != width || img.Bounds().Dy() != height {
		t.Errorf("Expected %dx%d image, got %v", width, height, img.Bounds())
	}
	if got := img.Gray16At(0, 0).Y; got != 0 {
		t.Errorf("Expected minimum at 0, got %d", got)
	}
	if got := img.Gray16At(width-1, height-1).Y; got != 65535 {
		t.Errorf("Expected maximum at 65535, got %d", got)
	}
}

func TestRenderConstantMapIsDegenerate(t *testing.T) {
	_, err := NewViewer(make([]float64, 9), 3, 3).Render()

	var degenerate *models.DegenerateInputError
	if !errors.As(err, &degenerate) {
		t.Errorf("Expected DegenerateInputError, got %v", err)
	}
}

func TestRenderRejectsShapeMismatch(t *testing.T) {
	if _, err := NewViewer(createTestMap(3, 3), 4, 4).Render(); err == nil {
		t.Error("Expected error for mismatched dimensions, got nil")
	}
}

func TestScale(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 5, 3))
	scaled := Scale(img, 16)
	if scaled.Bounds().Dx() != 16 || scaled.Bounds().Dy() != 16 {
		t.Errorf("Expected 16x16, got %v", scaled.Bounds())
	}
}

// TestSaveImage verifies that images are written in the format of the file extension
func TestSaveImage(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	tempDir := t.TempDir()
	img, err := NewViewer(createTestMap(8, 8), 8, 8).Render()
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	for _, name := range []string{"preview.png", "preview.jpg"} {
		filename := filepath.Join(tempDir, name)
		if err := SaveImage(img, filename); err != nil {
			t.Fatalf("Failed to save %s: %v", name, err)
		}
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Saved file does not exist: %s", filename)
		}
	}
}

// TestPreviewerSave verifies the preview of a computed spectrum
func TestPreviewerSave(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	roi := models.NewPixelArray(8, 8)
	for i := range roi.Data {
		roi.Data[i] = float64((i * 7919) % 13)
	}
	res, err := spectral.Compute(roi, 0.5, spectral.Options{})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	outputDir := filepath.Join(t.TempDir(), "nps_2d")
	path, err := NewPreviewer(outputDir, 32).Save("study/series/img1.dcm (0,0,8,8)", res)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if filepath.Dir(path) != outputDir {
		t.Errorf("Preview written outside %s: %s", outputDir, path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open preview: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Preview is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 32 {
		t.Errorf("Expected 32x32 preview, got %v", img.Bounds())
	}
}
