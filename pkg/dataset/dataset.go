// Package dataset builds the directory hierarchy of an image dataset and reads
// and writes ROI assignment files.
package dataset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"npsanalyzer/internal/models"
)

// Scan walks root and groups image files by their directory. The directory holding a
// file is its series, the directory above it is the study; studies are named by their
// path relative to root. A file is an image when its name contains one of extensions
// (case-insensitive) and its path contains none of the exclude substrings. Images of
// a series are in natural order.
func Scan(root string, extensions, exclude []string) (models.DirectoryHierarchy, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input %s is not a directory", root)
	}

	hierarchy := make(models.DirectoryHierarchy)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !matchesAny(d.Name(), extensions) || containsAny(path, exclude) {
			return nil
		}

		dir := filepath.Dir(path)
		series := filepath.Base(dir)
		study, err := filepath.Rel(root, filepath.Dir(dir))
		if err != nil {
			return err
		}

		if hierarchy[study] == nil {
			hierarchy[study] = make(map[string][]string)
		}
		hierarchy[study][series] = append(hierarchy[study][series], path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	for _, study := range hierarchy {
		for _, files := range study {
			sort.Slice(files, func(i, j int) bool { return naturalLess(files[i], files[j]) })
		}
	}
	return hierarchy, nil
}

func matchesAny(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.Contains(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func containsAny(path string, substrings []string) bool {
	for _, s := range substrings {
		if s != "" && strings.Contains(path, s) {
			return true
		}
	}
	return false
}

// naturalLess compares case-insensitively, treating runs of digits as numbers,
// so that img2 sorts before img10.
func naturalLess(a, b string) bool {
	ra, rb := []rune(strings.ToLower(a)), []rune(strings.ToLower(b))
	i, j := 0, 0
	for i < len(ra) && j < len(rb) {
		if unicode.IsDigit(ra[i]) && unicode.IsDigit(rb[j]) {
			si := i
			for i < len(ra) && unicode.IsDigit(ra[i]) {
				i++
			}
			sj := j
			for j < len(rb) && unicode.IsDigit(rb[j]) {
				j++
			}
			na := strings.TrimLeft(string(ra[si:i]), "0")
			nb := strings.TrimLeft(string(rb[sj:j]), "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}
		if ra[i] != rb[j] {
			return ra[i] < rb[j]
		}
		i++
		j++
	}
	if len(ra)-i != len(rb)-j {
		return len(ra)-i < len(rb)-j
	}
	return a < b
}

// LoadROIAssignments reads a YAML file mapping image identifiers to lists of
// [x0, y0, x1, y1] rectangles.
func LoadROIAssignments(path string) (models.ROIAssignments, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ROI file: %w", err)
	}

	var raw map[string][][]int
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse ROI file: %w", err)
	}

	assignments := make(models.ROIAssignments, len(raw))
	for imageID, rects := range raw {
		rois := make([]models.ROI, 0, len(rects))
		for i, r := range rects {
			if len(r) != 4 {
				return nil, fmt.Errorf("ROI %d of %s: expected 4 coordinates, got %d", i, imageID, len(r))
			}
			rois = append(rois, models.ROI{X0: r[0], Y0: r[1], X1: r[2], Y1: r[3]})
		}
		assignments[imageID] = rois
	}
	return assignments, nil
}

// SaveROIAssignments writes assignments in the format read by LoadROIAssignments.
func SaveROIAssignments(assignments models.ROIAssignments, path string) error {
	raw := make(map[string][][]int, len(assignments))
	for imageID, rois := range assignments {
		rects := make([][]int, len(rois))
		for i, r := range rois {
			rects[i] = []int{r.X0, r.Y0, r.X1, r.Y1}
		}
		raw[imageID] = rects
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal ROIs: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write ROI file: %w", err)
	}
	return nil
}
