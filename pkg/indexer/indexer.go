// Package indexer reconciles the flat ROI assignment map with the directory
// hierarchy into a study -> series -> image -> ROI index.
package indexer

import (
	"path/filepath"
	"sort"
	"strings"

	"npsanalyzer/internal/models"
)

// Diagnostics collects the ROI entries the indexer could not place.
type Diagnostics struct {
	// Unmatched lists ROI assignment keys found in no series
	Unmatched []string

	// Merged lists ROI assignment keys whose image was already indexed under
	// another key; their ROIs were appended to the existing entry
	Merged []string
}

// UnmatchedCount returns the number of dropped ROI entries.
func (d Diagnostics) UnmatchedCount() int { return len(d.Unmatched) }

// location is one image path of the hierarchy in traversal order
type location struct {
	study  string
	series string
	path   string
	global int // position in the whole traversal
}

// catalog is a precomputed lookup over the hierarchy paths
type catalog struct {
	all    []location
	byPath map[string]location
	byName map[string][]location
}

func newCatalog(h models.DirectoryHierarchy) *catalog {
	c := &catalog{
		byPath: make(map[string]location),
		byName: make(map[string][]location),
	}
	for _, study := range h.StudyIDs() {
		for _, series := range h.SeriesIDs(study) {
			for _, path := range h[study][series] {
				loc := location{study: study, series: series, path: path, global: len(c.all)}
				c.all = append(c.all, loc)
				if _, dup := c.byPath[path]; !dup {
					c.byPath[path] = loc
				}
				name := filepath.Base(path)
				c.byName[name] = append(c.byName[name], loc)
			}
		}
	}
	return c
}

// find resolves an image identifier to the first matching hierarchy entry.
// An exact path wins over a file name match, which wins over a plain substring match.
func (c *catalog) find(imageID string) (location, bool) {
	if loc, ok := c.byPath[imageID]; ok {
		return loc, true
	}
	if locs := c.byName[imageID]; len(locs) > 0 {
		return locs[0], true
	}
	for _, loc := range c.all {
		if strings.Contains(loc.path, imageID) {
			return loc, true
		}
	}
	return location{}, false
}

// Build derives the hierarchical ROI index. Every (study, series, image) triple in the
// result exists in both inputs; ROI entries that match no hierarchy path are reported in
// the diagnostics instead of the index. Images of a series keep hierarchy order.
func Build(hierarchy models.DirectoryHierarchy, assignments models.ROIAssignments) (models.Index, Diagnostics) {
	cat := newCatalog(hierarchy)
	index := make(models.Index)
	var diag Diagnostics

	keys := make([]string, 0, len(assignments))
	for k := range assignments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	type placed struct {
		loc   location
		entry models.ImageROIs
	}
	byPath := make(map[string]*placed)
	var order []*placed

	for _, imageID := range keys {
		loc, ok := cat.find(imageID)
		if !ok {
			diag.Unmatched = append(diag.Unmatched, imageID)
			continue
		}

		rois := append([]models.ROI(nil), assignments[imageID]...)
		if p, seen := byPath[loc.path]; seen && p.loc.study == loc.study && p.loc.series == loc.series {
			p.entry.ROIs = append(p.entry.ROIs, rois...)
			diag.Merged = append(diag.Merged, imageID)
			continue
		}

		p := &placed{loc: loc, entry: models.ImageROIs{ImageID: imageID, Path: loc.path, ROIs: rois}}
		byPath[loc.path] = p
		order = append(order, p)
	}

	sort.SliceStable(order, func(i, j int) bool { return order[i].loc.global < order[j].loc.global })
	for _, p := range order {
		images := index.Series(p.loc.study, p.loc.series)
		index.Put(p.loc.study, p.loc.series, append(images, p.entry))
	}

	return index, diag
}
