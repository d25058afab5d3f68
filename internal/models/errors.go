package models

import (
	"errors"
	"fmt"
)

// ErrAggregationShapeMismatch is returned when profiles of a group cannot be
// brought onto a common frequency axis.
var ErrAggregationShapeMismatch = errors.New("aggregation shape mismatch")

// InvalidROIError reports an ROI that does not fit inside its image.
type InvalidROIError struct {
	ROI    ROI
	Width  int
	Height int
	Reason string
}

func (e *InvalidROIError) Error() string {
	return fmt.Sprintf("invalid ROI %s for %dx%d image: %s", e.ROI, e.Width, e.Height, e.Reason)
}

// DegenerateInputError reports input on which a computation is undefined,
// e.g. normalization of a constant array or the mean of an empty group.
type DegenerateInputError struct {
	Op     string
	Reason string
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("%s: degenerate input: %s", e.Op, e.Reason)
}

// Degenerate builds a DegenerateInputError.
func Degenerate(op, format string, args ...interface{}) error {
	return &DegenerateInputError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
