// Package dataset provides the column-major numeric table the modeling
// workflow runs on, plus CSV loading and writing for observation tables and
// seasonal prediction grids.
package dataset

import (
	"fmt"
	"math"

	"github.com/globicephala/sdm/internal/domain"
)

// Frame is a column-major table of float64 values with ordered column
// names. NaN encodes a missing value. A Frame is cheap to copy shallowly;
// mutating methods return a new Frame and leave the receiver intact.
type Frame struct {
	cols []string
	data map[string][]float64
	n    int
}

// NewFrame creates an empty frame with n rows and no columns.
func NewFrame(n int) *Frame {
	return &Frame{data: make(map[string][]float64), n: n}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.n }

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.cols))
	copy(out, f.cols)
	return out
}

// Has reports whether a column exists.
func (f *Frame) Has(col string) bool {
	_, ok := f.data[col]
	return ok
}

// Col returns the values of a column, or nil if it does not exist. The
// returned slice is the backing storage; callers must not modify it.
func (f *Frame) Col(col string) []float64 {
	return f.data[col]
}

// SetCol adds or replaces a column in place. The values slice is adopted,
// not copied. Length mismatches are schema errors.
func (f *Frame) SetCol(col string, values []float64) error {
	if len(values) != f.n {
		return fmt.Errorf("column %q has %d values, frame has %d rows: %w",
			col, len(values), f.n, domain.ErrSchema)
	}
	if _, exists := f.data[col]; !exists {
		f.cols = append(f.cols, col)
	}
	f.data[col] = values
	return nil
}

// WithColumn returns a copy of the frame with one column added or
// replaced. The receiver is not modified.
func (f *Frame) WithColumn(col string, values []float64) (*Frame, error) {
	out := f.clone()
	if err := out.SetCol(col, values); err != nil {
		return nil, err
	}
	return out, nil
}

// Require returns a schema error naming the first listed column that is
// absent from the frame, or nil if all are present.
func (f *Frame) Require(cols ...string) error {
	for _, c := range cols {
		if !f.Has(c) {
			return fmt.Errorf("required column %q is missing: %w", c, domain.ErrSchema)
		}
	}
	return nil
}

// CompleteRows returns a new frame keeping only rows with no missing value
// in any of the listed columns. All columns survive the filter. An empty
// result is a data-quality error: there is nothing left to fit on.
func (f *Frame) CompleteRows(cols ...string) (*Frame, error) {
	if err := f.Require(cols...); err != nil {
		return nil, err
	}

	keep := make([]int, 0, f.n)
	for i := 0; i < f.n; i++ {
		ok := true
		for _, c := range cols {
			if math.IsNaN(f.data[c][i]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}

	if len(keep) == 0 {
		return nil, fmt.Errorf("no complete rows remain after filtering on %d columns: %w",
			len(cols), domain.ErrDataQuality)
	}

	out := NewFrame(len(keep))
	for _, c := range f.cols {
		src := f.data[c]
		vals := make([]float64, len(keep))
		for j, i := range keep {
			vals[j] = src[i]
		}
		out.cols = append(out.cols, c)
		out.data[c] = vals
	}
	return out, nil
}

// MissingCount returns the number of NaN values in a column.
func (f *Frame) MissingCount(col string) int {
	count := 0
	for _, v := range f.data[col] {
		if math.IsNaN(v) {
			count++
		}
	}
	return count
}

func (f *Frame) clone() *Frame {
	out := NewFrame(f.n)
	for _, c := range f.cols {
		vals := make([]float64, f.n)
		copy(vals, f.data[c])
		out.cols = append(out.cols, c)
		out.data[c] = vals
	}
	return out
}

// Observations pairs the numeric frame with the per-row station
// identifiers, which are strings and therefore live outside the frame.
type Observations struct {
	IDs []string
	*Frame
}
