package dataset

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/globicephala/sdm/internal/domain"
)

// missingSentinels are the cell values treated as missing data in input
// CSVs. Comparison is case-insensitive.
var missingSentinels = map[string]bool{
	"":     true,
	"na":   true,
	"nan":  true,
	"null": true,
}

// LoadObservations reads an observation CSV. The header must contain every
// column named by domain.ObservationColumns; extra columns are carried
// through untouched. The presence column is validated to hold only 0, 1,
// or missing; anything else is corrupt data, not a value to coerce.
func LoadObservations(path string) (*Observations, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	idx, err := indexColumns(header, domain.ObservationColumns())
	if err != nil {
		return nil, fmt.Errorf("observations %s: %w", path, err)
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = strings.TrimSpace(row[idx[domain.ColID]])
	}

	frame, err := buildFrame(header, rows, idx, domain.ColID)
	if err != nil {
		return nil, fmt.Errorf("observations %s: %w", path, err)
	}

	if err := validateBinary(frame.Col(domain.ColPresence)); err != nil {
		return nil, fmt.Errorf("observations %s: column %q: %w", path, domain.ColPresence, err)
	}

	return &Observations{IDs: ids, Frame: frame}, nil
}

// LoadGrid reads a seasonal prediction grid CSV. Only the coordinate
// columns are mandatory here; covariate coverage is the predictor's
// concern, since it depends on which covariates the model was fit on.
func LoadGrid(path string) (*Frame, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	idx, err := indexColumns(header, []string{domain.ColX, domain.ColY})
	if err != nil {
		return nil, fmt.Errorf("grid %s: %w", path, err)
	}

	frame, err := buildFrame(header, rows, idx, "")
	if err != nil {
		return nil, fmt.Errorf("grid %s: %w", path, err)
	}
	return frame, nil
}

// WriteGrid writes a frame as CSV, identical in shape to an input grid.
// Missing values are written as "NA".
func WriteGrid(path string, f *Frame) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write grid: %w", err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	cols := f.Columns()
	if err := w.Write(cols); err != nil {
		return fmt.Errorf("write grid header: %w", err)
	}

	record := make([]string, len(cols))
	for i := 0; i < f.Len(); i++ {
		for j, c := range cols {
			v := f.Col(c)[i]
			if math.IsNaN(v) {
				record[j] = "NA"
			} else {
				record[j] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write grid row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush grid: %w", err)
	}
	return nil
}

func readCSV(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s is empty: %w", path, domain.ErrDataQuality)
	}

	header = make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return header, records[1:], nil
}

// indexColumns maps required column names to their positions in the
// header, failing with a schema error on the first absence.
func indexColumns(header, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	for _, c := range required {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("required column %q is missing: %w", c, domain.ErrSchema)
		}
	}
	return idx, nil
}

// buildFrame parses every header column except skipCol as float64. A cell
// that is neither numeric nor a missing sentinel is a schema (type) error.
func buildFrame(header []string, rows [][]string, idx map[string]int, skipCol string) (*Frame, error) {
	frame := NewFrame(len(rows))
	for _, col := range header {
		if col == skipCol {
			continue
		}
		pos := idx[col]
		vals := make([]float64, len(rows))
		for i, row := range rows {
			if pos >= len(row) {
				return nil, fmt.Errorf("row %d has %d fields, header has %d: %w",
					i+1, len(row), len(header), domain.ErrSchema)
			}
			v, err := parseCell(row[pos])
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i+1, col, err)
			}
			vals[i] = v
		}
		if err := frame.SetCol(col, vals); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if missingSentinels[strings.ToLower(s)] {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("value %q is not numeric: %w", s, domain.ErrSchema)
	}
	return v, nil
}

// validateBinary checks that every non-missing label is exactly 0 or 1.
func validateBinary(labels []float64) error {
	for i, v := range labels {
		if math.IsNaN(v) {
			continue
		}
		if v != 0 && v != 1 {
			return fmt.Errorf("row %d holds non-binary label %g: %w", i+1, v, domain.ErrDataQuality)
		}
	}
	return nil
}
