// Command validate performs integrity checks on a study data set before a
// modeling run: the observation CSV, the four seasonal grid CSVs, and the
// consistency between them. It verifies schema, label values, covariate
// completeness, covariate parity across files, and coordinate sanity.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -observations data/observations.csv \
//	  -grid-dir data/grids
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/globicephala/sdm/internal/dataset"
	"github.com/globicephala/sdm/internal/domain"
)

// Coordinate sanity bounds: wide enough for any marine study area, tight
// enough to catch swapped or unprojected columns.
const (
	minLongitude = -180
	maxLongitude = 180
	minLatitude  = -90
	maxLatitude  = 90

	// UTM eastings and northings are positive metres; a degree value in an
	// x/y column lands far below this.
	minProjected = 1000
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	observations := flag.String("observations", "", "path to the observation CSV")
	gridDir := flag.String("grid-dir", "", "directory containing grid_<season>.csv files")
	flag.Parse()

	if *observations == "" || *gridDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*observations, *gridDir); code != 0 {
		os.Exit(code)
	}
}

func run(observationsPath, gridDir string) int {
	fmt.Println("=== Study Data Integrity Validation ===")
	fmt.Println()

	obs, err := dataset.LoadObservations(observationsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load observations: %v\n", err)
		return 1
	}

	grids := make(map[domain.Season]*dataset.Frame, len(domain.Seasons()))
	for _, season := range domain.Seasons() {
		path := filepath.Join(gridDir, fmt.Sprintf("grid_%s.csv", season))
		grid, err := dataset.LoadGrid(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load %s grid: %v\n", season, err)
			return 1
		}
		grids[season] = grid
	}

	phases := []*phase{
		validateObservationSchema(obs),
		validateCompleteness(obs, grids),
		validateCovariateParity(obs, grids),
		validateCoordinates(obs, grids),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	gridRows := 0
	for _, grid := range grids {
		gridRows += grid.Len()
	}
	fmt.Println()
	fmt.Printf("Records: %d observations, %d grid cells across %d seasons\n",
		obs.Len(), gridRows, len(grids))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Observation Schema ──
// The loader already enforces the canonical columns; this phase checks the
// values: binary labels, unique IDs, no all-missing covariates.

func validateObservationSchema(obs *dataset.Observations) *phase {
	p := &phase{name: "Phase 1: Observation Schema"}

	labels := obs.Col(domain.ColPresence)
	for i, v := range labels {
		if math.IsNaN(v) {
			continue
		}
		if v != 0 && v != 1 {
			p.errorf("row %d: %s is %g, want 0 or 1", i+2, domain.ColPresence, v)
		}
	}

	seen := make(map[string]int, len(obs.IDs))
	for i, id := range obs.IDs {
		if id == "" {
			p.errorf("row %d: empty %s", i+2, domain.ColID)
			continue
		}
		if first, ok := seen[id]; ok {
			p.errorf("row %d: duplicate %s %q (first seen on row %d)", i+2, domain.ColID, id, first)
			continue
		}
		seen[id] = i + 2
	}

	for _, cov := range domain.Covariates() {
		if obs.MissingCount(cov) == obs.Len() {
			p.errorf("covariate %s has no usable values", cov)
		}
	}
	return p
}

// ── Phase 2: Completeness ──
// Missing covariate cells are legal but shrink the fitting set; flag any
// column missing more than half its values.

func validateCompleteness(obs *dataset.Observations, grids map[domain.Season]*dataset.Frame) *phase {
	p := &phase{name: "Phase 2: Covariate Completeness"}

	for _, cov := range domain.Covariates() {
		missing := obs.MissingCount(cov)
		frac := float64(missing) / float64(obs.Len())
		if frac > 0.5 {
			p.errorf("observations: %s missing %d/%d values (%.0f%%)",
				cov, missing, obs.Len(), frac*100)
		} else if missing > 0 {
			fmt.Printf("  Note: observations %s missing %d/%d values\n", cov, missing, obs.Len())
		}
	}

	for _, season := range domain.Seasons() {
		grid := grids[season]
		for _, cov := range domain.Covariates() {
			if !grid.Has(cov) {
				continue
			}
			missing := grid.MissingCount(cov)
			frac := float64(missing) / float64(grid.Len())
			if frac > 0.5 {
				p.errorf("%s grid: %s missing %d/%d cells (%.0f%%)",
					season, cov, missing, grid.Len(), frac*100)
			}
		}
	}
	return p
}

// ── Phase 3: Covariate Parity ──
// Every grid must carry the covariates a model fitted on the observations
// will ask for; a missing column fails the prediction step outright.

func validateCovariateParity(obs *dataset.Observations, grids map[domain.Season]*dataset.Frame) *phase {
	p := &phase{name: "Phase 3: Observation/Grid Parity"}

	for _, season := range domain.Seasons() {
		grid := grids[season]
		for _, cov := range domain.Covariates() {
			if obs.Has(cov) && !grid.Has(cov) {
				p.errorf("%s grid: missing covariate column %s", season, cov)
			}
		}
	}
	return p
}

// ── Phase 4: Coordinates ──
// Observations carry geographic lon/lat, grids carry projected x/y. A value
// in the wrong range usually means swapped or mislabeled columns.

func validateCoordinates(obs *dataset.Observations, grids map[domain.Season]*dataset.Frame) *phase {
	p := &phase{name: "Phase 4: Coordinate Sanity"}

	lons, lats := obs.Col(domain.ColLon), obs.Col(domain.ColLat)
	for i := range lons {
		if math.IsNaN(lons[i]) || math.IsNaN(lats[i]) {
			p.errorf("observations row %d: missing coordinates", i+2)
			continue
		}
		if lons[i] < minLongitude || lons[i] > maxLongitude {
			p.errorf("observations row %d: longitude %g out of range", i+2, lons[i])
		}
		if lats[i] < minLatitude || lats[i] > maxLatitude {
			p.errorf("observations row %d: latitude %g out of range", i+2, lats[i])
		}
	}

	for _, season := range domain.Seasons() {
		grid := grids[season]
		xs, ys := grid.Col(domain.ColX), grid.Col(domain.ColY)
		for i := range xs {
			if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
				p.errorf("%s grid row %d: missing coordinates", season, i+2)
				continue
			}
			if math.Abs(xs[i]) < minProjected && math.Abs(ys[i]) < minProjected {
				p.errorf("%s grid row %d: x=%g y=%g look unprojected", season, i+2, xs[i], ys[i])
			}
		}
	}
	return p
}
