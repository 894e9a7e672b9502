// Command genmock generates a synthetic study data set: an observation CSV
// with presence labels drawn from a known logistic relationship, and the
// four seasonal prediction grids. The planted coefficients let tests and
// demo runs check that the fitted models recover the right signal.
//
// Usage:
//
//	go run ./cmd/genmock -out data -rows 500 -seed 42
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/globicephala/sdm/internal/domain"
	"github.com/globicephala/sdm/internal/geo"
)

// Study area: Bay of Biscay and western Iberian shelf.
const (
	minLon = -12.0
	maxLon = 0.0
	minLat = 42.0
	maxLat = 49.0
)

// Planted relationship on standardized covariates. Presence rises with
// chlorophyll and falls as the seafloor deepens; everything else is noise.
const (
	trueIntercept = -0.5
	trueDepthCoef = -1.2
	trueCHLCoef   = 1.5
)

// seasonShift nudges the temperature and chlorophyll fields so the four
// grids differ the way real composites do.
var seasonShift = map[domain.Season]struct{ sst, chl float64 }{
	domain.Winter: {sst: -3, chl: 0.4},
	domain.Spring: {sst: 0, chl: 1.2},
	domain.Summer: {sst: 4, chl: -0.3},
	domain.Autumn: {sst: 1, chl: 0.5},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "data", "output directory")
	rows := flag.Int("rows", 500, "number of observation rows")
	gridSize := flag.Int("grid-size", 40, "cells per grid side")
	seed := flag.Int64("seed", 42, "random seed")
	missingFrac := flag.Float64("missing-frac", 0.05, "fraction of covariate cells left missing")
	flag.Parse()

	if *rows < 10 {
		return fmt.Errorf("-rows must be at least 10, got %d", *rows)
	}
	if *gridSize < 2 {
		return fmt.Errorf("-grid-size must be at least 2, got %d", *gridSize)
	}

	projector, err := geo.NewProjector(geo.DefaultProj4)
	if err != nil {
		return fmt.Errorf("build projector: %w", err)
	}

	rng := rand.New(rand.NewSource(*seed))

	obsPath := filepath.Join(*outDir, "observations.csv")
	presences, err := writeObservations(obsPath, *rows, *missingFrac, rng, projector)
	if err != nil {
		return fmt.Errorf("writing observations: %w", err)
	}
	log.Printf("wrote %s: %d rows, %d presences", obsPath, *rows, presences)

	gridDir := filepath.Join(*outDir, "grids")
	for _, season := range domain.Seasons() {
		path := filepath.Join(gridDir, fmt.Sprintf("grid_%s.csv", season))
		if err := writeGrid(path, season, *gridSize, *missingFrac, rng, projector); err != nil {
			return fmt.Errorf("writing %s grid: %w", season, err)
		}
		log.Printf("wrote %s: %d cells", path, *gridSize**gridSize)
	}

	log.Printf("planted model: logit(p) = %g %+g*depth_std %+g*chl_std",
		trueIntercept, trueDepthCoef, trueCHLCoef)
	return nil
}

// environment is one sampled set of covariate values plus the standardized
// depth and chlorophyll that drive the planted relationship.
type environment struct {
	values   map[string]float64
	depthStd float64
	chlStd   float64
}

// sampleEnvironment draws covariates for one location. Depth deepens moving
// offshore (west), chlorophyll peaks near the coast, temperature follows
// latitude; the remaining covariates are uncorrelated noise.
func sampleEnvironment(lon, lat float64, season domain.Season, rng *rand.Rand) environment {
	offshore := (maxLon - lon) / (maxLon - minLon) // 0 at the coast, 1 at the western edge

	depth := -50 - 4500*offshore + rng.NormFloat64()*150
	chl := 0.3 + 2.5*(1-offshore) + rng.NormFloat64()*0.4
	if chl < 0.01 {
		chl = 0.01
	}
	sst := 22 - 0.8*(lat-minLat) + rng.NormFloat64()*1.5
	sal := 35.2 + rng.NormFloat64()*0.3

	shift := seasonShift[season]
	sst += shift.sst
	chl += shift.chl
	if chl < 0.01 {
		chl = 0.01
	}

	env := environment{values: map[string]float64{
		domain.CovSlope:        math.Abs(rng.NormFloat64()) * 3,
		domain.CovDepth:        depth,
		domain.CovSardineCatch: 200 + rng.Float64()*1800,
		domain.CovCHLDay:       chl,
		domain.CovCHLWeek:      chl + rng.NormFloat64()*0.2,
		domain.CovCHLDayLag:    chl + rng.NormFloat64()*0.5,
		domain.CovCHLWeekLag:   chl + rng.NormFloat64()*0.5,
		domain.CovSSTDay:       sst,
		domain.CovSSTWeek:      sst + rng.NormFloat64()*0.5,
		domain.CovSalDay:       sal,
		domain.CovSalWeek:      sal + rng.NormFloat64()*0.1,
	}}

	// Standardize against the sampling distribution, not the sample.
	env.depthStd = (depth + 2300) / 1400
	env.chlStd = (chl - 1.8) / 1.0
	return env
}

func presenceProbability(env environment) float64 {
	eta := trueIntercept + trueDepthCoef*env.depthStd + trueCHLCoef*env.chlStd
	return 1 / (1 + math.Exp(-eta))
}

func writeObservations(path string, rows int, missingFrac float64, rng *rand.Rand, projector *geo.Projector) (int, error) {
	header := domain.ObservationColumns()
	records := make([][]string, 0, rows+1)
	records = append(records, header)

	daysPerMonth := [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

	presences := 0
	for i := 0; i < rows; i++ {
		lon := minLon + rng.Float64()*(maxLon-minLon)
		lat := minLat + rng.Float64()*(maxLat-minLat)
		x, y, err := projector.Forward(lon, lat)
		if err != nil {
			return 0, fmt.Errorf("project row %d: %w", i, err)
		}

		month := 1 + rng.Intn(12)
		day := 1 + rng.Intn(daysPerMonth[month-1])
		year := 2003 + rng.Intn(5)
		season := domain.SeasonOfMonth(month)

		env := sampleEnvironment(lon, lat, season, rng)
		presence := 0.0
		if rng.Float64() < presenceProbability(env) {
			presence = 1.0
			presences++
		}

		row := []string{
			fmt.Sprintf("obs-%04d", i+1),
			strconv.Itoa(day),
			strconv.Itoa(month),
			strconv.Itoa(year),
			formatFloat(lat),
			formatFloat(lon),
			formatFloat(x),
			formatFloat(y),
			strconv.Itoa(int(presence)),
		}
		for _, cov := range domain.Covariates() {
			row = append(row, formatCovariate(env.values[cov], missingFrac, rng))
		}
		records = append(records, row)
	}

	return presences, writeCSV(path, records)
}

func writeGrid(path string, season domain.Season, size int, missingFrac float64, rng *rand.Rand, projector *geo.Projector) error {
	header := domain.GridColumns()
	records := make([][]string, 0, size*size+1)
	records = append(records, header)

	for yi := 0; yi < size; yi++ {
		for xi := 0; xi < size; xi++ {
			lon := minLon + (float64(xi)+0.5)/float64(size)*(maxLon-minLon)
			lat := minLat + (float64(yi)+0.5)/float64(size)*(maxLat-minLat)
			x, y, err := projector.Forward(lon, lat)
			if err != nil {
				return fmt.Errorf("project cell (%d,%d): %w", xi, yi, err)
			}

			env := sampleEnvironment(lon, lat, season, rng)
			row := []string{formatFloat(x), formatFloat(y)}
			for _, cov := range domain.Covariates() {
				row = append(row, formatCovariate(env.values[cov], missingFrac, rng))
			}
			records = append(records, row)
		}
	}

	return writeCSV(path, records)
}

func formatCovariate(v, missingFrac float64, rng *rand.Rand) string {
	if rng.Float64() < missingFrac {
		return "NA"
	}
	return formatFloat(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func writeCSV(path string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
