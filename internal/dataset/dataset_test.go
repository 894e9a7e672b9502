package dataset_test

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globicephala/sdm/internal/dataset"
	"github.com/globicephala/sdm/internal/domain"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// observationCSV builds a minimal valid observation file with the full
// canonical header and two data rows, then applies overrides per row.
func observationCSV(rows ...string) string {
	header := strings.Join(domain.ObservationColumns(), ",")
	return header + "\n" + strings.Join(rows, "\n") + "\n"
}

func observationRow(id string, presence string, covariateValue string) string {
	fields := []string{id, "14", "6", "2004", "44.5", "-5.2", "550000", "4930000", presence}
	for range domain.Covariates() {
		fields = append(fields, covariateValue)
	}
	return strings.Join(fields, ",")
}

func TestLoadObservations(t *testing.T) {
	path := writeTempCSV(t, observationCSV(
		observationRow("obs-1", "1", "2.5"),
		observationRow("obs-2", "0", "NA"),
	))

	obs, err := dataset.LoadObservations(path)
	require.NoError(t, err)

	assert.Equal(t, 2, obs.Len())
	assert.Equal(t, []string{"obs-1", "obs-2"}, obs.IDs)
	assert.False(t, obs.Has(domain.ColID), "id column stays out of the numeric frame")

	labels := obs.Col(domain.ColPresence)
	assert.Equal(t, []float64{1, 0}, labels)

	depth := obs.Col(domain.CovDepth)
	assert.Equal(t, 2.5, depth[0])
	assert.True(t, math.IsNaN(depth[1]))
}

func TestLoadObservations_HeaderIsCaseInsensitive(t *testing.T) {
	content := observationCSV(observationRow("obs-1", "1", "2.5"))
	content = strings.ToUpper(strings.SplitN(content, "\n", 2)[0]) + "\n" +
		strings.SplitN(content, "\n", 2)[1]
	path := writeTempCSV(t, content)

	obs, err := dataset.LoadObservations(path)
	require.NoError(t, err)
	assert.Equal(t, 1, obs.Len())
}

func TestLoadObservations_MissingColumn(t *testing.T) {
	cols := domain.ObservationColumns()
	header := strings.Join(cols[:len(cols)-1], ",") // drop the last covariate
	path := writeTempCSV(t, header+"\n")

	_, err := dataset.LoadObservations(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchema)
	assert.Contains(t, err.Error(), cols[len(cols)-1])
}

func TestLoadObservations_NonNumericCell(t *testing.T) {
	path := writeTempCSV(t, observationCSV(observationRow("obs-1", "1", "deep")))

	_, err := dataset.LoadObservations(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchema)
}

func TestLoadObservations_NonBinaryLabel(t *testing.T) {
	path := writeTempCSV(t, observationCSV(observationRow("obs-1", "2", "1.0")))

	_, err := dataset.LoadObservations(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDataQuality)
}

func TestLoadObservations_EmptyFile(t *testing.T) {
	path := writeTempCSV(t, "")

	_, err := dataset.LoadObservations(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDataQuality)
}

func TestLoadGrid(t *testing.T) {
	path := writeTempCSV(t, "x,y,depth,sst_day\n100,200,-1500,17.2\n110,200,NA,16.8\n")

	grid, err := dataset.LoadGrid(path)
	require.NoError(t, err)
	assert.Equal(t, 2, grid.Len())
	assert.Equal(t, []string{"x", "y", "depth", "sst_day"}, grid.Columns())
	assert.Equal(t, 1, grid.MissingCount("depth"))
}

func TestLoadGrid_RequiresCoordinates(t *testing.T) {
	path := writeTempCSV(t, "x,depth\n100,-1500\n")

	_, err := dataset.LoadGrid(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchema)
	assert.Contains(t, err.Error(), `"y"`)
}

func TestWriteGrid_Roundtrip(t *testing.T) {
	f := dataset.NewFrame(3)
	require.NoError(t, f.SetCol("x", []float64{1, 2, 3}))
	require.NoError(t, f.SetCol("y", []float64{4, 5, 6}))
	require.NoError(t, f.SetCol("probability", []float64{0.25, math.NaN(), 0.75}))

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, dataset.WriteGrid(path, f))

	back, err := dataset.LoadGrid(path)
	require.NoError(t, err)

	if diff := cmp.Diff(f.Columns(), back.Columns()); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []float64{0.25, 0.75}, []float64{back.Col("probability")[0], back.Col("probability")[2]})
	assert.True(t, math.IsNaN(back.Col("probability")[1]))
}

func TestFrame_SetCol_LengthMismatch(t *testing.T) {
	f := dataset.NewFrame(3)
	err := f.SetCol("depth", []float64{1, 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchema)
}

func TestFrame_WithColumnLeavesReceiverIntact(t *testing.T) {
	f := dataset.NewFrame(2)
	require.NoError(t, f.SetCol("x", []float64{1, 2}))

	g, err := f.WithColumn("probability", []float64{0.1, 0.9})
	require.NoError(t, err)

	assert.False(t, f.Has("probability"))
	assert.True(t, g.Has("probability"))
	assert.Equal(t, []string{"x"}, f.Columns())
}

func TestFrame_CompleteRows(t *testing.T) {
	f := dataset.NewFrame(4)
	require.NoError(t, f.SetCol("a", []float64{1, math.NaN(), 3, 4}))
	require.NoError(t, f.SetCol("b", []float64{10, 20, math.NaN(), 40}))
	require.NoError(t, f.SetCol("c", []float64{100, 200, 300, 400}))

	got, err := f.CompleteRows("a", "b")
	require.NoError(t, err)

	assert.Equal(t, 2, got.Len())
	assert.Equal(t, []float64{1, 4}, got.Col("a"))
	assert.Equal(t, []float64{10, 40}, got.Col("b"))
	// Unfiltered columns survive with matching rows.
	assert.Equal(t, []float64{100, 400}, got.Col("c"))
}

func TestFrame_CompleteRows_NothingLeft(t *testing.T) {
	f := dataset.NewFrame(2)
	require.NoError(t, f.SetCol("a", []float64{math.NaN(), math.NaN()}))

	_, err := f.CompleteRows("a")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDataQuality)
}

func TestFrame_Require(t *testing.T) {
	f := dataset.NewFrame(1)
	require.NoError(t, f.SetCol("a", []float64{1}))

	assert.NoError(t, f.Require("a"))

	err := f.Require("a", "b", "c")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchema)
	// First missing column is the one named.
	assert.Contains(t, err.Error(), `"b"`)
	assert.NotContains(t, err.Error(), `"c"`)
}

func TestMissingSentinels(t *testing.T) {
	for _, sentinel := range []string{"", "NA", "na", "NaN", "null", "NULL"} {
		t.Run(fmt.Sprintf("sentinel %q", sentinel), func(t *testing.T) {
			path := writeTempCSV(t, "x,y,depth\n1,2,"+sentinel+"\n")
			grid, err := dataset.LoadGrid(path)
			require.NoError(t, err)
			assert.True(t, math.IsNaN(grid.Col("depth")[0]))
		})
	}
}
