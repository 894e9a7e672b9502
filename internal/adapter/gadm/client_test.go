package gadm_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globicephala/sdm/internal/adapter/gadm"
	"github.com/globicephala/sdm/internal/domain"
)

const franceGeoJSON = `{
	"type": "FeatureCollection",
	"features": [
		{
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[-1.0, 46.0], [0.0, 46.0], [0.0, 47.0], [-1.0, 47.0], [-1.0, 46.0]]]
			}
		},
		{
			"geometry": {
				"type": "MultiPolygon",
				"coordinates": [
					[[[8.5, 41.3], [9.5, 41.3], [9.5, 43.0], [8.5, 43.0], [8.5, 41.3]]]
				]
			}
		}
	]
}`

func TestFetchCoastline(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, franceGeoJSON)
	}))
	defer srv.Close()

	c := gadm.NewClient(srv.URL, 5*time.Second, slog.Default())
	coast, err := c.FetchCoastline(context.Background(), "fra", 0)
	require.NoError(t, err)

	assert.Equal(t, "/gadm41_FRA_0.json", gotPath)
	assert.Equal(t, "FRA", coast.Country)
	assert.Equal(t, 0, coast.Level)
	// One Polygon feature plus one MultiPolygon with a single part.
	require.Len(t, coast.Polygons, 2)
	assert.Len(t, coast.Polygons[0][0], 5)
	assert.Equal(t, -1.0, coast.Polygons[0][0][0].X)
	assert.Equal(t, 46.0, coast.Polygons[0][0][0].Y)
}

func TestFetchCoastline_InvalidCountryCode(t *testing.T) {
	c := gadm.NewClient("http://unused", time.Second, slog.Default())

	_, err := c.FetchCoastline(context.Background(), "france", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternal)
}

func TestFetchCoastline_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := gadm.NewClient(srv.URL, 5*time.Second, slog.Default())
	_, err := c.FetchCoastline(context.Background(), "FRA", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternal)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchCoastline_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html>maintenance</html>")
	}))
	defer srv.Close()

	c := gadm.NewClient(srv.URL, 5*time.Second, slog.Default())
	_, err := c.FetchCoastline(context.Background(), "FRA", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternal)
}

func TestFetchCoastline_NoPolygons(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"type":"FeatureCollection","features":[]}`)
	}))
	defer srv.Close()

	c := gadm.NewClient(srv.URL, 5*time.Second, slog.Default())
	_, err := c.FetchCoastline(context.Background(), "FRA", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternal)
}
