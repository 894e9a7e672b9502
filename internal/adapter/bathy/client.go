// Package bathy fetches gridded seafloor depth from an ERDDAP-style
// griddap endpoint for bathymetric contour overlays.
package bathy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/globicephala/sdm/internal/domain"
)

// DefaultBaseURL is NOAA CoastWatch ERDDAP, which serves the ETOPO global
// relief model.
const DefaultBaseURL = "https://coastwatch.pfeg.noaa.gov/erddap"

// DefaultDatasetID selects ETOPO 1-arc-minute relief.
const DefaultDatasetID = "etopo180"

// Client implements domain.BathymetryProvider against an ERDDAP server.
type Client struct {
	baseURL    string
	datasetID  string
	variable   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a bathymetry client. Empty baseURL or datasetID select
// the NOAA ETOPO defaults.
func NewClient(baseURL, datasetID string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if datasetID == "" {
		datasetID = DefaultDatasetID
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		datasetID: datasetID,
		variable:  "altitude",
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchDepth downloads depth values covering the bounding box, keeping
// every stride-th native grid cell. Stride below 1 means full resolution.
func (c *Client) FetchDepth(ctx context.Context, box domain.BBox, stride int) (domain.DepthGrid, error) {
	if stride < 1 {
		stride = 1
	}
	if box.MinLon >= box.MaxLon || box.MinLat >= box.MaxLat {
		return domain.DepthGrid{}, fmt.Errorf("bathy: degenerate bounding box %+v: %w", box, domain.ErrExternal)
	}

	// griddap dimension subset syntax: var[(min):stride:(max)][(min):stride:(max)].
	query := fmt.Sprintf("%s[(%g):%d:(%g)][(%g):%d:(%g)]",
		c.variable, box.MinLat, stride, box.MaxLat, box.MinLon, stride, box.MaxLon)
	u := fmt.Sprintf("%s/griddap/%s.json?%s", c.baseURL, c.datasetID, url.PathEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.DepthGrid{}, fmt.Errorf("bathy: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.DepthGrid{}, fmt.Errorf("bathy: fetch grid: %v: %w", err, domain.ErrExternal)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.DepthGrid{}, fmt.Errorf("bathy: server returned status %d: %s: %w",
			resp.StatusCode, body, domain.ErrExternal)
	}

	grid, err := decodeGriddap(resp.Body)
	if err != nil {
		return domain.DepthGrid{}, fmt.Errorf("bathy: decode response: %v: %w", err, domain.ErrExternal)
	}

	c.logger.Debug("bathymetry fetched", "dataset", c.datasetID,
		"rows", len(grid.Lat), "cols", len(grid.Lon), "stride", stride)
	return grid, nil
}

// griddap JSON wire format: a single table of (lat, lon, value) rows.

type griddapResponse struct {
	Table griddapTable `json:"table"`
}

type griddapTable struct {
	ColumnNames []string         `json:"columnNames"`
	Rows        [][]*json.Number `json:"rows"`
}

// decodeGriddap reshapes the row-oriented griddap table into a regular
// lat/lon grid. Null cells (land in some datasets) are skipped and their
// grid positions stay at zero depth, i.e. sea level.
func decodeGriddap(r io.Reader) (domain.DepthGrid, error) {
	var resp griddapResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return domain.DepthGrid{}, fmt.Errorf("parse griddap JSON: %w", err)
	}

	latIdx, lonIdx, valIdx := -1, -1, -1
	for i, name := range resp.Table.ColumnNames {
		switch strings.ToLower(name) {
		case "latitude", "lat":
			latIdx = i
		case "longitude", "lon":
			lonIdx = i
		default:
			valIdx = i
		}
	}
	if latIdx < 0 || lonIdx < 0 || valIdx < 0 {
		return domain.DepthGrid{}, fmt.Errorf("unexpected columns %v", resp.Table.ColumnNames)
	}

	type cell struct {
		lat, lon, depth float64
	}
	cells := make([]cell, 0, len(resp.Table.Rows))
	latSet := map[float64]bool{}
	lonSet := map[float64]bool{}
	for i, row := range resp.Table.Rows {
		if len(row) <= valIdx || row[latIdx] == nil || row[lonIdx] == nil || row[valIdx] == nil {
			continue
		}
		lat, err1 := row[latIdx].Float64()
		lon, err2 := row[lonIdx].Float64()
		depth, err3 := row[valIdx].Float64()
		if err1 != nil || err2 != nil || err3 != nil {
			return domain.DepthGrid{}, fmt.Errorf("row %d holds non-numeric cells", i)
		}
		cells = append(cells, cell{lat: lat, lon: lon, depth: depth})
		latSet[lat] = true
		lonSet[lon] = true
	}
	if len(cells) == 0 {
		return domain.DepthGrid{}, fmt.Errorf("empty grid response")
	}

	grid := domain.DepthGrid{
		Lat: sortedKeys(latSet),
		Lon: sortedKeys(lonSet),
	}
	latPos := indexOf(grid.Lat)
	lonPos := indexOf(grid.Lon)

	grid.Depth = make([][]float64, len(grid.Lat))
	for i := range grid.Depth {
		grid.Depth[i] = make([]float64, len(grid.Lon))
	}
	for _, c := range cells {
		grid.Depth[latPos[c.lat]][lonPos[c.lon]] = c.depth
	}
	return grid, nil
}

func sortedKeys(set map[float64]bool) []float64 {
	out := make([]float64, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Float64s(out)
	return out
}

func indexOf(vals []float64) map[float64]int {
	out := make(map[float64]int, len(vals))
	for i, v := range vals {
		out[v] = i
	}
	return out
}
