// Package gadm fetches country boundary polygons from a GADM-style
// GeoJSON endpoint for use as coastline context on maps.
package gadm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ctessum/geom"

	"github.com/globicephala/sdm/internal/domain"
)

// DefaultBaseURL serves GADM 4.1 country boundaries as GeoJSON.
const DefaultBaseURL = "https://geodata.ucdavis.edu/gadm/gadm4.1/json"

// Client implements domain.CoastlineProvider against a GADM-style server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a coastline client. An empty baseURL selects the
// public GADM server.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchCoastline downloads the boundary polygons for one country at the
// given administrative level (0 = country outline).
func (c *Client) FetchCoastline(ctx context.Context, iso string, level int) (domain.Coastline, error) {
	iso = strings.ToUpper(strings.TrimSpace(iso))
	if len(iso) != 3 {
		return domain.Coastline{}, fmt.Errorf("gadm: country code %q is not ISO-3166 alpha-3: %w", iso, domain.ErrExternal)
	}

	u := fmt.Sprintf("%s/gadm41_%s_%d.json", c.baseURL, iso, level)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Coastline{}, fmt.Errorf("gadm: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Coastline{}, fmt.Errorf("gadm: fetch %s level %d: %v: %w", iso, level, err, domain.ErrExternal)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Coastline{}, fmt.Errorf("gadm: server returned status %d: %s: %w",
			resp.StatusCode, body, domain.ErrExternal)
	}

	polys, err := decodeGeoJSON(resp.Body)
	if err != nil {
		return domain.Coastline{}, fmt.Errorf("gadm: decode %s level %d: %v: %w", iso, level, err, domain.ErrExternal)
	}

	c.logger.Debug("coastline fetched", "country", iso, "level", level, "polygons", len(polys))
	return domain.Coastline{Country: iso, Level: level, Polygons: polys}, nil
}

// GeoJSON wire types; only the geometry shapes the maps need.

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Geometry geometry `json:"geometry"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// decodeGeoJSON flattens a FeatureCollection of Polygon/MultiPolygon
// geometries into a polygon list. Other geometry types are skipped: GADM
// boundaries are always areal.
func decodeGeoJSON(r io.Reader) ([]geom.Polygon, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("parse GeoJSON: %w", err)
	}

	var polys []geom.Polygon
	for i, f := range fc.Features {
		switch f.Geometry.Type {
		case "Polygon":
			var rings [][][]float64
			if err := json.Unmarshal(f.Geometry.Coordinates, &rings); err != nil {
				return nil, fmt.Errorf("feature %d: polygon coordinates: %w", i, err)
			}
			polys = append(polys, ringsToPolygon(rings))
		case "MultiPolygon":
			var multi [][][][]float64
			if err := json.Unmarshal(f.Geometry.Coordinates, &multi); err != nil {
				return nil, fmt.Errorf("feature %d: multipolygon coordinates: %w", i, err)
			}
			for _, rings := range multi {
				polys = append(polys, ringsToPolygon(rings))
			}
		}
	}

	if len(polys) == 0 {
		return nil, fmt.Errorf("no polygon features present")
	}
	return polys, nil
}

func ringsToPolygon(rings [][][]float64) geom.Polygon {
	poly := make(geom.Polygon, 0, len(rings))
	for _, ring := range rings {
		path := make([]geom.Point, 0, len(ring))
		for _, coord := range ring {
			if len(coord) < 2 {
				continue
			}
			path = append(path, geom.Point{X: coord[0], Y: coord[1]})
		}
		poly = append(poly, path)
	}
	return poly
}
