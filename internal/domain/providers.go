package domain

import (
	"context"

	"github.com/ctessum/geom"
)

// BBox is a geographic bounding box in WGS-84 degrees.
type BBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// Contains reports whether a lon/lat point falls inside the box.
func (b BBox) Contains(lon, lat float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// Coastline holds country boundary polygons fetched from a geographic
// provider, in WGS-84 lon/lat coordinates.
type Coastline struct {
	Country  string // ISO-3166 alpha-3 code
	Level    int    // administrative level, 0 = country outline
	Polygons []geom.Polygon
}

// DepthGrid is a regular grid of seafloor depth values. Depth[i][j] is the
// value at (Lat[i], Lon[j]), negative below sea level.
type DepthGrid struct {
	Lon   []float64
	Lat   []float64
	Depth [][]float64
}

// CoastlineProvider fetches country boundary polygons by ISO code and
// administrative level.
type CoastlineProvider interface {
	FetchCoastline(ctx context.Context, iso string, level int) (Coastline, error)
}

// BathymetryProvider fetches gridded depth values for a bounding box at a
// given stride (every n-th native grid cell).
type BathymetryProvider interface {
	FetchDepth(ctx context.Context, box BBox, stride int) (DepthGrid, error)
}
