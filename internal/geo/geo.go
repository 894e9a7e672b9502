// Package geo wraps projection and spatial indexing for the survey region.
package geo

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"

	"github.com/globicephala/sdm/internal/domain"
)

// DefaultProj4 is the metric CRS used when none is configured: UTM zone
// 30N over WGS-84, which covers the Bay of Biscay survey area.
const DefaultProj4 = "+proj=utm +zone=30 +datum=WGS84 +units=m +no_defs"

// Projector converts between WGS-84 lon/lat and a metric CRS.
type Projector struct {
	forward proj.Transformer
	inverse proj.Transformer
}

// NewProjector builds a projector for the given PROJ.4 definition.
func NewProjector(proj4 string) (*Projector, error) {
	lonlat, err := proj.Parse("+proj=longlat +datum=WGS84 +no_defs")
	if err != nil {
		return nil, fmt.Errorf("geo: parse longlat CRS: %w", err)
	}
	metric, err := proj.Parse(proj4)
	if err != nil {
		return nil, fmt.Errorf("geo: parse CRS %q: %w", proj4, err)
	}

	fwd, err := lonlat.NewTransform(metric)
	if err != nil {
		return nil, fmt.Errorf("geo: build forward transform: %w", err)
	}
	inv, err := metric.NewTransform(lonlat)
	if err != nil {
		return nil, fmt.Errorf("geo: build inverse transform: %w", err)
	}

	// NewTransform returns nil when source and destination are the same
	// CRS, meaning the configured CRS is geographic lon/lat itself.
	if fwd == nil {
		ident := func(x, y float64) (float64, float64, error) { return x, y, nil }
		return &Projector{forward: ident, inverse: ident}, nil
	}

	// proj.Parse accepts definitions it cannot evaluate, so exercise the
	// transform on a reference point before handing the projector out.
	x, y, err := fwd(0, 45)
	if err != nil {
		return nil, fmt.Errorf("%w: CRS %q failed on a reference point: %v", domain.ErrSchema, proj4, err)
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return nil, fmt.Errorf("%w: CRS %q produced a non-finite projection", domain.ErrSchema, proj4)
	}

	return &Projector{forward: fwd, inverse: inv}, nil
}

// Forward projects lon/lat degrees to metric x/y.
func (p *Projector) Forward(lon, lat float64) (x, y float64, err error) {
	return p.forward(lon, lat)
}

// Inverse projects metric x/y back to lon/lat degrees.
func (p *Projector) Inverse(x, y float64) (lon, lat float64, err error) {
	return p.inverse(x, y)
}

// ProjectPolygons transforms coastline polygons from lon/lat into the
// metric CRS, so they can be drawn and indexed in the same space as the
// observation and grid coordinates.
func (p *Projector) ProjectPolygons(polys []geom.Polygon) ([]geom.Polygon, error) {
	out := make([]geom.Polygon, 0, len(polys))
	for i, poly := range polys {
		g, err := poly.Transform(p.forward)
		if err != nil {
			return nil, fmt.Errorf("geo: project polygon %d: %w", i, err)
		}
		pp, ok := g.(geom.Polygon)
		if !ok {
			return nil, fmt.Errorf("geo: polygon %d projected to %T", i, g)
		}
		out = append(out, pp)
	}
	return out, nil
}

// ProjectedBounds projects the corners of a geographic bounding box and
// returns the metric extent covering them.
func (p *Projector) ProjectedBounds(box domain.BBox) (*geom.Bounds, error) {
	b := &geom.Bounds{
		Min: geom.Point{X: math.Inf(1), Y: math.Inf(1)},
		Max: geom.Point{X: math.Inf(-1), Y: math.Inf(-1)},
	}
	for _, c := range [][2]float64{
		{box.MinLon, box.MinLat},
		{box.MinLon, box.MaxLat},
		{box.MaxLon, box.MinLat},
		{box.MaxLon, box.MaxLat},
	} {
		x, y, err := p.forward(c[0], c[1])
		if err != nil {
			return nil, fmt.Errorf("geo: project bounds corner: %w", err)
		}
		b.Min.X = math.Min(b.Min.X, x)
		b.Min.Y = math.Min(b.Min.Y, y)
		b.Max.X = math.Max(b.Max.X, x)
		b.Max.Y = math.Max(b.Max.Y, y)
	}
	return b, nil
}
