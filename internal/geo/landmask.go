package geo

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// LandMask answers point-on-land queries against coastline polygons using
// an r-tree, so masking a whole prediction grid stays cheap.
type LandMask struct {
	tree *rtree.Rtree
}

type maskPoly struct {
	geom.Polygonal
}

// NewLandMask indexes the given polygons. The polygons must be in the same
// CRS as the points later passed to OnLand.
func NewLandMask(polys []geom.Polygon) *LandMask {
	tree := rtree.NewTree(25, 50)
	for i := range polys {
		tree.Insert(&maskPoly{Polygonal: polys[i]})
	}
	return &LandMask{tree: tree}
}

// OnLand reports whether the point falls inside any indexed polygon.
func (m *LandMask) OnLand(x, y float64) bool {
	pt := geom.Point{X: x, Y: y}
	for _, item := range m.tree.SearchIntersect(pt.Bounds()) {
		poly := item.(*maskPoly)
		if w := pt.Within(poly.Polygonal); w == geom.Inside || w == geom.OnEdge {
			return true
		}
	}
	return false
}

// MaskColumn returns a copy of values with NaN wherever the matching x/y
// point lies on land. Slices must be the same length.
func (m *LandMask) MaskColumn(xs, ys, values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if m.OnLand(xs[i], ys[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = v
	}
	return out
}
