// Package render draws the exploratory and seasonal maps with gonum/plot.
// It is a terminal sink: nothing it produces feeds back into the modeling
// path.
package render

import (
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/ctessum/geom"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/globicephala/sdm/internal/dataset"
	"github.com/globicephala/sdm/internal/domain"
)

// depthContourLevels are the isobaths drawn on the exploratory map, in
// meters below sea level: shelf break and abyssal plain.
var depthContourLevels = []float64{-200, -2000}

var (
	landFill      = color.RGBA{R: 0xd9, G: 0xd3, B: 0xc3, A: 0xff}
	landOutline   = color.RGBA{R: 0x8a, G: 0x85, B: 0x78, A: 0xff}
	presenceGlyph = color.RGBA{R: 0xc0, G: 0x28, B: 0x28, A: 0xff}
	absenceGlyph  = color.RGBA{R: 0x2b, G: 0x50, B: 0x9e, A: 0xff}
)

const (
	mapWidth  = 18 * vg.Centimeter
	mapHeight = 16 * vg.Centimeter
)

// Renderer writes map PNGs into a single output directory.
type Renderer struct {
	outDir string
	logger *slog.Logger
}

// New creates a renderer. The output directory is created on demand.
func New(outDir string, logger *slog.Logger) *Renderer {
	return &Renderer{outDir: outDir, logger: logger}
}

// ObservationMap draws sampling stations over coastline and bathymetric
// context in geographic (lon/lat) coordinates: presence stations as red
// triangles, absence stations as blue circles, isobaths beneath. Returns
// the written file path.
func (r *Renderer) ObservationMap(obs *dataset.Observations, coasts []domain.Coastline, depth domain.DepthGrid, extent domain.BBox, filename string) (string, error) {
	p := plot.New()
	p.Title.Text = "Sampling stations"
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"
	setExtent(p, extent.MinLon, extent.MaxLon, extent.MinLat, extent.MaxLat)

	if len(depth.Lat) > 1 && len(depth.Lon) > 1 {
		pal := moreland.BlackBody().Palette(len(depthContourLevels) + 1)
		contour := plotter.NewContour(&depthGrid{depth}, depthContourLevels, pal)
		p.Add(contour)
	}

	for _, coast := range coasts {
		if err := addCoastline(p, coast.Polygons); err != nil {
			return "", fmt.Errorf("render: coastline for %s: %w", coast.Country, err)
		}
	}

	presence, absence := splitByLabel(obs)
	abs, err := plotter.NewScatter(absence)
	if err != nil {
		return "", fmt.Errorf("render: absence scatter: %w", err)
	}
	abs.GlyphStyle = draw.GlyphStyle{Color: absenceGlyph, Radius: 2, Shape: draw.CircleGlyph{}}

	pres, err := plotter.NewScatter(presence)
	if err != nil {
		return "", fmt.Errorf("render: presence scatter: %w", err)
	}
	pres.GlyphStyle = draw.GlyphStyle{Color: presenceGlyph, Radius: 3, Shape: draw.PyramidGlyph{}}

	p.Add(abs, pres)
	p.Legend.Add("absence", abs)
	p.Legend.Add("presence", pres)
	p.Legend.Top = true

	return r.save(p, filename)
}

// SeasonalMap draws one probability-augmented grid as a filled raster in
// projected coordinates, with the coastline on top. The color scale is
// fixed to [0,1] so the four seasonal maps stay comparable; extent fixes
// the axes for the same reason. Returns the written file path.
func (r *Renderer) SeasonalMap(season domain.Season, grid *dataset.Frame, coast []geom.Polygon, extent *geom.Bounds, filename string) (string, error) {
	if err := grid.Require(domain.ColX, domain.ColY, domain.ColProbability); err != nil {
		return "", fmt.Errorf("render: seasonal grid: %w", err)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Predicted presence probability, %s", season)
	p.X.Label.Text = "Easting (m)"
	p.Y.Label.Text = "Northing (m)"
	setExtent(p, extent.Min.X, extent.Max.X, extent.Min.Y, extent.Max.Y)

	raster, err := newProbRaster(grid)
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}

	cmap := moreland.ExtendedBlackBody()
	cmap.SetMin(0)
	cmap.SetMax(1)
	hm := plotter.NewHeatMap(raster, cmap.Palette(255))
	hm.Min = 0
	hm.Max = 1
	p.Add(hm)

	if err := addCoastline(p, coast); err != nil {
		return "", fmt.Errorf("render: coastline: %w", err)
	}

	return r.save(p, filename)
}

func (r *Renderer) save(p *plot.Plot, filename string) (string, error) {
	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return "", fmt.Errorf("render: create output dir: %w", err)
	}
	path := filepath.Join(r.outDir, filename)
	if err := p.Save(mapWidth, mapHeight, path); err != nil {
		return "", fmt.Errorf("render: save %s: %w", filename, err)
	}
	r.logger.Debug("map written", "path", path)
	return path, nil
}

func setExtent(p *plot.Plot, xmin, xmax, ymin, ymax float64) {
	p.X.Min, p.X.Max = xmin, xmax
	p.Y.Min, p.Y.Max = ymin, ymax
}

func addCoastline(p *plot.Plot, polys []geom.Polygon) error {
	for _, poly := range polys {
		for _, ring := range poly {
			xys := make(plotter.XYs, len(ring))
			for i, pt := range ring {
				xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
			}
			pg, err := plotter.NewPolygon(xys)
			if err != nil {
				return err
			}
			pg.Color = landFill
			pg.LineStyle.Color = landOutline
			pg.LineStyle.Width = vg.Points(0.5)
			p.Add(pg)
		}
	}
	return nil
}

func splitByLabel(obs *dataset.Observations) (presence, absence plotter.XYs) {
	lons := obs.Col(domain.ColLon)
	lats := obs.Col(domain.ColLat)
	labels := obs.Col(domain.ColPresence)
	for i := range labels {
		if math.IsNaN(labels[i]) || math.IsNaN(lons[i]) || math.IsNaN(lats[i]) {
			continue
		}
		xy := plotter.XY{X: lons[i], Y: lats[i]}
		if labels[i] == 1 {
			presence = append(presence, xy)
		} else {
			absence = append(absence, xy)
		}
	}
	return presence, absence
}

// depthGrid adapts domain.DepthGrid to plotter.GridXYZ.
type depthGrid struct {
	g domain.DepthGrid
}

func (d *depthGrid) Dims() (c, r int)   { return len(d.g.Lon), len(d.g.Lat) }
func (d *depthGrid) X(c int) float64    { return d.g.Lon[c] }
func (d *depthGrid) Y(r int) float64    { return d.g.Lat[r] }
func (d *depthGrid) Z(c, r int) float64 { return d.g.Depth[r][c] }

// probRaster reshapes a scattered (x, y, probability) grid into the
// regular raster plotter.HeatMap needs. Cells absent from the grid, or
// masked to NaN, are skipped by the heat map.
type probRaster struct {
	xs, ys []float64
	z      [][]float64 // z[yi][xi]
}

func newProbRaster(grid *dataset.Frame) (*probRaster, error) {
	xs := uniqueSorted(grid.Col(domain.ColX))
	ys := uniqueSorted(grid.Col(domain.ColY))
	if len(xs) < 2 || len(ys) < 2 {
		return nil, fmt.Errorf("grid spans %dx%d distinct coordinates, too few to raster: %w",
			len(xs), len(ys), domain.ErrDataQuality)
	}

	xi := make(map[float64]int, len(xs))
	for i, v := range xs {
		xi[v] = i
	}
	yi := make(map[float64]int, len(ys))
	for i, v := range ys {
		yi[v] = i
	}

	z := make([][]float64, len(ys))
	for i := range z {
		z[i] = make([]float64, len(xs))
		for j := range z[i] {
			z[i][j] = math.NaN()
		}
	}

	xcol := grid.Col(domain.ColX)
	ycol := grid.Col(domain.ColY)
	pcol := grid.Col(domain.ColProbability)
	for i := range pcol {
		if math.IsNaN(xcol[i]) || math.IsNaN(ycol[i]) {
			continue
		}
		z[yi[ycol[i]]][xi[xcol[i]]] = pcol[i]
	}

	return &probRaster{xs: xs, ys: ys, z: z}, nil
}

func (p *probRaster) Dims() (c, r int)   { return len(p.xs), len(p.ys) }
func (p *probRaster) X(c int) float64    { return p.xs[c] }
func (p *probRaster) Y(r int) float64    { return p.ys[r] }
func (p *probRaster) Z(c, r int) float64 { return p.z[r][c] }

func uniqueSorted(vals []float64) []float64 {
	seen := make(map[float64]bool, len(vals))
	var out []float64
	for _, v := range vals {
		if math.IsNaN(v) || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}
