// Package pipeline orchestrates the modeling workflow: load observations,
// fit the candidate models, select by AIC, predict the four seasonal
// grids, write results, and render maps. Execution is strictly
// sequential; each stage consumes the previous stage's output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/ctessum/geom"

	"github.com/globicephala/sdm/internal/dataset"
	"github.com/globicephala/sdm/internal/domain"
	"github.com/globicephala/sdm/internal/geo"
	"github.com/globicephala/sdm/internal/observability"
	"github.com/globicephala/sdm/internal/predict"
)

// DataSource loads the observation table and the seasonal grids.
type DataSource interface {
	Observations(ctx context.Context) (*dataset.Observations, error)
	Grid(ctx context.Context, season domain.Season) (*dataset.Frame, error)
}

// ModelFitter fits the two candidate model families.
type ModelFitter interface {
	FitLinear(ctx context.Context, f *dataset.Frame) (domain.Model, error)
	FitSmooth(ctx context.Context, f *dataset.Frame) (domain.Model, error)
}

// ResultWriter persists augmented grids and the run report.
type ResultWriter interface {
	WriteAugmentedGrid(season domain.Season, grid *dataset.Frame) (path string, err error)
	WriteReport(report *Report) (path string, err error)
}

// MapRenderer draws the exploratory and seasonal maps.
type MapRenderer interface {
	ObservationMap(obs *dataset.Observations, coasts []domain.Coastline, depth domain.DepthGrid, extent domain.BBox, filename string) (string, error)
	SeasonalMap(season domain.Season, grid *dataset.Frame, coast []geom.Polygon, extent *geom.Bounds, filename string) (string, error)
}

// Report is the serializable outcome of one workflow run.
type Report struct {
	GLM               domain.Summary           `json:"glm"`
	GAM               domain.Summary           `json:"gam"`
	Choice            domain.ModelChoice       `json:"choice"`
	RemovalCandidates []string                 `json:"removal_candidates,omitempty"`
	SignificanceLevel float64                  `json:"significance_level"`
	AICDelta          float64                  `json:"aic_delta"`
	Prevalence        float64                  `json:"prevalence"`
	GridOutputs       map[domain.Season]string `json:"grid_outputs"`
	MapOutputs        []string                 `json:"map_outputs,omitempty"`
	GeneratedAt       time.Time                `json:"generated_at"`
}

// Options carries the run parameters the pipeline itself needs.
type Options struct {
	SignificanceLevel float64
	AICDelta          float64
	StudyArea         domain.BBox
	Countries         []string
	CoastlineLevel    int
	BathymetryStride  int

	// MaskLand blanks probabilities inside the coastline on the rendered
	// seasonal maps. The written grids are left untouched.
	MaskLand bool
}

// Pipeline wires the workflow stages together.
type Pipeline struct {
	data      DataSource
	fitter    ModelFitter
	writer    ResultWriter
	renderer  MapRenderer
	coastline domain.CoastlineProvider
	bathy     domain.BathymetryProvider
	projector *geo.Projector

	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options
	ready   atomic.Bool
}

// New creates a Pipeline. renderer, coastline, and bathy may be nil to
// disable the presentational path; the modeling path never depends on
// them.
func New(data DataSource, fitter ModelFitter, writer ResultWriter, renderer MapRenderer,
	coastline domain.CoastlineProvider, bathy domain.BathymetryProvider, projector *geo.Projector,
	logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	return &Pipeline{
		data:      data,
		fitter:    fitter,
		writer:    writer,
		renderer:  renderer,
		coastline: coastline,
		bathy:     bathy,
		projector: projector,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
	}
}

// CheckReadiness returns nil once a modeling pass has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no modeling pass has completed yet")
	}
	return nil
}

// Run executes one complete workflow pass. Modeling failures abort the
// run; presentational failures are logged and counted but leave the
// modeling results intact.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	p.metrics.WorkflowActive.Set(1)
	defer p.metrics.WorkflowActive.Set(0)

	obs, err := p.data.Observations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	p.metrics.RowsLoaded.WithLabelValues("observations").Add(float64(obs.Len()))
	p.logger.Info("observations loaded", "rows", obs.Len(),
		"prevalence", prevalence(obs.Col(domain.ColPresence)))

	glmModel, gamModel, err := p.fitModels(ctx, obs)
	if err != nil {
		return nil, err
	}

	selected, choice := domain.CompareAIC(glmModel, gamModel, p.opts.AICDelta)
	p.logger.Info("model selected",
		"selected", choice.Selected,
		"delta_aic", choice.DeltaAIC,
		"meaningful", choice.Meaningful,
	)

	if dropped := obs.Len() - selected.Summary().N; dropped > 0 {
		p.metrics.RowsDiscarded.Add(float64(dropped))
		p.logger.Info("incomplete rows excluded from fitting", "rows", dropped)
	}

	removal := domain.RemovalCandidates(selected.Summary(), p.opts.SignificanceLevel)
	if len(removal) > 0 {
		p.logger.Info("covariates above significance threshold",
			"alpha", p.opts.SignificanceLevel, "covariates", removal)
	}

	augmented, outputs, err := p.predictGrids(ctx, selected)
	if err != nil {
		return nil, err
	}

	report := &Report{
		GLM:               glmModel.Summary(),
		GAM:               gamModel.Summary(),
		Choice:            choice,
		RemovalCandidates: removal,
		SignificanceLevel: p.opts.SignificanceLevel,
		AICDelta:          p.opts.AICDelta,
		Prevalence:        prevalence(obs.Col(domain.ColPresence)),
		GridOutputs:       outputs,
		GeneratedAt:       domain.Now(),
	}

	// The modeling path is complete; everything below is presentational.
	p.ready.Store(true)

	report.MapOutputs = p.renderMaps(ctx, obs, augmented)

	if _, err := p.writer.WriteReport(report); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	return report, nil
}

func (p *Pipeline) fitModels(ctx context.Context, obs *dataset.Observations) (glmModel, gamModel domain.Model, err error) {
	start := time.Now()
	glmModel, err = p.fitter.FitLinear(ctx, obs.Frame)
	if err != nil {
		p.metrics.FitErrors.WithLabelValues("glm").Inc()
		return nil, nil, fmt.Errorf("fit glm: %w", err)
	}
	p.observeFit("glm", glmModel, time.Since(start))

	start = time.Now()
	gamModel, err = p.fitter.FitSmooth(ctx, obs.Frame)
	if err != nil {
		p.metrics.FitErrors.WithLabelValues("gam").Inc()
		return nil, nil, fmt.Errorf("fit gam: %w", err)
	}
	p.observeFit("gam", gamModel, time.Since(start))

	return glmModel, gamModel, nil
}

func (p *Pipeline) observeFit(name string, m domain.Model, elapsed time.Duration) {
	s := m.Summary()
	p.metrics.FitDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	p.metrics.FitIterations.WithLabelValues(name).Observe(float64(s.Iterations))
	p.metrics.ModelAIC.WithLabelValues(name).Set(s.AIC)
	p.logger.Info("model fitted", "model", name,
		"n", s.N, "aic", s.AIC, "deviance", s.Deviance, "iterations", s.Iterations)
}

// predictGrids applies the selected model to each seasonal grid and writes
// the augmented tables.
func (p *Pipeline) predictGrids(ctx context.Context, model domain.Model) (map[domain.Season]*dataset.Frame, map[domain.Season]string, error) {
	augmented := make(map[domain.Season]*dataset.Frame, len(domain.Seasons()))
	outputs := make(map[domain.Season]string, len(domain.Seasons()))

	for _, season := range domain.Seasons() {
		grid, err := p.data.Grid(ctx, season)
		if err != nil {
			return nil, nil, fmt.Errorf("load %s grid: %w", season, err)
		}
		p.metrics.RowsLoaded.WithLabelValues("grid").Add(float64(grid.Len()))

		aug, err := predict.Augment(model, grid)
		if err != nil {
			return nil, nil, fmt.Errorf("predict %s grid: %w", season, err)
		}

		missing := aug.MissingCount(domain.ColProbability)
		p.metrics.PredictionsComputed.Add(float64(aug.Len() - missing))
		p.metrics.PredictionsMissing.Add(float64(missing))

		path, err := p.writer.WriteAugmentedGrid(season, aug)
		if err != nil {
			return nil, nil, fmt.Errorf("write %s grid: %w", season, err)
		}

		p.logger.Info("grid predicted", "season", season,
			"cells", aug.Len(), "missing", missing, "path", path)
		augmented[season] = aug
		outputs[season] = path
	}
	return augmented, outputs, nil
}

// renderMaps runs the presentational path. Any failure here is logged and
// counted, never propagated: maps are a dead end and must not undo a
// completed modeling pass.
func (p *Pipeline) renderMaps(ctx context.Context, obs *dataset.Observations, augmented map[domain.Season]*dataset.Frame) []string {
	if p.renderer == nil {
		p.logger.Info("rendering disabled")
		return nil
	}

	coasts, depth := p.fetchContext(ctx)

	var outputs []string
	if path, err := p.renderer.ObservationMap(obs, coasts, depth, p.opts.StudyArea, "observations.png"); err != nil {
		p.metrics.RenderErrors.Inc()
		p.logger.Warn("observation map failed", "error", err)
	} else {
		p.metrics.MapsRendered.Inc()
		outputs = append(outputs, path)
	}

	projected, extent := p.projectContext(coasts)

	var mask *geo.LandMask
	if p.opts.MaskLand && len(projected) > 0 {
		mask = geo.NewLandMask(projected)
	}

	for _, season := range domain.Seasons() {
		grid, ok := augmented[season]
		if !ok {
			continue
		}
		grid = p.maskGrid(mask, season, grid)
		filename := fmt.Sprintf("probability_%s.png", season)
		path, err := p.renderer.SeasonalMap(season, grid, projected, extent, filename)
		if err != nil {
			p.metrics.RenderErrors.Inc()
			p.logger.Warn("seasonal map failed", "season", season, "error", err)
			continue
		}
		p.metrics.MapsRendered.Inc()
		outputs = append(outputs, path)
	}
	return outputs
}

// maskGrid blanks the probability of cells that fall inside the coastline.
// It returns the grid unchanged when masking is off or the frame is not in
// the expected shape; the map then just shows the unmasked surface.
func (p *Pipeline) maskGrid(mask *geo.LandMask, season domain.Season, grid *dataset.Frame) *dataset.Frame {
	if mask == nil {
		return grid
	}
	if err := grid.Require(domain.ColX, domain.ColY, domain.ColProbability); err != nil {
		p.logger.Warn("land mask skipped", "season", season, "error", err)
		return grid
	}
	masked := mask.MaskColumn(grid.Col(domain.ColX), grid.Col(domain.ColY), grid.Col(domain.ColProbability))
	out, err := grid.WithColumn(domain.ColProbability, masked)
	if err != nil {
		p.logger.Warn("land mask skipped", "season", season, "error", err)
		return grid
	}
	return out
}

// fetchContext pulls coastline and bathymetry layers. Failures degrade to
// maps without the affected layer.
func (p *Pipeline) fetchContext(ctx context.Context) ([]domain.Coastline, domain.DepthGrid) {
	var coasts []domain.Coastline
	if p.coastline != nil {
		for _, iso := range p.opts.Countries {
			start := time.Now()
			coast, err := p.coastline.FetchCoastline(ctx, iso, p.opts.CoastlineLevel)
			p.metrics.ProviderDuration.WithLabelValues("coastline").Observe(time.Since(start).Seconds())
			if err != nil {
				p.metrics.ProviderRequests.WithLabelValues("coastline", "error").Inc()
				p.logger.Warn("coastline fetch failed", "country", iso, "error", err)
				continue
			}
			p.metrics.ProviderRequests.WithLabelValues("coastline", "success").Inc()
			coasts = append(coasts, coast)
		}
	}

	var depth domain.DepthGrid
	if p.bathy != nil {
		start := time.Now()
		grid, err := p.bathy.FetchDepth(ctx, p.opts.StudyArea, p.opts.BathymetryStride)
		p.metrics.ProviderDuration.WithLabelValues("bathymetry").Observe(time.Since(start).Seconds())
		if err != nil {
			p.metrics.ProviderRequests.WithLabelValues("bathymetry", "error").Inc()
			p.logger.Warn("bathymetry fetch failed", "error", err)
		} else {
			p.metrics.ProviderRequests.WithLabelValues("bathymetry", "success").Inc()
			depth = grid
		}
	}
	return coasts, depth
}

// projectContext converts the coastline into the metric CRS of the
// prediction grids and computes the shared map extent.
func (p *Pipeline) projectContext(coasts []domain.Coastline) ([]geom.Polygon, *geom.Bounds) {
	extent, err := p.projector.ProjectedBounds(p.opts.StudyArea)
	if err != nil {
		p.logger.Warn("projecting study area failed", "error", err)
		extent = &geom.Bounds{}
	}

	var projected []geom.Polygon
	for _, coast := range coasts {
		polys, err := p.projector.ProjectPolygons(coast.Polygons)
		if err != nil {
			p.logger.Warn("projecting coastline failed", "country", coast.Country, "error", err)
			continue
		}
		projected = append(projected, polys...)
	}
	return projected, extent
}

func prevalence(labels []float64) float64 {
	var n, pos float64
	for _, v := range labels {
		if math.IsNaN(v) {
			continue
		}
		n++
		pos += v
	}
	if n == 0 {
		return math.NaN()
	}
	return pos / n
}
