package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// modeling workflow.
type Metrics struct {
	RowsLoaded     *prometheus.CounterVec // labels: table={observations,grid}
	RowsDiscarded  prometheus.Counter
	WorkflowActive prometheus.Gauge

	// Model fitting metrics.
	FitDuration   *prometheus.HistogramVec // labels: model={glm,gam}
	FitIterations *prometheus.HistogramVec // labels: model={glm,gam}
	FitErrors     *prometheus.CounterVec   // labels: model={glm,gam}
	ModelAIC      *prometheus.GaugeVec     // labels: model={glm,gam}

	// Prediction metrics.
	PredictionsComputed prometheus.Counter
	PredictionsMissing  prometheus.Counter

	// Geographic provider metrics.
	ProviderRequests *prometheus.CounterVec   // labels: provider={coastline,bathymetry}, outcome={success,error}
	ProviderDuration *prometheus.HistogramVec // labels: provider={coastline,bathymetry}

	// Rendering metrics.
	MapsRendered prometheus.Counter
	RenderErrors prometheus.Counter
}

// NewMetrics creates and registers all workflow metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsLoaded,
		m.RowsDiscarded,
		m.WorkflowActive,
		m.FitDuration,
		m.FitIterations,
		m.FitErrors,
		m.ModelAIC,
		m.PredictionsComputed,
		m.PredictionsMissing,
		m.ProviderRequests,
		m.ProviderDuration,
		m.MapsRendered,
		m.RenderErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so parallel tests do
// not trip "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "rows_loaded_total",
			Help:      "Rows read from input tables.",
		}, []string{"table"}),
		RowsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "rows_discarded_total",
			Help:      "Observation rows dropped for missing label or covariates.",
		}),
		WorkflowActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sdm",
			Name:      "workflow_active",
			Help:      "1 while the modeling workflow is running, 0 afterwards.",
		}),
		FitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sdm",
			Name:      "fit_duration_seconds",
			Help:      "Wall-clock duration of one model fit.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"model"}),
		FitIterations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sdm",
			Name:      "fit_iterations",
			Help:      "IRLS iterations until convergence.",
			Buckets:   []float64{2, 4, 6, 8, 10, 15, 25, 50, 100},
		}, []string{"model"}),
		FitErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "fit_errors_total",
			Help:      "Model fits that failed.",
		}, []string{"model"}),
		ModelAIC: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sdm",
			Name:      "model_aic",
			Help:      "AIC of the most recent fit per model family.",
		}, []string{"model"}),
		PredictionsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "predictions_computed_total",
			Help:      "Grid cells that received a probability.",
		}),
		PredictionsMissing: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "predictions_missing_total",
			Help:      "Grid cells left NaN due to missing covariate values.",
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "provider_requests_total",
			Help:      "Geographic provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sdm",
			Name:      "provider_duration_seconds",
			Help:      "Geographic provider request duration.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		MapsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "maps_rendered_total",
			Help:      "Map images written.",
		}),
		RenderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "render_errors_total",
			Help:      "Failures on the presentational path.",
		}),
	}
}
