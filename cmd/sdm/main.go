// Command sdm runs the full species distribution modeling workflow: load
// the observation and grid CSVs, fit GLM and GAM candidates, select by
// AIC, predict the four seasonal grids, and render the maps.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/globicephala/sdm/internal/adapter/bathy"
	"github.com/globicephala/sdm/internal/adapter/gadm"
	httpadapter "github.com/globicephala/sdm/internal/adapter/http"
	"github.com/globicephala/sdm/internal/adapter/render"
	"github.com/globicephala/sdm/internal/config"
	"github.com/globicephala/sdm/internal/domain"
	"github.com/globicephala/sdm/internal/geo"
	"github.com/globicephala/sdm/internal/observability"
	"github.com/globicephala/sdm/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	projector, err := geo.NewProjector(cfg.Proj4)
	if err != nil {
		logger.Error("failed to build projector", "error", err)
		os.Exit(1)
	}

	// Geographic context is feature-flagged; the modeling path never
	// needs it.
	var (
		coastline  domain.CoastlineProvider
		bathymetry domain.BathymetryProvider
		renderer   pipeline.MapRenderer
	)
	if cfg.ContextEnabled {
		client := gadm.NewClient(cfg.CoastlineBaseURL, cfg.ProviderTimeout, logger)
		coastline = gadm.NewCachedProvider(client, cfg.CoastlineCacheSize)
		bathymetry = bathy.NewClient(cfg.BathymetryBaseURL, cfg.BathymetryDataset, cfg.ProviderTimeout, logger)
		renderer = render.New(cfg.OutputDir, logger)
		logger.Info("geographic context enabled",
			"countries", cfg.CoastlineCountries, "level", cfg.CoastlineLevel)
	} else {
		logger.Info("geographic context disabled, maps will be skipped")
	}

	source := pipeline.NewCSVSource(cfg.ObservationsPath, cfg.GridPath, logger)
	fitter := pipeline.NewStatsFitter(cfg.Label, cfg.Covariates, cfg.GAMBasisDim, logger)
	writer := pipeline.NewFileWriter(cfg.OutputDir)

	p := pipeline.New(source, fitter, writer, renderer, coastline, bathymetry, projector,
		logger, metrics, pipeline.Options{
			SignificanceLevel: cfg.SignificanceLevel,
			AICDelta:          cfg.AICDelta,
			StudyArea:         cfg.StudyArea(),
			Countries:         cfg.CoastlineCountries,
			CoastlineLevel:    cfg.CoastlineLevel,
			BathymetryStride:  cfg.BathymetryStride,
			MaskLand:          cfg.MaskLand,
		})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional metrics endpoint for long runs.
	var srv *httpadapter.Server
	if cfg.MetricsAddr != "" {
		srv = httpadapter.NewServer(cfg.MetricsAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	report, err := p.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error("metrics server shutdown error", "error", shutdownErr)
		}
		cancel()
	}

	if err != nil {
		logger.Error("workflow failed", "error", err)
		os.Exit(1)
	}

	logger.Info("workflow complete",
		"selected_model", report.Choice.Selected,
		"delta_aic", report.Choice.DeltaAIC,
		"prevalence", report.Prevalence,
		"grids", len(report.GridOutputs),
		"maps", len(report.MapOutputs),
	)
}
