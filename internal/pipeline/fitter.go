package pipeline

import (
	"context"
	"log/slog"

	"github.com/globicephala/sdm/internal/dataset"
	"github.com/globicephala/sdm/internal/domain"
	"github.com/globicephala/sdm/internal/gam"
	"github.com/globicephala/sdm/internal/glm"
)

// StatsFitter implements ModelFitter with the glm and gam packages, fixed
// to one label column and covariate list per run.
type StatsFitter struct {
	label      string
	covariates []string
	basisDim   int
	logger     *slog.Logger
}

// NewStatsFitter creates a fitter. basisDim is the GAM maximum-flexibility
// parameter k, applied to every smooth.
func NewStatsFitter(label string, covariates []string, basisDim int, logger *slog.Logger) *StatsFitter {
	return &StatsFitter{
		label:      label,
		covariates: covariates,
		basisDim:   basisDim,
		logger:     logger,
	}
}

func (f *StatsFitter) FitLinear(ctx context.Context, frame *dataset.Frame) (domain.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.logger.Debug("fitting glm", "covariates", len(f.covariates))
	return glm.Fit(frame, f.label, f.covariates, glm.Options{})
}

func (f *StatsFitter) FitSmooth(ctx context.Context, frame *dataset.Frame) (domain.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.logger.Debug("fitting gam", "covariates", len(f.covariates), "basis_dim", f.basisDim)
	return gam.Fit(frame, f.label, f.covariates, gam.Options{BasisDim: f.basisDim})
}
