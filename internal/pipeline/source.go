package pipeline

import (
	"context"
	"log/slog"

	"github.com/globicephala/sdm/internal/dataset"
	"github.com/globicephala/sdm/internal/domain"
)

// CSVSource implements DataSource over the flat files the workflow ships
// with: one observation CSV and one grid CSV per season.
type CSVSource struct {
	observationsPath string
	gridPath         func(domain.Season) string
	logger           *slog.Logger
}

// NewCSVSource creates a file-backed data source. gridPath maps a season
// to its CSV path.
func NewCSVSource(observationsPath string, gridPath func(domain.Season) string, logger *slog.Logger) *CSVSource {
	return &CSVSource{
		observationsPath: observationsPath,
		gridPath:         gridPath,
		logger:           logger,
	}
}

func (s *CSVSource) Observations(ctx context.Context) (*dataset.Observations, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.logger.Debug("loading observations", "path", s.observationsPath)
	return dataset.LoadObservations(s.observationsPath)
}

func (s *CSVSource) Grid(ctx context.Context, season domain.Season) (*dataset.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.gridPath(season)
	s.logger.Debug("loading grid", "season", season, "path", path)
	return dataset.LoadGrid(path)
}
