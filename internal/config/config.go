// Package config loads workflow settings from environment variables, with
// optional .env support for local runs.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/globicephala/sdm/internal/domain"
)

// envPrefix namespaces every variable, e.g. SDM_OBSERVATIONS_PATH.
const envPrefix = "sdm"

// Config holds all workflow settings.
type Config struct {
	// Input and output paths.
	ObservationsPath string `envconfig:"OBSERVATIONS_PATH" default:"data/observations.csv"`
	GridDir          string `envconfig:"GRID_DIR" default:"data/grids"`
	OutputDir        string `envconfig:"OUTPUT_DIR" default:"out"`

	// Model specification. An empty covariate list means the full
	// canonical set.
	Covariates        []string `envconfig:"COVARIATES"`
	Label             string   `envconfig:"LABEL" default:"presence"`
	GAMBasisDim       int      `envconfig:"GAM_BASIS_DIM" default:"10"`
	SignificanceLevel float64  `envconfig:"SIGNIFICANCE_LEVEL" default:"0.05"`
	AICDelta          float64  `envconfig:"AIC_DELTA" default:"2"`

	// Projection for x/y coordinates.
	Proj4 string `envconfig:"PROJ4" default:"+proj=utm +zone=30 +datum=WGS84 +units=m +no_defs"`

	// Study area extent in WGS-84 degrees, defaulting to the Bay of
	// Biscay and western Iberian shelf.
	MinLon float64 `envconfig:"MIN_LON" default:"-12"`
	MinLat float64 `envconfig:"MIN_LAT" default:"42"`
	MaxLon float64 `envconfig:"MAX_LON" default:"0"`
	MaxLat float64 `envconfig:"MAX_LAT" default:"49"`

	// Geographic context providers. ContextEnabled gates the whole
	// presentational path.
	ContextEnabled     bool          `envconfig:"CONTEXT_ENABLED" default:"true"`
	CoastlineBaseURL   string        `envconfig:"COASTLINE_BASE_URL"`
	CoastlineCountries []string      `envconfig:"COASTLINE_COUNTRIES" default:"FRA,ESP"`
	CoastlineLevel     int           `envconfig:"COASTLINE_LEVEL" default:"0"`
	CoastlineCacheSize int           `envconfig:"COASTLINE_CACHE_SIZE" default:"16"`
	BathymetryBaseURL  string        `envconfig:"BATHYMETRY_BASE_URL"`
	BathymetryDataset  string        `envconfig:"BATHYMETRY_DATASET"`
	BathymetryStride   int           `envconfig:"BATHYMETRY_STRIDE" default:"4"`
	ProviderTimeout    time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`

	// MaskLand blanks probabilities for grid cells that fall inside the
	// fetched coastline on the rendered maps. Written grids are never
	// masked, so a degraded coastline fetch cannot change results.
	MaskLand bool `envconfig:"MASK_LAND" default:"false"`

	// Observability.
	MetricsAddr     string        `envconfig:"METRICS_ADDR"` // empty disables the HTTP endpoint
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads configuration from the environment, after merging a .env
// file if one exists in the working directory.
func Load() (*Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if len(cfg.Covariates) == 0 {
		cfg.Covariates = domain.Covariates()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ObservationsPath == "" {
		return fmt.Errorf("SDM_OBSERVATIONS_PATH is required")
	}
	if c.GridDir == "" {
		return fmt.Errorf("SDM_GRID_DIR is required")
	}
	if c.GAMBasisDim < 4 {
		return fmt.Errorf("SDM_GAM_BASIS_DIM must be at least 4, got %d", c.GAMBasisDim)
	}
	if c.SignificanceLevel <= 0 || c.SignificanceLevel >= 1 {
		return fmt.Errorf("SDM_SIGNIFICANCE_LEVEL must be in (0,1), got %g", c.SignificanceLevel)
	}
	if c.AICDelta < 0 {
		return fmt.Errorf("SDM_AIC_DELTA must not be negative, got %g", c.AICDelta)
	}
	if c.MinLon >= c.MaxLon || c.MinLat >= c.MaxLat {
		return fmt.Errorf("study area extent is degenerate: lon [%g,%g] lat [%g,%g]",
			c.MinLon, c.MaxLon, c.MinLat, c.MaxLat)
	}
	if c.CoastlineLevel < 0 || c.CoastlineLevel > 3 {
		return fmt.Errorf("SDM_COASTLINE_LEVEL must be 0-3, got %d", c.CoastlineLevel)
	}
	if c.BathymetryStride < 1 {
		return fmt.Errorf("SDM_BATHYMETRY_STRIDE must be at least 1, got %d", c.BathymetryStride)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("SDM_PROVIDER_TIMEOUT must be positive, got %s", c.ProviderTimeout)
	}
	return nil
}

// StudyArea returns the configured extent as a bounding box.
func (c *Config) StudyArea() domain.BBox {
	return domain.BBox{MinLon: c.MinLon, MinLat: c.MinLat, MaxLon: c.MaxLon, MaxLat: c.MaxLat}
}

// GridPath returns the CSV path of one season's prediction grid.
func (c *Config) GridPath(season domain.Season) string {
	return fmt.Sprintf("%s/grid_%s.csv", c.GridDir, season)
}
