package domain

// Canonical column names of the observation and grid tables.
const (
	ColID       = "id"
	ColDay      = "day"
	ColMonth    = "month"
	ColYear     = "year"
	ColLat      = "lat"
	ColLon      = "lon"
	ColX        = "x"
	ColY        = "y"
	ColPresence = "presence"

	CovSlope        = "slope"
	CovDepth        = "depth"
	CovSardineCatch = "sardine_catch"
	CovCHLDay       = "chl_day"
	CovCHLWeek      = "chl_week"
	CovCHLDayLag    = "chl_day_lag"
	CovCHLWeekLag   = "chl_week_lag"
	CovSSTDay       = "sst_day"
	CovSSTWeek      = "sst_week"
	CovSalDay       = "sal_day"
	CovSalWeek      = "sal_week"

	// ColProbability is the derived column appended by the grid predictor.
	ColProbability = "probability"
)

// Covariates lists every environmental covariate column in canonical order.
// Model formulas default to this full set; config may narrow it.
func Covariates() []string {
	return []string{
		CovSlope, CovDepth, CovSardineCatch,
		CovCHLDay, CovCHLWeek, CovCHLDayLag, CovCHLWeekLag,
		CovSSTDay, CovSSTWeek,
		CovSalDay, CovSalWeek,
	}
}

// CovariateDescriptions maps covariate columns to human-readable units,
// used in validation reports and model summaries.
var CovariateDescriptions = map[string]string{
	CovSlope:        "seafloor slope (degrees)",
	CovDepth:        "seafloor depth (m, negative below sea level)",
	CovSardineCatch: "annual sardine catch volume (tonnes)",
	CovCHLDay:       "chlorophyll-a, daily composite (mg/m3)",
	CovCHLWeek:      "chlorophyll-a, weekly composite (mg/m3)",
	CovCHLDayLag:    "chlorophyll-a, daily composite lagged one month (mg/m3)",
	CovCHLWeekLag:   "chlorophyll-a, weekly composite lagged one month (mg/m3)",
	CovSSTDay:       "sea-surface temperature, daily composite (degC)",
	CovSSTWeek:      "sea-surface temperature, weekly composite (degC)",
	CovSalDay:       "salinity, daily composite (PSU)",
	CovSalWeek:      "salinity, weekly composite (PSU)",
}

// ObservationColumns returns the full expected header of an observation CSV.
func ObservationColumns() []string {
	cols := []string{ColID, ColDay, ColMonth, ColYear, ColLat, ColLon, ColX, ColY, ColPresence}
	return append(cols, Covariates()...)
}

// GridColumns returns the full expected header of a prediction grid CSV.
func GridColumns() []string {
	return append([]string{ColX, ColY}, Covariates()...)
}
