// Package domain models cetacean sighting survey data and the statistical
// objects fitted to it.
//
// # Data Source
//
// Observations come from dedicated line-transect surveys: each row is one
// sampling event with a binary outcome (the target species was present or
// absent at that station) plus a fixed set of environmental covariates
// sampled or interpolated at the station position. Coordinates are carried
// twice, as WGS-84 latitude/longitude and as projected metric x/y, so that
// distance-based operations never have to work in degrees.
//
// # Covariate Conventions
//
// Depth is negative below sea level and increases toward 0 near shore, the
// usual bathymetric convention. Slope is the local seafloor gradient in
// degrees. Remote-sensing covariates (chlorophyll, sea-surface temperature,
// salinity) come in day and week composites; chlorophyll additionally in
// one-month-lagged form, because primary production takes on the order of
// weeks to propagate up to cetacean prey. Forage-fish catch is an annual
// volume aggregated to the statistical rectangle containing the station.
//
// Label convention:
//
//	presence = 1  →  at least one individual detected at the station
//	presence = 0  →  effort at the station, no detection
//
// Any other label value is corrupt data and is rejected, never coerced.
//
// # Models
//
// Two model families are fitted against the same covariates: a binomial GLM
// (logistic link, one weight per covariate) and a binomial GAM (one penalized
// smooth per covariate, flexibility bounded by a basis dimension k). Both
// satisfy the [Model] interface; selection between them uses [CompareAIC]
// with a configurable meaningful-difference threshold.
//
// # Error Taxonomy
//
// Every failure in the workflow wraps exactly one of four sentinels so
// callers can branch on the class without string matching:
//
//	ErrSchema       missing or misnamed column, wrong type
//	ErrDataQuality  missing values, zero usable rows, non-binary labels
//	ErrNumerical    optimizer non-convergence, singular or degenerate fit
//	ErrExternal     coastline or bathymetry provider failure
package domain
