package domain

import "errors"

// Sentinel errors for the four failure classes of the modeling workflow.
// Wrap them with fmt.Errorf("context: %w", Err...) so errors.Is works
// across package boundaries.
var (
	// ErrSchema marks a missing, misnamed, or wrongly typed column.
	ErrSchema = errors.New("schema error")

	// ErrDataQuality marks missing values in required fields, zero usable
	// rows after filtering, or non-binary label values.
	ErrDataQuality = errors.New("data quality error")

	// ErrNumerical marks optimizer non-convergence or a singular fit caused
	// by a degenerate covariate.
	ErrNumerical = errors.New("numerical error")

	// ErrExternal marks a geographic or bathymetric provider failure.
	ErrExternal = errors.New("external dependency error")
)
