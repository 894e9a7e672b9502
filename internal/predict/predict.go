// Package predict applies a fitted model to prediction grids.
package predict

import (
	"fmt"

	"github.com/globicephala/sdm/internal/dataset"
	"github.com/globicephala/sdm/internal/domain"
)

// Augment applies the model to every grid row and returns a new frame with
// a probability column appended. The input grid and the model are not
// modified. A grid lacking one of the model's covariate columns is a
// schema error; individual rows with missing covariate values degrade to
// NaN probabilities instead of failing the batch.
func Augment(m domain.Model, grid *dataset.Frame) (*dataset.Frame, error) {
	if err := grid.Require(m.Requires()...); err != nil {
		return nil, fmt.Errorf("predict: grid does not cover model covariates: %w", err)
	}

	probs, err := m.Predict(grid)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	out, err := grid.WithColumn(domain.ColProbability, probs)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return out, nil
}
