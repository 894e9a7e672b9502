package predict_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globicephala/sdm/internal/dataset"
	"github.com/globicephala/sdm/internal/domain"
	"github.com/globicephala/sdm/internal/predict"
)

// fixedModel predicts a constant probability, NaN where its single
// covariate is missing.
type fixedModel struct {
	covariate string
	value     float64
	err       error
}

func (m *fixedModel) Name() string            { return "fixed" }
func (m *fixedModel) Requires() []string      { return []string{m.covariate} }
func (m *fixedModel) AIC() float64            { return 0 }
func (m *fixedModel) Summary() domain.Summary { return domain.Summary{} }

func (m *fixedModel) Predict(t domain.Table) ([]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	col := t.Col(m.covariate)
	out := make([]float64, t.Len())
	for i := range out {
		if math.IsNaN(col[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = m.value
	}
	return out, nil
}

func TestAugment(t *testing.T) {
	grid := dataset.NewFrame(3)
	require.NoError(t, grid.SetCol("x", []float64{1, 2, 3}))
	require.NoError(t, grid.SetCol(domain.CovDepth, []float64{-100, math.NaN(), -300}))

	m := &fixedModel{covariate: domain.CovDepth, value: 0.6}
	aug, err := predict.Augment(m, grid)
	require.NoError(t, err)

	require.True(t, aug.Has(domain.ColProbability))
	probs := aug.Col(domain.ColProbability)
	assert.Equal(t, 0.6, probs[0])
	assert.True(t, math.IsNaN(probs[1]))
	assert.Equal(t, 0.6, probs[2])

	// The input grid is untouched.
	assert.False(t, grid.Has(domain.ColProbability))
}

func TestAugment_MissingCovariateColumn(t *testing.T) {
	grid := dataset.NewFrame(2)
	require.NoError(t, grid.SetCol("x", []float64{1, 2}))

	m := &fixedModel{covariate: domain.CovDepth, value: 0.5}
	_, err := predict.Augment(m, grid)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchema)
	assert.Contains(t, err.Error(), domain.CovDepth)
}

func TestAugment_PropagatesModelError(t *testing.T) {
	grid := dataset.NewFrame(1)
	require.NoError(t, grid.SetCol(domain.CovDepth, []float64{-100}))

	boom := errors.New("saturated fit")
	m := &fixedModel{covariate: domain.CovDepth, err: boom}
	_, err := predict.Augment(m, grid)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
