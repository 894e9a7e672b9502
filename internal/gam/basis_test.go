package gam

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globicephala/sdm/internal/domain"
)

func TestNewBasis(t *testing.T) {
	values := []float64{0, 0.2, 0.5, 0.8, 1}

	b, err := newBasis(values, 10)
	require.NoError(t, err)
	assert.Equal(t, 9, b.dim())
	assert.Len(t, b.knots, 10+order)
	assert.Equal(t, 0.0, b.knots[0])
	assert.Equal(t, 1.0, b.knots[len(b.knots)-1])
}

func TestNewBasis_Errors(t *testing.T) {
	_, err := newBasis([]float64{0, 1}, 3)
	assert.ErrorIs(t, err, domain.ErrSchema)

	_, err = newBasis([]float64{2, 2, 2}, 10)
	assert.ErrorIs(t, err, domain.ErrNumerical)

	_, err = newBasis([]float64{math.NaN(), math.NaN()}, 10)
	assert.ErrorIs(t, err, domain.ErrNumerical)
}

func TestBasis_PartitionOfUnity(t *testing.T) {
	b, err := newBasis([]float64{0, 1}, 8)
	require.NoError(t, err)

	for _, x := range []float64{0, 0.1, 0.25, 0.5, 0.77, 0.99, 1} {
		vals := b.eval(x)
		require.Len(t, vals, 8)

		sum := 0.0
		for _, v := range vals {
			assert.GreaterOrEqual(t, v, 0.0, "x=%g", x)
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-12, "x=%g", x)
	}
}

func TestBasis_EvalClampsOutOfRange(t *testing.T) {
	b, err := newBasis([]float64{0, 1}, 6)
	require.NoError(t, err)

	assert.Equal(t, b.eval(0), b.eval(-3))
	assert.Equal(t, b.eval(1), b.eval(42))
}

func TestBasis_ColumnsAreCentered(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i) / 99
	}

	b, err := newBasis(values, 10)
	require.NoError(t, err)
	cols := b.columns(values)

	n, c := cols.Dims()
	assert.Equal(t, 100, n)
	assert.Equal(t, b.dim(), c)

	for j := 0; j < c; j++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += cols.At(i, j)
		}
		assert.InDelta(t, 0, sum, 1e-9, "column %d", j)
	}

	// evalRow reproduces a training row exactly.
	row := b.evalRow(values[37])
	for j := 0; j < c; j++ {
		assert.InDelta(t, cols.At(37, j), row[j], 1e-12)
	}
}

func TestBasis_PenaltyAnnihilatesStraightLines(t *testing.T) {
	b, err := newBasis([]float64{0, 1}, 8)
	require.NoError(t, err)
	_ = b.columns([]float64{0, 0.25, 0.5, 0.75, 1})

	s := b.penalty()
	dim := b.dim()
	assert.Equal(t, dim, s.SymmetricDim())

	// Symmetric and positive semidefinite on the diagonal.
	for i := 0; i < dim; i++ {
		assert.GreaterOrEqual(t, s.At(i, i), 0.0)
		for j := 0; j < dim; j++ {
			assert.Equal(t, s.At(i, j), s.At(j, i))
		}
	}

	// Second differences of a linear coefficient sequence are zero, so a
	// linear sequence restricted to the kept columns scores near zero
	// except for boundary terms involving the dropped column.
	quad := 0.0
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			quad += float64(i) * s.At(i, j) * float64(j)
		}
	}
	assert.GreaterOrEqual(t, quad, 0.0)
}
