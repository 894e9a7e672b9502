package gam_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globicephala/sdm/internal/dataset"
	"github.com/globicephala/sdm/internal/domain"
	"github.com/globicephala/sdm/internal/gam"
)

// wigglyFrame draws labels from logit(p) = 2*sin(2πx), a relationship no
// straight line can follow.
func wigglyFrame(t *testing.T, n int, seed int64) *dataset.Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	x := make([]float64, n)
	labels := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = rng.Float64()
		eta := 2 * math.Sin(2*math.Pi*x[i])
		if rng.Float64() < 1/(1+math.Exp(-eta)) {
			labels[i] = 1
		}
	}

	f := dataset.NewFrame(n)
	require.NoError(t, f.SetCol(domain.CovSSTDay, x))
	require.NoError(t, f.SetCol(domain.ColPresence, labels))
	return f
}

func TestFit_CapturesNonlinearSignal(t *testing.T) {
	f := wigglyFrame(t, 800, 5)

	m, err := gam.Fit(f, domain.ColPresence, []string{domain.CovSSTDay}, gam.Options{BasisDim: 10})
	require.NoError(t, err)

	s := m.Summary()
	assert.Equal(t, "binomial", s.Family)
	assert.Equal(t, 800, s.N)
	assert.True(t, s.Converged)

	// A sine through half the unit interval needs several degrees of
	// freedom; a linear fit would leave the deviance near the null.
	assert.Greater(t, m.EDF(domain.CovSSTDay), 2.0)
	assert.Less(t, s.Deviance, 0.8*s.NullDeviance)

	require.Len(t, s.Terms, 1)
	term := s.Terms[0]
	assert.Equal(t, domain.TermSmooth, term.Kind)
	assert.Less(t, term.PValue, 0.05)
	assert.GreaterOrEqual(t, term.PValue, 0.0)
	assert.Greater(t, m.Lambda(), 0.0)
}

func TestFit_EDFBoundedByBasisDimension(t *testing.T) {
	f := wigglyFrame(t, 800, 5)

	for _, k := range []int{5, 8, 12} {
		m, err := gam.Fit(f, domain.ColPresence, []string{domain.CovSSTDay}, gam.Options{BasisDim: k})
		require.NoError(t, err)
		edf := m.EDF(domain.CovSSTDay)
		assert.Greater(t, edf, 0.0, "k=%d", k)
		assert.LessOrEqual(t, edf, float64(k-1)+1e-9, "k=%d", k)
	}
}

func TestFit_LowerBasisDimensionNeverAddsFlexibility(t *testing.T) {
	f := wigglyFrame(t, 800, 5)

	// Fixing lambda keeps the comparison on equal footing: the only thing
	// changing across fits is the size of the basis.
	var prev float64
	for i, k := range []int{5, 8, 12} {
		m, err := gam.Fit(f, domain.ColPresence, []string{domain.CovSSTDay},
			gam.Options{BasisDim: k, Lambda: 1})
		require.NoError(t, err)

		edf := m.EDF(domain.CovSSTDay)
		if i > 0 {
			assert.GreaterOrEqual(t, edf+1e-9, prev, "k=%d must not lose flexibility", k)
		}
		prev = edf
	}
}

func TestFit_IsDeterministic(t *testing.T) {
	f := wigglyFrame(t, 600, 9)
	opts := gam.Options{BasisDim: 10}

	first, err := gam.Fit(f, domain.ColPresence, []string{domain.CovSSTDay}, opts)
	require.NoError(t, err)
	second, err := gam.Fit(f, domain.ColPresence, []string{domain.CovSSTDay}, opts)
	require.NoError(t, err)

	assert.Equal(t, first.AIC(), second.AIC())
	assert.Equal(t, first.Summary().Terms, second.Summary().Terms)

	p1, err := first.Predict(f)
	require.NoError(t, err)
	p2, err := second.Predict(f)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestPredict_ProbabilitiesInUnitInterval(t *testing.T) {
	f := wigglyFrame(t, 600, 9)

	m, err := gam.Fit(f, domain.ColPresence, []string{domain.CovSSTDay}, gam.Options{})
	require.NoError(t, err)

	probs, err := m.Predict(f)
	require.NoError(t, err)
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestPredict_ExtrapolationClampsToRange(t *testing.T) {
	f := wigglyFrame(t, 600, 9)

	m, err := gam.Fit(f, domain.ColPresence, []string{domain.CovSSTDay}, gam.Options{})
	require.NoError(t, err)

	g := dataset.NewFrame(3)
	require.NoError(t, g.SetCol(domain.CovSSTDay, []float64{-5, 0.5, 5}))

	probs, err := m.Predict(g)
	require.NoError(t, err)

	// Values outside the training range evaluate at the nearest boundary,
	// so they stay finite and inside the unit interval.
	for _, p := range probs {
		assert.False(t, math.IsNaN(p))
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestPredict_MissingValueYieldsNaN(t *testing.T) {
	f := wigglyFrame(t, 600, 9)

	m, err := gam.Fit(f, domain.ColPresence, []string{domain.CovSSTDay}, gam.Options{})
	require.NoError(t, err)

	g := dataset.NewFrame(2)
	require.NoError(t, g.SetCol(domain.CovSSTDay, []float64{0.3, math.NaN()}))

	probs, err := m.Predict(g)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(probs[0]))
	assert.True(t, math.IsNaN(probs[1]))
}

func TestPredict_MissingColumnFails(t *testing.T) {
	f := wigglyFrame(t, 600, 9)

	m, err := gam.Fit(f, domain.ColPresence, []string{domain.CovSSTDay}, gam.Options{})
	require.NoError(t, err)

	g := dataset.NewFrame(1)
	require.NoError(t, g.SetCol(domain.CovDepth, []float64{0.5}))

	_, err = m.Predict(g)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchema)
}

func TestFit_Errors(t *testing.T) {
	t.Run("no covariates", func(t *testing.T) {
		f := wigglyFrame(t, 100, 3)
		_, err := gam.Fit(f, domain.ColPresence, nil, gam.Options{})
		assert.ErrorIs(t, err, domain.ErrSchema)
	})

	t.Run("missing covariate column", func(t *testing.T) {
		f := wigglyFrame(t, 100, 3)
		_, err := gam.Fit(f, domain.ColPresence, []string{domain.CovDepth}, gam.Options{})
		assert.ErrorIs(t, err, domain.ErrSchema)
	})

	t.Run("non-binary label", func(t *testing.T) {
		f := wigglyFrame(t, 100, 3)
		labels := append([]float64(nil), f.Col(domain.ColPresence)...)
		labels[0] = 0.5
		require.NoError(t, f.SetCol(domain.ColPresence, labels))

		_, err := gam.Fit(f, domain.ColPresence, []string{domain.CovSSTDay}, gam.Options{})
		assert.ErrorIs(t, err, domain.ErrDataQuality)
	})

	t.Run("constant covariate", func(t *testing.T) {
		f := wigglyFrame(t, 100, 3)
		flat := make([]float64, 100)
		for i := range flat {
			flat[i] = 12.0
		}
		require.NoError(t, f.SetCol(domain.CovSSTDay, flat))

		_, err := gam.Fit(f, domain.ColPresence, []string{domain.CovSSTDay}, gam.Options{})
		assert.ErrorIs(t, err, domain.ErrNumerical)
	})

	t.Run("too few rows for the basis", func(t *testing.T) {
		f := wigglyFrame(t, 8, 3)
		_, err := gam.Fit(f, domain.ColPresence, []string{domain.CovSSTDay}, gam.Options{BasisDim: 12})
		assert.ErrorIs(t, err, domain.ErrDataQuality)
	})
}

func TestFit_AICUsesEffectiveDegreesOfFreedom(t *testing.T) {
	f := wigglyFrame(t, 800, 5)

	m, err := gam.Fit(f, domain.ColPresence, []string{domain.CovSSTDay}, gam.Options{})
	require.NoError(t, err)

	s := m.Summary()
	// AIC charges deviance plus twice the total EDF, which includes the
	// intercept, so it exceeds deviance by more than 2.
	assert.Greater(t, s.AIC, s.Deviance+2)
	assert.Equal(t, s.AIC, m.AIC())
	assert.Equal(t, "gam", m.Name())
	assert.Equal(t, []string{domain.CovSSTDay}, m.Requires())
}
