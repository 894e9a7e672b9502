// Package glm fits binomial generalized linear models with a logistic link
// by iteratively reweighted least squares.
package glm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/globicephala/sdm/internal/dataset"
	"github.com/globicephala/sdm/internal/domain"
)

const (
	defaultMaxIter = 50
	defaultTol     = 1e-9

	// weightFloor keeps IRLS weights away from zero when fitted
	// probabilities saturate, which would otherwise blow up the working
	// response.
	weightFloor = 1e-10
)

// Options tunes the IRLS solver. Zero values select defaults.
type Options struct {
	MaxIter int
	Tol     float64
}

func (o Options) withDefaults() Options {
	if o.MaxIter <= 0 {
		o.MaxIter = defaultMaxIter
	}
	if o.Tol <= 0 {
		o.Tol = defaultTol
	}
	return o
}

// Model is a fitted binomial GLM. Immutable after Fit.
type Model struct {
	covariates []string
	coef       []float64 // intercept first, then one weight per covariate
	stdErr     []float64
	summary    domain.Summary
}

var _ domain.Model = (*Model)(nil)

// Fit estimates a logistic regression of the binary label column on the
// given covariates. Rows with a missing value in the label or any covariate
// are excluded before fitting; losing every row that way is a data-quality
// error, as are non-binary labels. A singular system or failure to converge
// within the iteration cap is a numerical error.
func Fit(f *dataset.Frame, label string, covariates []string, opts Options) (*Model, error) {
	opts = opts.withDefaults()

	if len(covariates) == 0 {
		return nil, fmt.Errorf("glm: no covariates given: %w", domain.ErrSchema)
	}
	required := append([]string{label}, covariates...)
	if err := f.Require(required...); err != nil {
		return nil, fmt.Errorf("glm: %w", err)
	}
	if err := checkBinary(f.Col(label)); err != nil {
		return nil, fmt.Errorf("glm: label %q: %w", label, err)
	}

	cf, err := f.CompleteRows(required...)
	if err != nil {
		return nil, fmt.Errorf("glm: %w", err)
	}

	n := cf.Len()
	p := len(covariates) + 1
	if n <= p {
		return nil, fmt.Errorf("glm: %d usable rows for %d parameters: %w", n, p, domain.ErrDataQuality)
	}

	for _, c := range covariates {
		if constant(cf.Col(c)) {
			return nil, fmt.Errorf("glm: covariate %q has zero variance: %w", c, domain.ErrNumerical)
		}
	}

	y := cf.Col(label)
	x := designMatrix(cf, covariates)

	coef, dev, iters, fisher, err := irls(x, y, opts)
	if err != nil {
		return nil, err
	}

	stdErr, err := standardErrors(fisher)
	if err != nil {
		return nil, fmt.Errorf("glm: covariance of estimates: %w", domain.ErrNumerical)
	}

	m := &Model{
		covariates: append([]string(nil), covariates...),
		coef:       coef,
		stdErr:     stdErr,
	}
	m.summary = m.buildSummary(n, dev, nullDeviance(y), iters)
	return m, nil
}

// Name implements domain.Model.
func (m *Model) Name() string { return "glm" }

// Requires implements domain.Model.
func (m *Model) Requires() []string {
	return append([]string(nil), m.covariates...)
}

// AIC implements domain.Model.
func (m *Model) AIC() float64 { return m.summary.AIC }

// Summary implements domain.Model.
func (m *Model) Summary() domain.Summary { return m.summary }

// Coefficients returns the fitted weights, intercept first. The slice is a
// copy.
func (m *Model) Coefficients() []float64 {
	return append([]float64(nil), m.coef...)
}

// Predict computes response-scale probabilities for each row of t. Rows
// with a missing value in any required covariate yield NaN rather than
// failing the batch. A missing covariate column fails the whole call.
func (m *Model) Predict(t domain.Table) ([]float64, error) {
	cols := make([][]float64, len(m.covariates))
	for i, c := range m.covariates {
		if !t.Has(c) {
			return nil, fmt.Errorf("glm predict: required column %q is missing: %w", c, domain.ErrSchema)
		}
		cols[i] = t.Col(c)
	}

	out := make([]float64, t.Len())
	for i := range out {
		eta := m.coef[0]
		valid := true
		for j, col := range cols {
			v := col[i]
			if math.IsNaN(v) {
				valid = false
				break
			}
			eta += m.coef[j+1] * v
		}
		if !valid {
			out[i] = math.NaN()
			continue
		}
		out[i] = sigmoid(eta)
	}
	return out, nil
}

// irls runs iteratively reweighted least squares, returning the estimates,
// the residual deviance, the iteration count, and the final Fisher
// information matrix.
func irls(x *mat.Dense, y []float64, opts Options) (coef []float64, dev float64, iters int, fisher *mat.SymDense, err error) {
	n, p := x.Dims()
	coef = make([]float64, p)
	eta := make([]float64, n)
	mu := make([]float64, n)
	w := make([]float64, n)
	z := make([]float64, n)

	dev = math.Inf(1)
	for iter := 1; iter <= opts.MaxIter; iter++ {
		for i := 0; i < n; i++ {
			eta[i] = dot(x.RawRowView(i), coef)
			mu[i] = sigmoid(eta[i])
			w[i] = math.Max(mu[i]*(1-mu[i]), weightFloor)
			z[i] = eta[i] + (y[i]-mu[i])/w[i]
		}

		fisher, coefVec, solveErr := weightedLeastSquares(x, w, z)
		if solveErr != nil {
			return nil, 0, iter, nil, fmt.Errorf("glm: weighted least squares is singular: %w", domain.ErrNumerical)
		}
		copy(coef, coefVec)

		newDev := binomialDeviance(x, y, coef)
		if math.Abs(dev-newDev) < opts.Tol*(math.Abs(newDev)+0.1) {
			return coef, newDev, iter, fisher, nil
		}
		dev = newDev
	}

	return nil, 0, opts.MaxIter, nil,
		fmt.Errorf("glm: IRLS did not converge in %d iterations: %w", opts.MaxIter, domain.ErrNumerical)
}

// weightedLeastSquares solves (XᵀWX)β = XᵀWz and returns the normal matrix
// alongside the solution.
func weightedLeastSquares(x *mat.Dense, w, z []float64) (*mat.SymDense, []float64, error) {
	n, p := x.Dims()

	wx := mat.NewDense(n, p, nil)
	wz := make([]float64, n)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		for j := 0; j < p; j++ {
			wx.Set(i, j, w[i]*row[j])
		}
		wz[i] = w[i] * z[i]
	}

	var xtwx mat.Dense
	xtwx.Mul(x.T(), wx)
	normal := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			normal.SetSym(i, j, xtwx.At(i, j))
		}
	}

	var xtwz mat.VecDense
	xtwz.MulVec(x.T(), mat.NewVecDense(n, wz))

	var chol mat.Cholesky
	if ok := chol.Factorize(normal); !ok {
		return nil, nil, fmt.Errorf("normal matrix not positive definite")
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xtwz); err != nil {
		return nil, nil, err
	}

	out := make([]float64, p)
	copy(out, beta.RawVector().Data)
	return normal, out, nil
}

// standardErrors extracts sqrt of the diagonal of the inverse Fisher
// information.
func standardErrors(fisher *mat.SymDense) ([]float64, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(fisher); !ok {
		return nil, fmt.Errorf("fisher information not positive definite")
	}
	p := fisher.SymmetricDim()
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, err
	}
	out := make([]float64, p)
	for i := 0; i < p; i++ {
		out[i] = math.Sqrt(inv.At(i, i))
	}
	return out, nil
}

func (m *Model) buildSummary(n int, dev, nullDev float64, iters int) domain.Summary {
	normal := distuv.UnitNormal
	terms := make([]domain.Term, len(m.covariates))
	for i, c := range m.covariates {
		est := m.coef[i+1]
		se := m.stdErr[i+1]
		zstat := est / se
		terms[i] = domain.Term{
			Covariate: c,
			Kind:      domain.TermLinear,
			Estimate:  est,
			StdErr:    se,
			Statistic: zstat,
			PValue:    2 * normal.Survival(math.Abs(zstat)),
		}
	}

	params := float64(len(m.coef))
	return domain.Summary{
		Family:          "binomial",
		Link:            "logit",
		N:               n,
		Intercept:       m.coef[0],
		InterceptStdErr: m.stdErr[0],
		Terms:           terms,
		NullDeviance:    nullDev,
		Deviance:        dev,
		AIC:             dev + 2*params,
		Converged:       true,
		Iterations:      iters,
		FittedAt:        domain.Now(),
	}
}

// designMatrix builds [1 | covariates] from complete rows.
func designMatrix(f *dataset.Frame, covariates []string) *mat.Dense {
	n := f.Len()
	p := len(covariates) + 1
	x := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
	}
	for j, c := range covariates {
		col := f.Col(c)
		for i := 0; i < n; i++ {
			x.Set(i, j+1, col[i])
		}
	}
	return x
}

func binomialDeviance(x *mat.Dense, y, coef []float64) float64 {
	n, _ := x.Dims()
	dev := 0.0
	for i := 0; i < n; i++ {
		mu := sigmoid(dot(x.RawRowView(i), coef))
		dev += devianceTerm(y[i], mu)
	}
	return dev
}

func nullDeviance(y []float64) float64 {
	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))

	dev := 0.0
	for _, v := range y {
		dev += devianceTerm(v, mean)
	}
	return dev
}

// devianceTerm is -2*loglik for a single Bernoulli observation, with logs
// clamped so saturated probabilities stay finite.
func devianceTerm(y, mu float64) float64 {
	const eps = 1e-12
	mu = math.Min(math.Max(mu, eps), 1-eps)
	if y == 1 {
		return -2 * math.Log(mu)
	}
	return -2 * math.Log(1-mu)
}

func sigmoid(eta float64) float64 {
	return 1 / (1 + math.Exp(-eta))
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func constant(vals []float64) bool {
	first := math.NaN()
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(first) {
			first = v
			continue
		}
		if v != first {
			return false
		}
	}
	return true
}

func checkBinary(labels []float64) error {
	for i, v := range labels {
		if math.IsNaN(v) {
			continue
		}
		if v != 0 && v != 1 {
			return fmt.Errorf("row %d holds non-binary value %g: %w", i+1, v, domain.ErrDataQuality)
		}
	}
	return nil
}
