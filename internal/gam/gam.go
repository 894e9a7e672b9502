// Package gam fits binomial generalized additive models: one penalized
// cubic regression spline per covariate, estimated by penalized IRLS with
// the smoothing parameter chosen by generalized cross-validation.
package gam

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/globicephala/sdm/internal/dataset"
	"github.com/globicephala/sdm/internal/domain"
)

const (
	defaultBasisDim = 10
	defaultMaxIter  = 100
	defaultTol      = 1e-8

	weightFloor = 1e-10
)

// defaultLambdaGrid spans eight orders of magnitude around 1; GCV picks
// the best value on this grid.
var defaultLambdaGrid = []float64{1e-4, 1e-3, 1e-2, 1e-1, 1, 1e1, 1e2, 1e3, 1e4}

// Options tunes the GAM fit. Zero values select defaults. Setting Lambda
// fixes the smoothing parameter and skips the GCV search, which keeps
// comparisons across basis dimensions on equal footing.
type Options struct {
	// BasisDim is the per-covariate maximum-flexibility parameter k: the
	// spline basis dimension. Each smooth can spend at most k-1 effective
	// degrees of freedom.
	BasisDim int
	Lambda   float64
	MaxIter  int
	Tol      float64
}

func (o Options) withDefaults() Options {
	if o.BasisDim <= 0 {
		o.BasisDim = defaultBasisDim
	}
	if o.MaxIter <= 0 {
		o.MaxIter = defaultMaxIter
	}
	if o.Tol <= 0 {
		o.Tol = defaultTol
	}
	return o
}

// term is one fitted smooth: its basis and the slice of design-matrix
// columns it owns.
type term struct {
	covariate string
	basis     *basis
	offset    int // first column in the design matrix
	edf       float64
}

// Model is a fitted binomial GAM. Immutable after Fit.
type Model struct {
	covariates []string
	terms      []term
	coef       []float64 // intercept first, then per-term blocks
	lambda     float64
	summary    domain.Summary
}

var _ domain.Model = (*Model)(nil)

// Fit estimates an additive logistic model of the binary label on smooth
// functions of each covariate. Validation and failure modes match the GLM
// fitter, with one addition: a basis dimension below the cubic-spline
// minimum is rejected up front.
func Fit(f *dataset.Frame, label string, covariates []string, opts Options) (*Model, error) {
	opts = opts.withDefaults()

	if len(covariates) == 0 {
		return nil, fmt.Errorf("gam: no covariates given: %w", domain.ErrSchema)
	}
	required := append([]string{label}, covariates...)
	if err := f.Require(required...); err != nil {
		return nil, fmt.Errorf("gam: %w", err)
	}
	if err := checkBinary(f.Col(label)); err != nil {
		return nil, fmt.Errorf("gam: label %q: %w", label, err)
	}

	cf, err := f.CompleteRows(required...)
	if err != nil {
		return nil, fmt.Errorf("gam: %w", err)
	}

	n := cf.Len()
	y := cf.Col(label)

	terms, x, err := assembleDesign(cf, covariates, opts.BasisDim)
	if err != nil {
		return nil, err
	}
	_, p := x.Dims()
	if n < p {
		return nil, fmt.Errorf("gam: %d usable rows for %d spline coefficients: %w", n, p, domain.ErrDataQuality)
	}

	penalty := assemblePenalty(terms, p)

	grid := defaultLambdaGrid
	if opts.Lambda > 0 {
		grid = []float64{opts.Lambda}
	}

	var best *pirlsResult
	for _, lambda := range grid {
		res, err := pirls(x, y, penalty, lambda, opts)
		if err != nil {
			continue
		}
		if best == nil || res.gcv < best.gcv {
			best = res
		}
	}
	if best == nil {
		return nil, fmt.Errorf("gam: penalized IRLS failed for every smoothing parameter: %w", domain.ErrNumerical)
	}

	for i := range terms {
		terms[i].edf = best.termEDF(terms[i].offset, terms[i].basis.dim())
	}

	m := &Model{
		covariates: append([]string(nil), covariates...),
		terms:      terms,
		coef:       best.coef,
		lambda:     best.lambda,
	}
	m.summary = m.buildSummary(n, best, nullDeviance(y))
	return m, nil
}

// Name implements domain.Model.
func (m *Model) Name() string { return "gam" }

// Requires implements domain.Model.
func (m *Model) Requires() []string {
	return append([]string(nil), m.covariates...)
}

// AIC implements domain.Model.
func (m *Model) AIC() float64 { return m.summary.AIC }

// Summary implements domain.Model.
func (m *Model) Summary() domain.Summary { return m.summary }

// Lambda returns the selected smoothing parameter.
func (m *Model) Lambda() float64 { return m.lambda }

// EDF returns the effective degrees of freedom of one covariate's smooth.
func (m *Model) EDF(covariate string) float64 {
	for _, t := range m.terms {
		if t.covariate == covariate {
			return t.edf
		}
	}
	return 0
}

// Predict computes response-scale probabilities per row. Missing covariate
// values yield NaN for that row; a missing column fails the call.
func (m *Model) Predict(t domain.Table) ([]float64, error) {
	cols := make([][]float64, len(m.terms))
	for i, tm := range m.terms {
		if !t.Has(tm.covariate) {
			return nil, fmt.Errorf("gam predict: required column %q is missing: %w", tm.covariate, domain.ErrSchema)
		}
		cols[i] = t.Col(tm.covariate)
	}

	out := make([]float64, t.Len())
	for i := range out {
		eta := m.coef[0]
		valid := true
		for j, tm := range m.terms {
			v := cols[j][i]
			if math.IsNaN(v) {
				valid = false
				break
			}
			row := tm.basis.evalRow(v)
			for c, bv := range row {
				eta += m.coef[tm.offset+c] * bv
			}
		}
		if !valid {
			out[i] = math.NaN()
			continue
		}
		out[i] = sigmoid(eta)
	}
	return out, nil
}

// assembleDesign builds the block design matrix [1 | B₁ | … | Bₘ] and the
// term bookkeeping.
func assembleDesign(f *dataset.Frame, covariates []string, k int) ([]term, *mat.Dense, error) {
	n := f.Len()
	terms := make([]term, len(covariates))
	blocks := make([]*mat.Dense, len(covariates))

	p := 1
	for i, c := range covariates {
		b, err := newBasis(f.Col(c), k)
		if err != nil {
			return nil, nil, fmt.Errorf("gam: covariate %q: %w", c, err)
		}
		blocks[i] = b.columns(f.Col(c))
		terms[i] = term{covariate: c, basis: b, offset: p}
		p += b.dim()
	}

	x := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
	}
	for bi, block := range blocks {
		dim := terms[bi].basis.dim()
		off := terms[bi].offset
		for i := 0; i < n; i++ {
			for j := 0; j < dim; j++ {
				x.Set(i, off+j, block.At(i, j))
			}
		}
	}
	return terms, x, nil
}

// assemblePenalty places each term's difference penalty on the diagonal of
// a p×p block matrix. The intercept is unpenalized.
func assemblePenalty(terms []term, p int) *mat.SymDense {
	s := mat.NewSymDense(p, nil)
	for _, t := range terms {
		ts := t.basis.penalty()
		dim := t.basis.dim()
		for i := 0; i < dim; i++ {
			for j := i; j < dim; j++ {
				s.SetSym(t.offset+i, t.offset+j, ts.At(i, j))
			}
		}
	}
	return s
}

// pirlsResult carries everything the summary needs from one converged
// penalized fit.
type pirlsResult struct {
	coef     []float64
	lambda   float64
	deviance float64
	edfTotal float64
	edfDiag  []float64
	cov      *mat.SymDense // (XᵀWX + λS)⁻¹, the Bayesian posterior covariance
	gcv      float64
	iters    int
	n        int
}

func (r *pirlsResult) termEDF(offset, dim int) float64 {
	edf := 0.0
	for i := offset; i < offset+dim; i++ {
		edf += r.edfDiag[i]
	}
	return edf
}

// pirls runs penalized IRLS at a fixed smoothing parameter.
func pirls(x *mat.Dense, y []float64, penalty *mat.SymDense, lambda float64, opts Options) (*pirlsResult, error) {
	n, p := x.Dims()
	coef := make([]float64, p)
	eta := make([]float64, n)
	mu := make([]float64, n)
	w := make([]float64, n)
	z := make([]float64, n)

	dev := math.Inf(1)
	for iter := 1; iter <= opts.MaxIter; iter++ {
		for i := 0; i < n; i++ {
			eta[i] = dot(x.RawRowView(i), coef)
			mu[i] = sigmoid(eta[i])
			w[i] = math.Max(mu[i]*(1-mu[i]), weightFloor)
			z[i] = eta[i] + (y[i]-mu[i])/w[i]
		}

		normal, penalized, beta, err := penalizedSolve(x, w, z, penalty, lambda)
		if err != nil {
			return nil, fmt.Errorf("gam: penalized system singular at lambda=%g: %w", lambda, domain.ErrNumerical)
		}
		copy(coef, beta)

		newDev := deviance(x, y, coef)
		if math.Abs(dev-newDev) < opts.Tol*(math.Abs(newDev)+0.1) {
			return finishPIRLS(normal, penalized, coef, newDev, lambda, n, iter)
		}
		dev = newDev
	}

	return nil, fmt.Errorf("gam: penalized IRLS did not converge in %d iterations at lambda=%g: %w",
		opts.MaxIter, lambda, domain.ErrNumerical)
}

// penalizedSolve solves (XᵀWX + λS)β = XᵀWz, returning the unpenalized
// normal matrix, the penalized one, and the solution.
func penalizedSolve(x *mat.Dense, w, z []float64, penalty *mat.SymDense, lambda float64) (normal, penalized *mat.SymDense, coef []float64, err error) {
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
	normal = mat.NewSymDense(p, nil)
	penalized = mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			v := xtwx.At(i, j)
			normal.SetSym(i, j, v)
			penalized.SetSym(i, j, v+lambda*penalty.At(i, j))
		}
	}

	var xtwz mat.VecDense
	xtwz.MulVec(x.T(), mat.NewVecDense(n, wz))

	var chol mat.Cholesky
	if ok := chol.Factorize(penalized); !ok {
		return nil, nil, nil, fmt.Errorf("penalized normal matrix not positive definite")
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xtwz); err != nil {
		return nil, nil, nil, err
	}

	coef = make([]float64, p)
	copy(coef, beta.RawVector().Data)
	return normal, penalized, coef, nil
}

// finishPIRLS computes the EDF diagonal, posterior covariance, and GCV
// score for a converged fit.
func finishPIRLS(normal, penalized *mat.SymDense, coef []float64, dev, lambda float64, n, iters int) (*pirlsResult, error) {
	p := penalized.SymmetricDim()

	var chol mat.Cholesky
	if ok := chol.Factorize(penalized); !ok {
		return nil, fmt.Errorf("gam: penalized system singular: %w", domain.ErrNumerical)
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return nil, fmt.Errorf("gam: inverting penalized system: %w", domain.ErrNumerical)
	}

	// F = (XᵀWX + λS)⁻¹ XᵀWX; its diagonal splits the effective degrees
	// of freedom across coefficients, its trace is the model EDF.
	var f mat.Dense
	f.Mul(&cov, normal)

	edfDiag := make([]float64, p)
	edfTotal := 0.0
	for i := 0; i < p; i++ {
		edfDiag[i] = f.At(i, i)
		edfTotal += edfDiag[i]
	}

	denom := float64(n) - edfTotal
	if denom <= 0 {
		return nil, fmt.Errorf("gam: effective degrees of freedom %.1f exceed sample size %d: %w",
			edfTotal, n, domain.ErrNumerical)
	}

	return &pirlsResult{
		coef:     coef,
		lambda:   lambda,
		deviance: dev,
		edfTotal: edfTotal,
		edfDiag:  edfDiag,
		cov:      &cov,
		gcv:      float64(n) * dev / (denom * denom),
		iters:    iters,
		n:        n,
	}, nil
}

func (m *Model) buildSummary(n int, res *pirlsResult, nullDev float64) domain.Summary {
	terms := make([]domain.Term, len(m.terms))
	for i, t := range m.terms {
		wald, se := m.termWald(res, t)
		df := math.Max(1, math.Round(t.edf))
		chi2 := distuv.ChiSquared{K: df}
		terms[i] = domain.Term{
			Covariate: t.covariate,
			Kind:      domain.TermSmooth,
			EDF:       t.edf,
			StdErr:    se,
			Statistic: wald,
			PValue:    chi2.Survival(wald),
		}
	}

	return domain.Summary{
		Family:          "binomial",
		Link:            "logit",
		N:               n,
		Intercept:       m.coef[0],
		InterceptStdErr: math.Sqrt(res.cov.At(0, 0)),
		Terms:           terms,
		NullDeviance:    nullDev,
		Deviance:        res.deviance,
		AIC:             res.deviance + 2*res.edfTotal,
		Converged:       true,
		Iterations:      res.iters,
		FittedAt:        domain.Now(),
	}
}

// termWald computes the Wald statistic βᵀV⁻¹β for one smooth's coefficient
// block, plus the mean coefficient standard error for reporting.
func (m *Model) termWald(res *pirlsResult, t term) (wald, meanSE float64) {
	dim := t.basis.dim()
	sub := mat.NewSymDense(dim, nil)
	beta := mat.NewVecDense(dim, nil)
	for i := 0; i < dim; i++ {
		beta.SetVec(i, m.coef[t.offset+i])
		meanSE += math.Sqrt(res.cov.At(t.offset+i, t.offset+i))
		for j := i; j < dim; j++ {
			sub.SetSym(i, j, res.cov.At(t.offset+i, t.offset+j))
		}
	}
	meanSE /= float64(dim)

	var chol mat.Cholesky
	if ok := chol.Factorize(sub); !ok {
		return math.NaN(), meanSE
	}
	var solved mat.VecDense
	if err := chol.SolveVecTo(&solved, beta); err != nil {
		return math.NaN(), meanSE
	}
	return mat.Dot(beta, &solved), meanSE
}

func deviance(x *mat.Dense, y, coef []float64) float64 {
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
