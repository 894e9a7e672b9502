package gam

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/globicephala/sdm/internal/domain"
)

// order is the B-spline order: 4 gives cubic splines.
const order = 4

// minBasisDim is the smallest usable basis dimension for a cubic smooth.
const minBasisDim = order

// basis holds everything needed to evaluate one covariate's spline basis
// at new data: the clamped knot vector, plus the training-data column means
// used for the identifiability constraint. The last basis column is dropped
// so the smooth cannot reproduce the global intercept.
type basis struct {
	knots   []float64
	centers []float64 // length dim()-1, means of the kept columns
	k       int       // requested basis dimension
}

// dim returns the number of free columns the smooth contributes to the
// design matrix.
func (b *basis) dim() int { return b.k - 1 }

// newBasis builds a clamped uniform cubic B-spline basis of dimension k
// over the range of values.
func newBasis(values []float64, k int) (*basis, error) {
	if k < minBasisDim {
		return nil, fmt.Errorf("basis dimension %d below minimum %d: %w", k, minBasisDim, domain.ErrSchema)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if !(hi > lo) {
		return nil, fmt.Errorf("degenerate covariate range [%g, %g]: %w", lo, hi, domain.ErrNumerical)
	}

	// Clamped knot vector: order-fold boundary knots, k-order interior
	// knots evenly spaced. Total knots = k + order, basis functions = k.
	knots := make([]float64, k+order)
	for i := 0; i < order; i++ {
		knots[i] = lo
		knots[len(knots)-1-i] = hi
	}
	interior := k - order
	step := (hi - lo) / float64(interior+1)
	for i := 1; i <= interior; i++ {
		knots[order-1+i] = lo + float64(i)*step
	}

	return &basis{knots: knots, k: k}, nil
}

// eval computes the k B-spline basis functions at x by Cox-de Boor
// recursion. Values outside the knot range are clamped to the boundary,
// which extends the boundary polynomial flatly enough for prediction grids
// that slightly exceed the training range.
func (b *basis) eval(x float64) []float64 {
	lo := b.knots[0]
	hi := b.knots[len(b.knots)-1]
	if x < lo {
		x = lo
	}
	if x > hi {
		x = hi
	}

	nKnots := len(b.knots)
	vals := make([]float64, nKnots-1)

	// Degree 0: indicator of the knot span. The final span is closed on
	// the right so x == hi lands in a span.
	for i := 0; i < nKnots-1; i++ {
		if (x >= b.knots[i] && x < b.knots[i+1]) ||
			(x == hi && b.knots[i] < b.knots[i+1] && b.knots[i+1] == hi) {
			vals[i] = 1
		}
	}

	for d := 1; d < order; d++ {
		for i := 0; i < nKnots-1-d; i++ {
			var left, right float64
			if denom := b.knots[i+d] - b.knots[i]; denom > 0 {
				left = (x - b.knots[i]) / denom * vals[i]
			}
			if denom := b.knots[i+d+1] - b.knots[i+1]; denom > 0 {
				right = (b.knots[i+d+1] - x) / denom * vals[i+1]
			}
			vals[i] = left + right
		}
	}

	return vals[:b.k]
}

// evalRow evaluates the constrained basis (dropped last column, centered)
// for one covariate value.
func (b *basis) evalRow(x float64) []float64 {
	full := b.eval(x)
	row := make([]float64, b.dim())
	for j := 0; j < b.dim(); j++ {
		row[j] = full[j]
		if b.centers != nil {
			row[j] -= b.centers[j]
		}
	}
	return row
}

// columns evaluates the constrained basis over training values and fixes
// the column centers from them.
func (b *basis) columns(values []float64) *mat.Dense {
	n := len(values)
	cols := b.dim()
	out := mat.NewDense(n, cols, nil)
	for i, v := range values {
		full := b.eval(v)
		for j := 0; j < cols; j++ {
			out.Set(i, j, full[j])
		}
	}

	b.centers = make([]float64, cols)
	for j := 0; j < cols; j++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += out.At(i, j)
		}
		b.centers[j] = sum / float64(n)
		for i := 0; i < n; i++ {
			out.Set(i, j, out.At(i, j)-b.centers[j])
		}
	}
	return out
}

// penalty returns the second-order difference penalty for the constrained
// basis: Dᵀ D built on the full k columns, with the dropped column's row
// and column removed. Penalizing squared second differences of adjacent
// spline coefficients shrinks the smooth toward a straight line.
func (b *basis) penalty() *mat.SymDense {
	k := b.k
	rows := k - 2
	d := mat.NewDense(rows, k, nil)
	for i := 0; i < rows; i++ {
		d.Set(i, i, 1)
		d.Set(i, i+1, -2)
		d.Set(i, i+2, 1)
	}

	var full mat.Dense
	full.Mul(d.T(), d)

	dim := b.dim()
	s := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			s.SetSym(i, j, full.At(i, j))
		}
	}
	return s
}
