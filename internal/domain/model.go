package domain

import "time"

// Table is the minimal read-only view of a column-major numeric table that
// models fit on and predict from. *dataset.Frame satisfies it.
type Table interface {
	// Len returns the number of rows.
	Len() int
	// Has reports whether a column exists.
	Has(col string) bool
	// Col returns the column values. NaN encodes missing.
	Col(col string) []float64
}

// TermKind distinguishes linear coefficients from penalized smooths.
type TermKind string

const (
	TermLinear TermKind = "linear"
	TermSmooth TermKind = "smooth"
)

// Term summarizes one covariate's contribution to a fitted model.
type Term struct {
	Covariate string   `json:"covariate"`
	Kind      TermKind `json:"kind"`

	// Estimate is the coefficient for linear terms, 0 for smooths.
	Estimate float64 `json:"estimate,omitempty"`
	// EDF is the effective degrees of freedom for smooth terms, 0 for
	// linear terms (which use exactly one df).
	EDF float64 `json:"edf,omitempty"`

	StdErr    float64 `json:"std_err"`
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
}

// Summary is the serializable description of a fitted model, per-covariate
// estimates (or smooth descriptions) with uncertainty, plus fit diagnostics.
type Summary struct {
	Family string `json:"family"` // "binomial"
	Link   string `json:"link"`   // "logit"
	N      int    `json:"n"`      // rows used in fitting

	Intercept       float64 `json:"intercept"`
	InterceptStdErr float64 `json:"intercept_std_err"`
	Terms           []Term  `json:"terms"`

	NullDeviance float64 `json:"null_deviance"`
	Deviance     float64 `json:"deviance"`
	AIC          float64 `json:"aic"`

	Converged  bool      `json:"converged"`
	Iterations int       `json:"iterations"`
	FittedAt   time.Time `json:"fitted_at"`
}

// Model is a fitted presence/absence model. Implementations are immutable
// after fitting; Predict never mutates the receiver or its input.
type Model interface {
	// Name identifies the model family, e.g. "glm" or "gam".
	Name() string
	// Requires returns the covariate columns the model was fit on.
	Requires() []string
	// Predict returns one response-scale probability per row of t. Rows
	// with a missing value in any required covariate yield NaN.
	Predict(t Table) ([]float64, error)
	// Summary returns the per-term significance summary.
	Summary() Summary
	// AIC returns the Akaike information criterion of the fit.
	AIC() float64
}

// ModelChoice records the outcome of an AIC comparison between two
// candidate models.
type ModelChoice struct {
	Selected   string  `json:"selected"`
	Rejected   string  `json:"rejected"`
	DeltaAIC   float64 `json:"delta_aic"`
	Meaningful bool    `json:"meaningful"`
}

// CompareAIC picks between two candidates by information criterion. The
// lower-AIC model wins only when the gap reaches meaningfulDelta;
// otherwise the difference is treated as noise and the first candidate
// (by convention the simpler one) is kept.
func CompareAIC(simpler, richer Model, meaningfulDelta float64) (Model, ModelChoice) {
	delta := simpler.AIC() - richer.AIC()
	choice := ModelChoice{
		DeltaAIC:   delta,
		Meaningful: delta >= meaningfulDelta || -delta >= meaningfulDelta,
	}

	// The richer model must beat the simpler one by at least the threshold
	// to displace it; ties and sub-threshold gaps keep the simpler fit.
	winner, loser := simpler, richer
	if delta >= meaningfulDelta {
		winner, loser = richer, simpler
	}
	choice.Selected = winner.Name()
	choice.Rejected = loser.Name()
	return winner, choice
}

// RemovalCandidates lists covariates whose p-value exceeds alpha under the
// null hypothesis of no effect, i.e. the terms a modeler would consider
// dropping first.
func RemovalCandidates(s Summary, alpha float64) []string {
	var out []string
	for _, t := range s.Terms {
		if t.PValue > alpha {
			out = append(out, t.Covariate)
		}
	}
	return out
}

// Now returns the current domain time (frozen in tests via SetClock).
func Now() time.Time {
	return clock.Now()
}
