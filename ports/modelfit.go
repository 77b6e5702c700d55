package ports

import (
	"context"
)

// ModelSpec describes one linear model fit: a response, a fixed-effect design
// matrix, and an optional random-intercept grouping factor. Rows with missing
// values must be filtered out by the caller before fitting.
type ModelSpec struct {
	// Y is the response vector.
	Y []float64
	// X is the row-major fixed-effect design matrix, including the intercept
	// column. len(X) == len(Y).
	X [][]float64
	// Terms names the design columns, in order.
	Terms []string
	// Clusters assigns each row to a random-intercept group. nil means no
	// random effect (ordinary least squares).
	Clusters []string
}

// ModelFit is the result of one converged fit.
type ModelFit struct {
	// Coef holds the fixed-effect estimates, one per design column.
	Coef []float64
	// Cov is the covariance matrix of Coef.
	Cov [][]float64
	// Sigma2 is the residual variance.
	Sigma2 float64
	// Tau2 is the random-intercept variance (0 for OLS).
	Tau2 float64
	// NObs and NClusters record the fitted sample.
	NObs      int
	NClusters int
	// Clustered reports whether a random intercept was fitted.
	Clustered bool
}

// ResidualDF returns the effective denominator degrees of freedom for
// inference on fixed effects: a between-within (containment) approximation
// of clusters minus fixed parameters for the mixed model, observations minus
// parameters for OLS. Never below 1.
func (f *ModelFit) ResidualDF() float64 {
	var df float64
	if f.Clustered {
		df = float64(f.NClusters - len(f.Coef))
	} else {
		df = float64(f.NObs - len(f.Coef))
	}
	if df < 1 {
		df = 1
	}
	return df
}

// ModelFitter fits a linear model with an optional random intercept by
// restricted maximum likelihood. Implementations must return an error on
// non-convergence instead of a partial or default fit.
type ModelFitter interface {
	Fit(ctx context.Context, spec ModelSpec) (*ModelFit, error)
}
