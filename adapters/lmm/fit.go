// Package lmm implements the ModelFitter port with gonum: ordinary least
// squares when no grouping factor is given, and a profiled-REML
// random-intercept model when one is. The random-intercept covariance is
// block diagonal by cluster, so every REML evaluation runs in O(n) using the
// per-cluster Woodbury identity instead of an n-by-n solve.
package lmm

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"commonmetrics/domain/core"
	"commonmetrics/ports"
)

// Fitter fits linear models with gonum.
type Fitter struct{}

// NewFitter creates a new model fitter.
func NewFitter() *Fitter {
	return &Fitter{}
}

var _ ports.ModelFitter = (*Fitter)(nil)

// Fit dispatches to the clustered or unclustered branch. Both branches
// produce the same ModelFit shape, so contrast and growth logic upstream is
// written once.
func (f *Fitter) Fit(ctx context.Context, spec ports.ModelSpec) (*ports.ModelFit, error) {
	if err := checkSpec(spec); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	groups := groupRows(spec.Clusters)
	if len(groups) > 1 {
		return f.fitREML(ctx, spec, groups)
	}
	return f.fitOLS(spec)
}

func checkSpec(spec ports.ModelSpec) error {
	n := len(spec.Y)
	if n == 0 || len(spec.X) != n {
		return fmt.Errorf("%w: %d observations, %d design rows", core.ErrInsufficientData, n, len(spec.X))
	}
	if spec.Clusters != nil && len(spec.Clusters) != n {
		return fmt.Errorf("%w: %d observations, %d cluster ids", core.ErrInsufficientData, n, len(spec.Clusters))
	}
	p := len(spec.X[0])
	if p == 0 || n <= p {
		return fmt.Errorf("%w: %d observations for %d parameters", core.ErrInsufficientData, n, p)
	}
	for i, v := range spec.Y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite response at row %d", core.ErrInsufficientData, i)
		}
	}
	return nil
}

// groupRows maps each distinct cluster id to its row indices. nil clusters
// yield no groups.
func groupRows(clusters []string) map[string][]int {
	if clusters == nil {
		return nil
	}
	groups := make(map[string][]int)
	for i, id := range clusters {
		groups[id] = append(groups[id], i)
	}
	return groups
}

// fitOLS solves the ordinary least-squares problem by QR.
func (f *Fitter) fitOLS(spec ports.ModelSpec) (*ports.ModelFit, error) {
	n := len(spec.Y)
	p := len(spec.X[0])

	x := mat.NewDense(n, p, nil)
	for i, row := range spec.X {
		x.SetRow(i, row)
	}
	y := mat.NewVecDense(n, spec.Y)

	var qr mat.QR
	qr.Factorize(x)

	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, y); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSingularModel, err)
	}

	// Residual variance.
	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	rss := 0.0
	for i := 0; i < n; i++ {
		r := spec.Y[i] - fitted.AtVec(i)
		rss += r * r
	}
	sigma2 := rss / float64(n-p)

	// Covariance: sigma2 * (X'X)^-1.
	var xtx mat.SymDense
	xtx.SymOuterK(1, x.T())
	cov, err := scaledInverse(&xtx, sigma2)
	if err != nil {
		return nil, err
	}

	coef := make([]float64, p)
	for i := 0; i < p; i++ {
		coef[i] = beta.AtVec(i)
	}

	return &ports.ModelFit{
		Coef:      coef,
		Cov:       cov,
		Sigma2:    sigma2,
		NObs:      n,
		NClusters: 0,
		Clustered: false,
	}, nil
}

// scaledInverse inverts a symmetric positive-definite matrix via Cholesky and
// scales it, returning row-major copies.
func scaledInverse(a *mat.SymDense, scale float64) ([][]float64, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, core.ErrSingularModel
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSingularModel, err)
	}
	p, _ := inv.Dims()
	out := make([][]float64, p)
	for i := 0; i < p; i++ {
		out[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			out[i][j] = scale * inv.At(i, j)
		}
	}
	return out, nil
}
