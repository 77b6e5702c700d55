package lmm

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"commonmetrics/domain/core"
	"commonmetrics/ports"
)

// remlProfile evaluates the restricted likelihood profiled down to the single
// variance ratio lambda = tau2/sigma2. With a random intercept the marginal
// covariance V = I + lambda*Z*Z' is block diagonal, and each cluster block
// inverts in closed form:
//
//	V_j^-1  = I - (lambda/(1+lambda*n_j)) * J
//	log|V_j| = log(1 + lambda*n_j)
//
// so one evaluation costs O(n) plus a p-by-p solve.
type remlProfile struct {
	n, p int

	// Per-cluster sufficient statistics: row sums of X, sum of y, size.
	xSums  [][]float64
	ySums  []float64
	sizes  []int
	xtx    *mat.SymDense // X'X
	xty    []float64     // X'y
	yty    float64
}

func newREMLProfile(spec ports.ModelSpec, groups map[string][]int) *remlProfile {
	n := len(spec.Y)
	p := len(spec.X[0])

	prof := &remlProfile{n: n, p: p}

	x := mat.NewDense(n, p, nil)
	for i, row := range spec.X {
		x.SetRow(i, row)
	}
	prof.xtx = &mat.SymDense{}
	prof.xtx.SymOuterK(1, x.T())

	prof.xty = make([]float64, p)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			prof.xty[j] += spec.X[i][j] * spec.Y[i]
		}
		prof.yty += spec.Y[i] * spec.Y[i]
	}

	// Deterministic cluster order keeps fits reproducible.
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		rows := groups[id]
		xs := make([]float64, p)
		ys := 0.0
		for _, i := range rows {
			for j := 0; j < p; j++ {
				xs[j] += spec.X[i][j]
			}
			ys += spec.Y[i]
		}
		prof.xSums = append(prof.xSums, xs)
		prof.ySums = append(prof.ySums, ys)
		prof.sizes = append(prof.sizes, len(rows))
	}
	return prof
}

// solution is one profiled evaluation at a fixed lambda.
type solution struct {
	criterion float64
	beta      []float64
	a         *mat.SymDense // X'V^-1X
	sigma2    float64
}

// evaluate computes the GLS solution and REML criterion for a given lambda.
func (prof *remlProfile) evaluate(lambda float64) (*solution, error) {
	p := prof.p

	// A = X'V^-1X, b = X'V^-1y, q = y'V^-1y via per-cluster downdates.
	a := mat.NewSymDense(p, nil)
	a.CopySym(prof.xtx)
	b := make([]float64, p)
	copy(b, prof.xty)
	q := prof.yty
	logDetV := 0.0

	for g, xs := range prof.xSums {
		nj := float64(prof.sizes[g])
		c := lambda / (1 + lambda*nj)
		logDetV += math.Log(1 + lambda*nj)
		for i := 0; i < p; i++ {
			for j := i; j < p; j++ {
				a.SetSym(i, j, a.At(i, j)-c*xs[i]*xs[j])
			}
			b[i] -= c * xs[i] * prof.ySums[g]
		}
		q -= c * prof.ySums[g] * prof.ySums[g]
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, core.ErrSingularModel
	}

	beta := mat.NewVecDense(p, nil)
	if err := chol.SolveVecTo(beta, mat.NewVecDense(p, b)); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSingularModel, err)
	}

	// Residual quadratic form r = y'V^-1y - beta'X'V^-1y.
	r := q
	for i := 0; i < p; i++ {
		r -= beta.AtVec(i) * b[i]
	}
	if r <= 0 || math.IsNaN(r) {
		return nil, core.ErrNoConvergence
	}
	sigma2 := r / float64(prof.n-p)

	criterion := logDetV + float64(prof.n-p)*math.Log(sigma2) + chol.LogDet()
	if math.IsNaN(criterion) || math.IsInf(criterion, 0) {
		return nil, core.ErrNoConvergence
	}

	betaOut := make([]float64, p)
	for i := 0; i < p; i++ {
		betaOut[i] = beta.AtVec(i)
	}
	return &solution{criterion: criterion, beta: betaOut, a: a, sigma2: sigma2}, nil
}

// startLambda seeds the optimizer with a one-way ANOVA moment estimate of the
// variance ratio.
func (prof *remlProfile) startLambda(spec ports.ModelSpec, groups map[string][]int) float64 {
	grand := 0.0
	for _, v := range spec.Y {
		grand += v
	}
	grand /= float64(prof.n)

	ssw, ssb := 0.0, 0.0
	nbar := 0.0
	for _, rows := range groups {
		gm := 0.0
		for _, i := range rows {
			gm += spec.Y[i]
		}
		gm /= float64(len(rows))
		for _, i := range rows {
			d := spec.Y[i] - gm
			ssw += d * d
		}
		gd := gm - grand
		ssb += float64(len(rows)) * gd * gd
		nbar += float64(len(rows))
	}
	m := float64(len(groups))
	nbar /= m

	msw := ssw / math.Max(float64(prof.n)-m, 1)
	msb := ssb / math.Max(m-1, 1)
	if msw <= 0 {
		return 1e-4
	}
	lambda := (msb - msw) / (nbar * msw)
	if lambda < 1e-4 || math.IsNaN(lambda) {
		lambda = 1e-4
	}
	return lambda
}

// fitREML fits the random-intercept model, profiling the REML criterion over
// log(lambda) with Nelder-Mead. Non-convergence is a fatal error; a partial
// estimate is never returned.
func (f *Fitter) fitREML(ctx context.Context, spec ports.ModelSpec, groups map[string][]int) (*ports.ModelFit, error) {
	prof := newREMLProfile(spec, groups)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			sol, err := prof.evaluate(math.Exp(x[0]))
			if err != nil {
				return math.Inf(1)
			}
			return sol.criterion
		},
	}

	init := []float64{math.Log(prof.startLambda(spec, groups))}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Iterations: 50,
		},
		MajorIterations: 500,
	}

	result, err := optimize.Minimize(problem, init, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNoConvergence, err)
	}
	if err := result.Status.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNoConvergence, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lambda := math.Exp(result.X[0])
	sol, err := prof.evaluate(lambda)
	if err != nil {
		return nil, err
	}

	cov, err := scaledInverse(sol.a, sol.sigma2)
	if err != nil {
		return nil, err
	}

	return &ports.ModelFit{
		Coef:      sol.beta,
		Cov:       cov,
		Sigma2:    sol.sigma2,
		Tau2:      lambda * sol.sigma2,
		NObs:      prof.n,
		NClusters: len(groups),
		Clustered: true,
	}, nil
}
