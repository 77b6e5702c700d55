package lmm

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commonmetrics/domain/core"
	"commonmetrics/ports"
)

func interceptOnly(y []float64, clusters []string) ports.ModelSpec {
	x := make([][]float64, len(y))
	for i := range x {
		x[i] = []float64{1}
	}
	return ports.ModelSpec{Y: y, X: x, Terms: []string{"(intercept)"}, Clusters: clusters}
}

func TestFit_OLSInterceptOnlyMatchesSampleMean(t *testing.T) {
	y := []float64{1, 2, 3, 4, 10}
	fit, err := NewFitter().Fit(context.Background(), interceptOnly(y, nil))
	require.NoError(t, err)

	mean, _ := stats.Mean(y)
	sd, _ := stats.StandardDeviationSample(y)

	assert.False(t, fit.Clustered)
	assert.InDelta(t, mean, fit.Coef[0], 1e-10)
	assert.InDelta(t, sd*sd, fit.Sigma2, 1e-10)
	assert.InDelta(t, sd*sd/float64(len(y)), fit.Cov[0][0], 1e-10)
	assert.Equal(t, 4.0, fit.ResidualDF())
}

func TestFit_OLSRecoversGroupMeanDifference(t *testing.T) {
	// Two groups with exact means 2 and 5, dummy-coded.
	y := []float64{1, 2, 3, 4, 5, 6}
	x := [][]float64{{1, 0}, {1, 0}, {1, 0}, {1, 1}, {1, 1}, {1, 1}}

	fit, err := NewFitter().Fit(context.Background(), ports.ModelSpec{Y: y, X: x, Terms: []string{"(intercept)", "g"}})
	require.NoError(t, err)

	assert.InDelta(t, 2.0, fit.Coef[0], 1e-10)
	assert.InDelta(t, 3.0, fit.Coef[1], 1e-10)
}

func TestFit_RejectsDegenerateInputs(t *testing.T) {
	f := NewFitter()
	ctx := context.Background()

	_, err := f.Fit(ctx, ports.ModelSpec{})
	assert.ErrorIs(t, err, core.ErrInsufficientData)

	_, err = f.Fit(ctx, interceptOnly([]float64{1}, nil))
	assert.ErrorIs(t, err, core.ErrInsufficientData)

	_, err = f.Fit(ctx, interceptOnly([]float64{1, math.NaN(), 3}, nil))
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestFit_SingleClusterFallsBackToOLS(t *testing.T) {
	y := []float64{1, 2, 3, 4}
	fit, err := NewFitter().Fit(context.Background(), interceptOnly(y, []string{"a", "a", "a", "a"}))
	require.NoError(t, err)

	assert.False(t, fit.Clustered)
}

// balancedClusters simulates a one-way random-intercept design with known
// between- and within-cluster standard deviations.
func balancedClusters(seed int64, m, perCluster int, mu, betweenSD, withinSD float64) ([]float64, []string) {
	rng := rand.New(rand.NewSource(seed))
	y := make([]float64, 0, m*perCluster)
	clusters := make([]string, 0, m*perCluster)
	for j := 0; j < m; j++ {
		b := rng.NormFloat64() * betweenSD
		id := fmt.Sprintf("class_%02d", j)
		for k := 0; k < perCluster; k++ {
			y = append(y, mu+b+rng.NormFloat64()*withinSD)
			clusters = append(clusters, id)
		}
	}
	return y, clusters
}

// anovaMoments computes the balanced one-way ANOVA mean squares, which have a
// closed-form correspondence with the REML solution when the between-cluster
// variance estimate is positive.
func anovaMoments(y []float64, clusters []string, perCluster int) (msb, msw float64) {
	groupSum := map[string]float64{}
	for i, id := range clusters {
		groupSum[id] += y[i]
	}
	grand := 0.0
	for _, v := range y {
		grand += v
	}
	grand /= float64(len(y))

	ssb, ssw := 0.0, 0.0
	for i, id := range clusters {
		gm := groupSum[id] / float64(perCluster)
		d := y[i] - gm
		ssw += d * d
	}
	for _, sum := range groupSum {
		gm := sum/float64(perCluster) - grand
		ssb += float64(perCluster) * gm * gm
	}
	m := float64(len(groupSum))
	n := float64(len(y))
	return ssb / (m - 1), ssw / (n - m)
}

func TestFit_REMLMatchesBalancedANOVA(t *testing.T) {
	const m, perCluster = 20, 15
	y, clusters := balancedClusters(7, m, perCluster, 8.0, 1.5, 2.0)

	fit, err := NewFitter().Fit(context.Background(), interceptOnly(y, clusters))
	require.NoError(t, err)
	require.True(t, fit.Clustered)
	assert.Equal(t, m, fit.NClusters)
	assert.Equal(t, m*perCluster, fit.NObs)

	msb, msw := anovaMoments(y, clusters, perCluster)

	// Balanced design: the GLS intercept is the grand mean.
	grand, _ := stats.Mean(y)
	assert.InDelta(t, grand, fit.Coef[0], 1e-6)

	// REML variance components equal the ANOVA moment estimators when the
	// between-cluster estimate is positive.
	require.Greater(t, msb, msw)
	assert.InDelta(t, msw, fit.Sigma2, 0.01*msw)
	wantTau2 := (msb - msw) / perCluster
	assert.InDelta(t, wantTau2, fit.Tau2, 0.02*wantTau2)

	// Var(grand mean) = MSB / n for the balanced design.
	assert.InDelta(t, msb/float64(m*perCluster), fit.Cov[0][0], 0.01*msb/float64(m*perCluster))

	// Containment df: clusters minus fixed parameters.
	assert.Equal(t, float64(m-1), fit.ResidualDF())
}

func TestFit_ClusteredSEWiderThanOLSUnderHighICC(t *testing.T) {
	y, clusters := balancedClusters(11, 12, 20, 5.0, 3.0, 1.0)
	ctx := context.Background()

	clusteredFit, err := NewFitter().Fit(ctx, interceptOnly(y, clusters))
	require.NoError(t, err)
	olsFit, err := NewFitter().Fit(ctx, interceptOnly(y, nil))
	require.NoError(t, err)

	// Ignoring the clustering understates the standard error.
	assert.Greater(t, clusteredFit.Cov[0][0], 2*olsFit.Cov[0][0])
}

func TestFit_REMLIsDeterministic(t *testing.T) {
	y, clusters := balancedClusters(3, 8, 10, 2.0, 1.0, 1.0)
	ctx := context.Background()

	first, err := NewFitter().Fit(ctx, interceptOnly(y, clusters))
	require.NoError(t, err)
	second, err := NewFitter().Fit(ctx, interceptOnly(y, clusters))
	require.NoError(t, err)

	assert.Equal(t, first.Coef, second.Coef)
	assert.Equal(t, first.Tau2, second.Tau2)
}
