package estimation

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"commonmetrics/domain/report"
	"commonmetrics/ports"
)

// confidenceLevel for all reported intervals.
const confidenceLevel = 0.95

// linearCombo evaluates c'beta with its standard error from the fitted
// covariance.
func linearCombo(fit *ports.ModelFit, c []float64) (value, se float64) {
	for i, ci := range c {
		value += ci * fit.Coef[i]
	}
	variance := 0.0
	for i, ci := range c {
		if ci == 0 {
			continue
		}
		for j, cj := range c {
			if cj == 0 {
				continue
			}
			variance += ci * fit.Cov[i][j] * cj
		}
	}
	return value, math.Sqrt(variance)
}

// fitMode reads the mode off the fit rather than the request: the fitter
// falls back to an unclustered model when fewer than two distinct clusters
// survive row filtering.
func fitMode(fit *ports.ModelFit) report.Mode {
	if fit.Clustered {
		return report.ModeClustered
	}
	return report.ModeUnclustered
}

// estimateFromCombo turns a linear combination of fixed effects into an
// Estimate with a two-sided t-interval on the fit's effective degrees of
// freedom.
func estimateFromCombo(fit *ports.ModelFit, c []float64) report.Estimate {
	value, se := linearCombo(fit, c)
	df := fit.ResidualDF()
	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	margin := tdist.Quantile(0.5 + confidenceLevel/2)
	return report.Estimate{
		Value:  value,
		StdErr: se,
		Lower:  value - margin*se,
		Upper:  value + margin*se,
		DF:     df,
		Mode:   fitMode(fit),
	}
}

// contrastFromCombo turns a difference combination into a Contrast with a
// two-sided p-value. First and Second follow the lexical sign convention.
func contrastFromCombo(fit *ports.ModelFit, c []float64, first, second string) report.Contrast {
	value, se := linearCombo(fit, c)
	df := fit.ResidualDF()
	p := 1.0
	if se > 0 {
		tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
		p = 2 * (1 - tdist.CDF(math.Abs(value/se)))
	}
	return report.Contrast{
		First:      first,
		Second:     second,
		Difference: value,
		StdErr:     se,
		DF:         df,
		PValue:     p,
	}
}

// levelIndex maps group levels to their dummy-column position in a design of
// the form [intercept, level_1, ..., level_{G-1}] with levels[0] as the
// reference.
func levelIndex(levels []string) map[string]int {
	idx := make(map[string]int, len(levels))
	for i, l := range levels {
		idx[l] = i // reference carries index 0 and no dummy column
	}
	return idx
}

// zeros returns a fresh combination vector matching the design width.
func zeros(p int) []float64 {
	return make([]float64, p)
}
