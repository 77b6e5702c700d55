// Package estimation fits clustered or unclustered linear models to composite
// score columns and reports bias-corrected means, between-group contrasts,
// and growth across timepoints. Clustered and unclustered estimation are two
// branches of one model-fit call, so the contrast and growth logic is written
// once against a uniform fit shape.
package estimation

import (
	"context"
	"fmt"
	"math"
	"sort"

	mstats "github.com/montanaflynn/stats"

	"commonmetrics/domain/core"
	"commonmetrics/domain/metric"
	"commonmetrics/domain/report"
	"commonmetrics/domain/table"
	"commonmetrics/ports"
)

// maxEquityCardinality is the advisory ceiling on distinct equity-group
// values before a warning is attached.
const maxEquityCardinality = 5

// interceptTerm names the intercept design column.
const interceptTerm = "(intercept)"

// Estimator computes clustered mean and growth estimates through a
// ModelFitter.
type Estimator struct {
	fitter ports.ModelFitter
}

// New creates an estimator backed by the given model fitter.
func New(fitter ports.ModelFitter) *Estimator {
	return &Estimator{fitter: fitter}
}

// MeanOptions configures one mean estimation call.
type MeanOptions struct {
	// ClusterEnabled requests a random-intercept model on the cluster column.
	ClusterEnabled bool
	// ClusterColumn overrides the default class_id column name.
	ClusterColumn string
	// EquityGroup optionally partitions the estimate by a categorical column.
	EquityGroup string
}

func (o MeanOptions) clusterColumn() string {
	if o.ClusterColumn != "" {
		return o.ClusterColumn
	}
	return metric.DefaultClusterColumn
}

// Mean fits a clustered or unclustered model to the composite column and
// returns the overall estimate, and per-group estimates plus pairwise
// contrasts when an equity group is supplied.
func (e *Estimator) Mean(ctx context.Context, scored *table.Scored, def *metric.Definition, opts MeanOptions) (*report.MeanReport, error) {
	composite := scored.Composite()
	if composite == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrColumnNotFound, scored.Column)
	}

	clusters, findings := e.clusterAssignments(scored, def, opts)

	// Overall model: intercept only, rows with a missing composite dropped.
	// Row filtering can leave too few clusters for a random intercept, so
	// the reported mode comes from the fit, not the request.
	y, rowClusters, _ := completeRows(composite, clusters, nil)
	overall, err := e.fitIntercept(ctx, y, rowClusters)
	if err != nil {
		return nil, err
	}

	rep := &report.MeanReport{
		ID:               core.NewReportID(),
		Metric:           scored.Metric,
		Column:           scored.Column,
		Mode:             fitMode(overall),
		EquityGroup:      opts.EquityGroup,
		MissingComposite: scored.CountMissing(scored.Column),
		Findings:         findings,
		CreatedAt:        core.Now(),
	}
	rep.Overall = estimateFromCombo(overall, []float64{1})
	rep.Summary = summarize(y)

	if opts.EquityGroup == "" {
		return rep, nil
	}

	groupCol, ok := scored.Labels(opts.EquityGroup)
	if !ok {
		return nil, core.NewMissingColumnsError([]string{opts.EquityGroup})
	}

	levels := observedLevels(composite, groupCol)
	if len(levels) > maxEquityCardinality {
		rep.Findings = append(rep.Findings, report.Finding{
			Severity: report.SeverityWarning,
			Code:     report.CodeHighCardinality,
			Message: fmt.Sprintf("equity group %s has %d distinct values; results for sparse categories may be unstable",
				opts.EquityGroup, len(levels)),
			Columns: []string{opts.EquityGroup},
		})
	}
	if len(levels) == 0 {
		return rep, nil
	}

	gy, gClusters, gLabels := completeRows(composite, clusters, groupCol)

	fit, err := e.fitter.Fit(ctx, ports.ModelSpec{
		Y:        gy,
		X:        dummyDesign(gLabels, levels),
		Terms:    dummyTerms(opts.EquityGroup, levels),
		Clusters: gClusters,
	})
	if err != nil {
		return nil, err
	}

	p := len(fit.Coef)
	idx := levelIndex(levels)
	for _, level := range levels {
		c := zeros(p)
		c[0] = 1
		if i := idx[level]; i > 0 {
			c[i] = 1
		}
		rep.Groups = append(rep.Groups, report.GroupEstimate{
			Group:    level,
			Summary:  summarize(valuesFor(gy, gLabels, level)),
			Estimate: estimateFromCombo(fit, c),
		})
	}

	// One contrast per unordered pair, first minus second in lexical order.
	for i := 0; i < len(levels); i++ {
		for j := i + 1; j < len(levels); j++ {
			c := zeros(p)
			if a := idx[levels[i]]; a > 0 {
				c[a] = 1
			}
			if b := idx[levels[j]]; b > 0 {
				c[b] = -1
			}
			rep.Contrasts = append(rep.Contrasts, contrastFromCombo(fit, c, levels[i], levels[j]))
		}
	}
	return rep, nil
}

// clusterAssignments determines whether a random intercept applies and emits
// the correctness-risk warnings. Returns nil assignments for the unclustered
// branch.
func (e *Estimator) clusterAssignments(scored *table.Scored, def *metric.Definition, opts MeanOptions) ([]string, report.Findings) {
	var findings report.Findings
	col := opts.clusterColumn()

	if opts.ClusterEnabled && !def.RequiresCluster {
		findings = append(findings, report.Finding{
			Severity: report.SeverityWarning,
			Code:     report.CodeNoClusterNeeded,
			Message:  fmt.Sprintf("metric %s does not expect repeated measurement per %s; proceeding without clustering", def.Name, col),
		})
	}

	applied := false
	var clusters []string
	if opts.ClusterEnabled && def.RequiresCluster {
		if ids, ok := scored.Labels(col); ok && len(scored.DistinctLabels(col)) > 1 {
			clusters = ids
			applied = true
		}
	}

	if def.RequiresCluster && !applied {
		findings = append(findings, report.Finding{
			Severity: report.SeverityWarning,
			Code:     report.CodeMissingCluster,
			Message: fmt.Sprintf("metric %s expects clustering by %s but none was applied; standard errors may be understated",
				def.Name, col),
			Columns: []string{col},
		})
	}
	return clusters, findings
}

// fitIntercept fits the intercept-only model.
func (e *Estimator) fitIntercept(ctx context.Context, y []float64, clusters []string) (*ports.ModelFit, error) {
	x := make([][]float64, len(y))
	for i := range x {
		x[i] = []float64{1}
	}
	return e.fitter.Fit(ctx, ports.ModelSpec{Y: y, X: x, Terms: []string{interceptTerm}, Clusters: clusters})
}

// completeRows keeps rows with a non-missing composite, a non-missing cluster
// id when clustering applies, and a non-missing group value when a group
// column is given. The three returned slices stay row-aligned.
func completeRows(composite []float64, clusters []string, groups []string) (y []float64, outClusters, outGroups []string) {
	for i, v := range composite {
		if math.IsNaN(v) {
			continue
		}
		if groups != nil && groups[i] == "" {
			continue
		}
		if clusters != nil && clusters[i] == "" {
			continue
		}
		y = append(y, v)
		if clusters != nil {
			outClusters = append(outClusters, clusters[i])
		}
		if groups != nil {
			outGroups = append(outGroups, groups[i])
		}
	}
	return y, outClusters, outGroups
}

// observedLevels returns the lexically ordered distinct group values among
// rows with a non-missing composite.
func observedLevels(composite []float64, groups []string) []string {
	seen := make(map[string]bool)
	for i, v := range composite {
		if math.IsNaN(v) || groups[i] == "" {
			continue
		}
		seen[groups[i]] = true
	}
	return sortedKeys(seen)
}

// dummyDesign builds [intercept, 1{level_1}, ..., 1{level_{G-1}}] rows with
// levels[0] as the reference category.
func dummyDesign(labels []string, levels []string) [][]float64 {
	idx := levelIndex(levels)
	p := len(levels) // intercept + G-1 dummies
	x := make([][]float64, len(labels))
	for i, label := range labels {
		row := make([]float64, p)
		row[0] = 1
		if j := idx[label]; j > 0 {
			row[j] = 1
		}
		x[i] = row
	}
	return x
}

func dummyTerms(group string, levels []string) []string {
	terms := []string{interceptTerm}
	for _, level := range levels[1:] {
		terms = append(terms, group+"="+level)
	}
	return terms
}

func valuesFor(y []float64, labels []string, level string) []float64 {
	var out []float64
	for i, l := range labels {
		if l == level {
			out = append(out, y[i])
		}
	}
	return out
}

func summarize(y []float64) report.Summary {
	if len(y) == 0 {
		return report.Summary{}
	}
	mean, _ := mstats.Mean(y)
	sd := 0.0
	if len(y) > 1 {
		sd, _ = mstats.StandardDeviationSample(y)
	}
	return report.Summary{N: len(y), Mean: mean, StdDev: sd}
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	// Lexical level order fixes contrast signs independently of row order.
	sort.Strings(out)
	return out
}
