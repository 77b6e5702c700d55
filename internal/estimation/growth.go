package estimation

import (
	"context"
	"fmt"

	"commonmetrics/domain/core"
	"commonmetrics/domain/metric"
	"commonmetrics/domain/report"
	"commonmetrics/domain/table"
	"commonmetrics/ports"
)

// GrowthOptions configures one growth estimation call.
type GrowthOptions struct {
	ClusterEnabled bool
	ClusterColumn  string
	EquityGroup    string
}

func (o GrowthOptions) mean() MeanOptions {
	return MeanOptions{
		ClusterEnabled: o.ClusterEnabled,
		ClusterColumn:  o.ClusterColumn,
		EquityGroup:    o.EquityGroup,
	}
}

// Growth fits one combined model over both timepoints with a binary timepoint
// fixed effect (and its interaction with the equity group when present), not
// two independent mean fits subtracted by hand: the interaction contrast's
// standard error is only correct in the joint model. The random-intercept
// grouping keys clusters by id, so a class observed at both timepoints
// contributes to both without merging distinct rows across time.
func (e *Estimator) Growth(ctx context.Context, scored1, scored2 *table.Scored, def *metric.Definition, opts GrowthOptions) (*report.GrowthReport, error) {
	if scored1.Metric != def.Name || scored2.Metric != def.Name {
		return nil, fmt.Errorf("%w: %s vs %s (expected %s)", core.ErrDefinitionMixed, scored1.Metric, scored2.Metric, def.Name)
	}

	composite1 := scored1.Composite()
	composite2 := scored2.Composite()
	if composite1 == nil || composite2 == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrColumnNotFound, def.CompositeColumn())
	}

	var levels []string
	if opts.EquityGroup != "" {
		var err error
		levels, err = matchedLevels(scored1, scored2, opts.EquityGroup)
		if err != nil {
			return nil, err
		}
	}

	clusters1, findings1 := e.clusterAssignments(scored1, def, opts.mean())
	clusters2, findings2 := e.clusterAssignments(scored2, def, opts.mean())
	if clusters1 == nil || clusters2 == nil {
		// A random intercept needs cluster ids at both timepoints.
		clusters1, clusters2 = nil, nil
	}

	rep := &report.GrowthReport{
		ID:                core.NewReportID(),
		Metric:            def.Name,
		Column:            def.CompositeColumn(),
		EquityGroup:       opts.EquityGroup,
		MissingComposite1: scored1.CountMissing(scored1.Column),
		MissingComposite2: scored2.CountMissing(scored2.Column),
		Findings:          dedupeFindings(append(findings1, findings2...)),
		CreatedAt:         core.Now(),
	}
	if len(levels) > maxEquityCardinality {
		rep.Findings = append(rep.Findings, report.Finding{
			Severity: report.SeverityWarning,
			Code:     report.CodeHighCardinality,
			Message: fmt.Sprintf("equity group %s has %d distinct values; results for sparse categories may be unstable",
				opts.EquityGroup, len(levels)),
			Columns: []string{opts.EquityGroup},
		})
	}

	stacked, err := stack(scored1, scored2, composite1, composite2, clusters1, clusters2, opts.EquityGroup)
	if err != nil {
		return nil, err
	}

	fit, err := e.fitter.Fit(ctx, growthSpec(stacked, levels, opts.EquityGroup))
	if err != nil {
		return nil, err
	}
	rep.Mode = fitMode(fit)

	p := len(fit.Coef)
	g := len(levels)
	idx := levelIndex(levels)

	// Design layout: [intercept, time, level dummies, time x level dummies].
	timeCol := 1
	dummyCol := func(level string) int { return 1 + idx[level] }       // 0 for the reference
	interCol := func(level string) int { return 1 + g + idx[level] - 1 } // g-1 interaction columns

	// Marginal estimate at a timepoint: cell means averaged over group levels.
	timepointCombo := func(time float64) []float64 {
		c := zeros(p)
		c[0] = 1
		c[timeCol] = time
		if g > 1 {
			w := 1 / float64(g)
			for _, level := range levels[1:] {
				c[dummyCol(level)] = w
				c[interCol(level)] = time * w
			}
		}
		return c
	}

	c1 := timepointCombo(0)
	c2 := timepointCombo(1)
	growth := zeros(p)
	for i := range growth {
		growth[i] = c2[i] - c1[i]
	}

	rep.Timepoint1 = estimateFromCombo(fit, c1)
	rep.Timepoint2 = estimateFromCombo(fit, c2)
	rep.Growth = estimateFromCombo(fit, growth)

	// Pairwise group contrasts at each timepoint, and the change in
	// differences from the interaction term. With a binary group this yields
	// exactly one difference-of-differences contrast.
	for i := 0; i < g; i++ {
		for j := i + 1; j < g; j++ {
			a, b := levels[i], levels[j]

			diff := func(col func(string) int) []float64 {
				c := zeros(p)
				if idx[a] > 0 {
					c[col(a)] = 1
				}
				if idx[b] > 0 {
					c[col(b)] = -1
				}
				return c
			}

			atT1 := diff(dummyCol)
			atT2 := diff(dummyCol)
			dd := diff(interCol)
			for k := range atT2 {
				atT2[k] += dd[k]
			}

			rep.TimepointContrasts = append(rep.TimepointContrasts,
				report.TimepointContrast{Timepoint: 1, Contrast: contrastFromCombo(fit, atT1, a, b)},
				report.TimepointContrast{Timepoint: 2, Contrast: contrastFromCombo(fit, atT2, a, b)},
			)
			rep.ChangeInDifferences = append(rep.ChangeInDifferences, contrastFromCombo(fit, dd, a, b))
		}
	}
	return rep, nil
}

// matchedLevels verifies the equity-group label sets observed at the two
// timepoints are identical, identifying every mismatched label. This guards
// against silently comparing incompatible subgroup definitions across time,
// and runs before any model fitting.
func matchedLevels(scored1, scored2 *table.Scored, group string) ([]string, error) {
	l1, ok1 := scored1.Labels(group)
	l2, ok2 := scored2.Labels(group)
	var missingCols []string
	if !ok1 {
		missingCols = append(missingCols, group+" (timepoint 1)")
	}
	if !ok2 {
		missingCols = append(missingCols, group+" (timepoint 2)")
	}
	if len(missingCols) > 0 {
		return nil, core.NewMissingColumnsError(missingCols)
	}

	set1 := observedLevels(scored1.Composite(), l1)
	set2 := observedLevels(scored2.Composite(), l2)

	onlyFirst := difference(set1, set2)
	onlySecond := difference(set2, set1)
	if len(onlyFirst) > 0 || len(onlySecond) > 0 {
		return nil, core.NewEquityMismatchError(onlyFirst, onlySecond)
	}
	return set1, nil
}

func difference(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, v := range b {
		in[v] = true
	}
	var out []string
	for _, v := range a {
		if !in[v] {
			out = append(out, v)
		}
	}
	return out
}

// stackedRows holds the combined two-timepoint data.
type stackedRows struct {
	y        []float64
	time     []float64
	groups   []string
	clusters []string
}

// stack concatenates the complete rows of both timepoints with a 0/1 time
// indicator.
func stack(scored1, scored2 *table.Scored, composite1, composite2 []float64, clusters1, clusters2 []string, group string) (*stackedRows, error) {
	out := &stackedRows{}
	for tp, part := range []struct {
		scored    *table.Scored
		composite []float64
		clusters  []string
	}{
		{scored1, composite1, clusters1},
		{scored2, composite2, clusters2},
	} {
		var groups []string
		if group != "" {
			var ok bool
			groups, ok = part.scored.Labels(group)
			if !ok {
				return nil, core.NewMissingColumnsError([]string{group})
			}
		}
		y, clusters, labels := completeRows(part.composite, part.clusters, groups)
		out.y = append(out.y, y...)
		out.groups = append(out.groups, labels...)
		out.clusters = append(out.clusters, clusters...)
		for range y {
			out.time = append(out.time, float64(tp))
		}
	}
	if len(out.clusters) == 0 {
		out.clusters = nil
	}
	return out, nil
}

// growthSpec builds the combined design: intercept, time indicator, group
// dummies, and time-by-group interactions.
func growthSpec(rows *stackedRows, levels []string, group string) ports.ModelSpec {
	g := len(levels)
	idx := levelIndex(levels)
	p := 2
	if g > 1 {
		p = 2 + 2*(g-1)
	}

	x := make([][]float64, len(rows.y))
	for i := range rows.y {
		row := make([]float64, p)
		row[0] = 1
		row[1] = rows.time[i]
		if g > 1 {
			if j := idx[rows.groups[i]]; j > 0 {
				row[1+j] = 1
				row[g+j] = rows.time[i]
			}
		}
		x[i] = row
	}

	terms := []string{interceptTerm, "timepoint"}
	if g > 1 {
		for _, level := range levels[1:] {
			terms = append(terms, group+"="+level)
		}
		for _, level := range levels[1:] {
			terms = append(terms, "timepoint:"+group+"="+level)
		}
	}
	return ports.ModelSpec{Y: rows.y, X: x, Terms: terms, Clusters: rows.clusters}
}

// dedupeFindings drops repeated findings produced by applying the same
// cluster policy to both timepoints.
func dedupeFindings(findings report.Findings) report.Findings {
	seen := make(map[string]bool)
	var out report.Findings
	for _, f := range findings {
		key := string(f.Code) + "|" + f.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}
