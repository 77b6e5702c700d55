package validation

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"commonmetrics/domain/core"
	"commonmetrics/domain/metric"
	"commonmetrics/domain/report"
	"commonmetrics/domain/table"
)

// Options controls the non-fatal checks.
type Options struct {
	// ScaleUsage toggles the scale-usage completeness warning (default on).
	ScaleUsage bool
	// ClusterColumn is checked for presence when the metric expects
	// clustering and the caller intends a clustered estimate.
	ClusterColumn string
}

// DefaultOptions returns the default validator configuration.
func DefaultOptions() Options {
	return Options{ScaleUsage: true}
}

// Validate checks a table against a metric definition. Checks run in a fixed
// order and short-circuit on the first fatal class found, while accumulating
// every finding within that class: column presence, numeric typing, domain
// compliance, then scale usage (advisory only). The input table is never
// mutated.
func Validate(tbl *table.Table, def *metric.Definition, opts Options) report.Findings {
	if findings := checkPresence(tbl, def, opts); findings.HasErrors() {
		return findings
	}
	if findings := checkNumericTyping(tbl, def); findings.HasErrors() {
		return findings
	}
	if findings := checkDomains(tbl, def); findings.HasErrors() {
		return findings
	}
	if !opts.ScaleUsage {
		return nil
	}
	return checkScaleUsage(tbl, def)
}

// Err converts fatal findings into a single wrapped error, nil when the
// findings are all advisory.
func Err(findings report.Findings) error {
	errs := findings.Errors()
	if len(errs) == 0 {
		return nil
	}
	var cols []string
	for _, f := range errs {
		cols = append(cols, f.Columns...)
	}
	switch errs[0].Code {
	case report.CodeMissingColumns:
		return core.NewMissingColumnsError(cols)
	case report.CodeNonNumeric:
		return core.NewNonNumericError(cols)
	case report.CodeOutOfDomain:
		return fmt.Errorf("%w: %s", core.ErrOutOfDomain, errs[0].Message)
	default:
		return fmt.Errorf("validation failed: %s", errs[0].Message)
	}
}

// checkPresence verifies every required item, auxiliary discriminant, and
// (when requested) cluster column exists by exact name. All missing names are
// reported in one finding.
func checkPresence(tbl *table.Table, def *metric.Definition, opts Options) report.Findings {
	required := def.ItemNames()
	required = append(required, def.AuxFields...)
	if opts.ClusterColumn != "" {
		required = append(required, opts.ClusterColumn)
	}

	var missing []string
	for _, name := range required {
		if !tbl.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return report.Findings{{
		Severity: report.SeverityError,
		Code:     report.CodeMissingColumns,
		Message:  fmt.Sprintf("metric %s requires columns not present in the data", def.Name),
		Columns:  missing,
	}}
}

// checkNumericTyping verifies every item column holds numeric values. A
// column ingested as labels means at least one cell failed numeric parsing.
func checkNumericTyping(tbl *table.Table, def *metric.Definition) report.Findings {
	var offending []string
	for _, name := range def.ItemNames() {
		if !tbl.IsNumeric(name) {
			offending = append(offending, name)
		}
	}
	if len(offending) == 0 {
		return nil
	}
	return report.Findings{{
		Severity: report.SeverityError,
		Code:     report.CodeNonNumeric,
		Message:  fmt.Sprintf("metric %s item columns hold non-numeric values", def.Name),
		Columns:  offending,
	}}
}

// checkDomains verifies every non-missing item value lies in the item's
// declared domain. One finding per offending column, naming the expected
// domain and the observed out-of-domain values.
func checkDomains(tbl *table.Table, def *metric.Definition) report.Findings {
	var findings report.Findings
	for _, item := range def.Items {
		col, _ := tbl.Numeric(item.Name)
		bad := map[float64]bool{}
		for _, v := range col {
			if math.IsNaN(v) {
				continue
			}
			if !item.Domain.Contains(v) {
				bad[v] = true
			}
		}
		if len(bad) == 0 {
			continue
		}
		findings = append(findings, report.Finding{
			Severity: report.SeverityError,
			Code:     report.CodeOutOfDomain,
			Message: fmt.Sprintf("column %s has values %s outside expected domain %s",
				item.Name, formatValues(bad), item.Domain),
			Columns: []string{item.Name},
		})
	}
	return findings
}

// checkScaleUsage warns when a declared domain value never appears in the
// data. Advisory only; never blocks scoring.
func checkScaleUsage(tbl *table.Table, def *metric.Definition) report.Findings {
	var findings report.Findings
	for _, item := range def.Items {
		col, _ := tbl.Numeric(item.Name)
		seen := map[int]bool{}
		for _, v := range col {
			if math.IsNaN(v) {
				continue
			}
			seen[int(v)] = true
		}
		var unused []string
		for _, want := range item.Domain {
			if !seen[want] {
				unused = append(unused, fmt.Sprintf("%d", want))
			}
		}
		if len(unused) == 0 {
			continue
		}
		findings = append(findings, report.Finding{
			Severity: report.SeverityWarning,
			Code:     report.CodeScaleUsage,
			Message: fmt.Sprintf("column %s never uses domain value(s) %s of %s",
				item.Name, strings.Join(unused, ","), item.Domain),
			Columns: []string{item.Name},
		})
	}
	return findings
}

func formatValues(set map[float64]bool) string {
	vals := make([]float64, 0, len(set))
	for v := range set {
		vals = append(vals, v)
	}
	sort.Float64s(vals)
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
