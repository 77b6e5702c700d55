package report

import (
	"fmt"
	"strings"
)

// Severity classifies a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Code represents structured finding types.
type Code string

const (
	CodeMissingColumns  Code = "MISSING_COLUMNS"   // required column(s) absent
	CodeNonNumeric      Code = "NON_NUMERIC"       // item column holds non-numeric values
	CodeOutOfDomain     Code = "OUT_OF_DOMAIN"     // value outside declared item domain
	CodeScaleUsage      Code = "SCALE_USAGE"       // declared domain value never observed
	CodeMissingCluster  Code = "MISSING_CLUSTER"   // cluster-expecting metric estimated unclustered
	CodeNoClusterNeeded Code = "NO_CLUSTER_NEEDED" // clustering requested for a non-cluster metric
	CodeHighCardinality Code = "HIGH_CARDINALITY"  // equity group with more than 5 categories
)

// Finding is one validation or estimation observation, tagged fatal or
// advisory. Fatal findings enumerate every offending column/value they can in
// one report rather than stopping at the first.
type Finding struct {
	Severity Severity `json:"severity"`
	Code     Code     `json:"code"`
	Message  string   `json:"message"`
	Columns  []string `json:"columns,omitempty"`
}

func (f Finding) String() string {
	if len(f.Columns) > 0 {
		return fmt.Sprintf("[%s] %s: %s (%s)", f.Severity, f.Code, f.Message, strings.Join(f.Columns, ", "))
	}
	return fmt.Sprintf("[%s] %s: %s", f.Severity, f.Code, f.Message)
}

// Findings is an ordered collection of findings from one call.
type Findings []Finding

// HasErrors reports whether any finding is fatal.
func (fs Findings) HasErrors() bool {
	for _, f := range fs {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the fatal findings.
func (fs Findings) Errors() Findings {
	var out Findings
	for _, f := range fs {
		if f.Severity == SeverityError {
			out = append(out, f)
		}
	}
	return out
}

// Warnings returns only the advisory findings.
func (fs Findings) Warnings() Findings {
	var out Findings
	for _, f := range fs {
		if f.Severity == SeverityWarning {
			out = append(out, f)
		}
	}
	return out
}
