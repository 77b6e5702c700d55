package table

import (
	"math"
	"sort"

	"commonmetrics/domain/core"
)

// Table is the canonical in-memory tabular structure for scoring and
// estimation. Columns are stored column-major: numeric columns as []float64
// with NaN marking a missing value, label columns as []string with the empty
// string marking a missing value. Inputs are treated as immutable; derived
// columns are appended, source columns are never rewritten.
type Table struct {
	names   []string
	numeric map[string][]float64
	labels  map[string][]string
	rows    int
}

// New creates an empty table with a fixed row count.
func New(rows int) *Table {
	return &Table{
		numeric: make(map[string][]float64),
		labels:  make(map[string][]string),
		rows:    rows,
	}
}

// Rows returns the number of rows.
func (t *Table) Rows() int { return t.rows }

// Columns returns column names in insertion order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Has reports whether a column of either kind exists.
func (t *Table) Has(name string) bool {
	_, num := t.numeric[name]
	_, lab := t.labels[name]
	return num || lab
}

// IsNumeric reports whether the column exists and holds numeric data.
func (t *Table) IsNumeric(name string) bool {
	_, ok := t.numeric[name]
	return ok
}

// AddNumeric appends a numeric column. NaN marks missing values.
func (t *Table) AddNumeric(name string, values []float64) error {
	if t.Has(name) {
		return core.ErrColumnExists
	}
	if len(values) != t.rows {
		return core.ErrLengthMismatch
	}
	col := make([]float64, len(values))
	copy(col, values)
	t.numeric[name] = col
	t.names = append(t.names, name)
	return nil
}

// AddLabels appends a categorical column. The empty string marks missing values.
func (t *Table) AddLabels(name string, values []string) error {
	if t.Has(name) {
		return core.ErrColumnExists
	}
	if len(values) != t.rows {
		return core.ErrLengthMismatch
	}
	col := make([]string, len(values))
	copy(col, values)
	t.labels[name] = col
	t.names = append(t.names, name)
	return nil
}

// Numeric returns a copy of a numeric column.
func (t *Table) Numeric(name string) ([]float64, bool) {
	col, ok := t.numeric[name]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(col))
	copy(out, col)
	return out, true
}

// Labels returns a copy of a label column.
func (t *Table) Labels(name string) ([]string, bool) {
	col, ok := t.labels[name]
	if !ok {
		return nil, false
	}
	out := make([]string, len(col))
	copy(out, col)
	return out, true
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := New(t.rows)
	for _, name := range t.names {
		if col, ok := t.numeric[name]; ok {
			vals := make([]float64, len(col))
			copy(vals, col)
			out.numeric[name] = vals
		} else {
			col := t.labels[name]
			vals := make([]string, len(col))
			copy(vals, col)
			out.labels[name] = vals
		}
		out.names = append(out.names, name)
	}
	return out
}

// DistinctLabels returns the sorted set of non-missing values in a label column.
// Lexical order keeps downstream contrast signs independent of row order.
func (t *Table) DistinctLabels(name string) []string {
	col, ok := t.labels[name]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	for _, v := range col {
		if v != "" {
			seen[v] = true
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// CountMissing returns the number of missing values in a numeric column.
func (t *Table) CountMissing(name string) int {
	col, ok := t.numeric[name]
	if !ok {
		return 0
	}
	n := 0
	for _, v := range col {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Scored is a table carrying one derived composite-score column for a metric.
// It is owned by the pipeline invocation that created it.
type Scored struct {
	*Table

	// Metric is the catalog name the composite was derived from.
	Metric string
	// Column is the name of the derived composite column.
	Column string
}

// Composite returns the composite-score column.
func (s *Scored) Composite() []float64 {
	col, _ := s.Numeric(s.Column)
	return col
}
