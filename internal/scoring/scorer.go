package scoring

import (
	"math"
	"strconv"

	"commonmetrics/domain/metric"
	"commonmetrics/domain/table"
)

// Score applies a metric's scoring rule row-wise and returns the input table
// plus one derived composite column named cm_<metric>, together with the
// count of rows whose composite could not be computed. Missingness always
// propagates: a required item with no value yields a missing composite, never
// a partial sum. Source columns are never rewritten.
func Score(tbl *table.Table, def *metric.Definition) (*table.Scored, int, error) {
	rows := tbl.Rows()
	composite := make([]float64, rows)

	items := make(map[string][]float64, len(def.Items))
	for _, item := range def.Items {
		col, _ := tbl.Numeric(item.Name)
		items[item.Name] = col
	}
	aux := make(map[string][]string, len(def.AuxFields))
	for _, field := range def.AuxFields {
		aux[field] = auxLabels(tbl, field)
	}

	missing := 0
	for row := 0; row < rows; row++ {
		v, ok := scoreRow(def, items, aux, row)
		if !ok {
			composite[row] = math.NaN()
			missing++
			continue
		}
		composite[row] = v
	}

	out := tbl.Clone()
	if err := out.AddNumeric(def.CompositeColumn(), composite); err != nil {
		return nil, 0, err
	}
	return &table.Scored{Table: out, Metric: def.Name, Column: def.CompositeColumn()}, missing, nil
}

// auxLabels returns a discriminant column as labels. A column of bare grade
// numbers (1-5 with no K row, say) ingests as numeric, so numeric columns are
// formatted back to their label form rather than left invisible to the
// conditional predicates. Missing values stay "".
func auxLabels(tbl *table.Table, field string) []string {
	if col, ok := tbl.Labels(field); ok {
		return col
	}
	col, ok := tbl.Numeric(field)
	if !ok {
		return nil
	}
	out := make([]string, len(col))
	for i, v := range col {
		if math.IsNaN(v) {
			continue
		}
		out[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return out
}

// scoreRow computes one composite. Returns ok=false when a required item for
// this row's subset is missing.
func scoreRow(def *metric.Definition, items map[string][]float64, aux map[string][]string, row int) (float64, bool) {
	sum := 0.0
	for _, item := range def.Items {
		if def.IsConditional(item.Name) && !conditionMatches(def, item.Name, aux, row) {
			// Excluded for this row; its value (present or not) is irrelevant.
			continue
		}
		v := items[item.Name][row]
		if math.IsNaN(v) {
			return 0, false
		}
		sum += metric.Rescale(v, item.Domain, def.Rule.Target)
	}
	return sum, true
}

// conditionMatches evaluates the discriminant predicates for a conditional
// item. A row with a missing discriminant value falls back to the default
// (unconditional) subset, so the item is excluded.
func conditionMatches(def *metric.Definition, itemName string, aux map[string][]string, row int) bool {
	for _, cond := range def.Rule.Conditional {
		if cond.Item != itemName {
			continue
		}
		for _, match := range cond.When {
			col := aux[match.Field]
			if col == nil || !match.Matches(col[row]) {
				return false
			}
		}
		return true
	}
	return false
}
