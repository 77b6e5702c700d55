package api

import (
	"fmt"
	"math"

	"commonmetrics/domain/table"
	apperrors "commonmetrics/internal/errors"
)

// Columns is the wire representation of a table: one array per column, all
// the same length. Cells may be numbers, strings, or null (missing).
type Columns map[string][]interface{}

// Decode converts the wire columns into a table, applying the same typing
// rule as file ingestion: a column is numeric when every non-null cell is a
// number, otherwise every cell is treated as a label.
func (c Columns) Decode() (*table.Table, error) {
	rows := -1
	for name, col := range c {
		if rows == -1 {
			rows = len(col)
		}
		if len(col) != rows {
			return nil, apperrors.InvalidInput(fmt.Sprintf("column %s has %d cells, expected %d", name, len(col), rows))
		}
	}
	if rows <= 0 {
		return nil, apperrors.InvalidInput("data must contain at least one column and one row")
	}

	tbl := table.New(rows)
	for name, col := range c {
		if numeric, ok := decodeNumeric(col); ok {
			if err := tbl.AddNumeric(name, numeric); err != nil {
				return nil, apperrors.Wrap(err, "failed to build table")
			}
			continue
		}
		if err := tbl.AddLabels(name, decodeLabels(col)); err != nil {
			return nil, apperrors.Wrap(err, "failed to build table")
		}
	}
	return tbl, nil
}

func decodeNumeric(col []interface{}) ([]float64, bool) {
	out := make([]float64, len(col))
	any := false
	for i, cell := range col {
		switch v := cell.(type) {
		case nil:
			out[i] = math.NaN()
		case float64:
			out[i] = v
			any = true
		default:
			return nil, false
		}
	}
	return out, any
}

func decodeLabels(col []interface{}) []string {
	out := make([]string, len(col))
	for i, cell := range col {
		switch v := cell.(type) {
		case nil:
			out[i] = ""
		case string:
			out[i] = v
		default:
			out[i] = fmt.Sprintf("%v", v)
		}
	}
	return out
}
