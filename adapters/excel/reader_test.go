package excel

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "responses.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadTable_TypeInference(t *testing.T) {
	path := writeCSV(t,
		"eng_interest,eng_like,class_id\n"+
			"1,2,c1\n"+
			"3,0,c2\n")

	tbl, err := NewDataReader(path).ReadTable()
	require.NoError(t, err)

	assert.Equal(t, 2, tbl.Rows())
	assert.True(t, tbl.IsNumeric("eng_interest"))
	assert.False(t, tbl.IsNumeric("class_id"))

	col, ok := tbl.Numeric("eng_like")
	require.True(t, ok)
	assert.Equal(t, []float64{2, 0}, col)

	classes, ok := tbl.Labels("class_id")
	require.True(t, ok)
	assert.Equal(t, []string{"c1", "c2"}, classes)
}

func TestReadTable_EmptyCellsAreMissing(t *testing.T) {
	path := writeCSV(t,
		"eng_interest,class_id\n"+
			"1,c1\n"+
			",\n")

	tbl, err := NewDataReader(path).ReadTable()
	require.NoError(t, err)

	col, _ := tbl.Numeric("eng_interest")
	assert.True(t, math.IsNaN(col[1]))

	classes, _ := tbl.Labels("class_id")
	assert.Equal(t, "", classes[1])
}

func TestReadTable_MixedColumnStaysLabels(t *testing.T) {
	path := writeCSV(t,
		"grade_level\n"+
			"K\n"+
			"3\n")

	tbl, err := NewDataReader(path).ReadTable()
	require.NoError(t, err)

	assert.False(t, tbl.IsNumeric("grade_level"))
	levels, _ := tbl.Labels("grade_level")
	assert.Equal(t, []string{"K", "3"}, levels)
}

func TestReadTable_RaggedRowsPadded(t *testing.T) {
	path := writeCSV(t,
		"a,b\n"+
			"1,x\n"+
			"2\n")

	tbl, err := NewDataReader(path).ReadTable()
	require.NoError(t, err)

	labels, _ := tbl.Labels("b")
	assert.Equal(t, []string{"x", ""}, labels)
}

func TestReadTable_HeaderOnlyRejected(t *testing.T) {
	path := writeCSV(t, "a,b\n")

	_, err := NewDataReader(path).ReadTable()
	assert.Error(t, err)
}

func TestReadTable_MissingFile(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "nope.csv")).ReadTable()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestNewDataReader_DispatchesOnExtension(t *testing.T) {
	assert.Equal(t, "csv", NewDataReader("data.CSV").fileType)
	assert.Equal(t, "xlsx", NewDataReader("data.xlsx").fileType)
}
