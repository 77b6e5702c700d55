package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commonmetrics/domain/metric"
	"commonmetrics/domain/table"
)

var catalog = metric.NewCatalog()

func lookup(t *testing.T, name string) *metric.Definition {
	t.Helper()
	def, err := catalog.Lookup(name)
	require.NoError(t, err)
	return def
}

func TestScore_EngagementSimpleSum(t *testing.T) {
	tbl := table.New(1)
	require.NoError(t, tbl.AddNumeric("eng_interest", []float64{3}))
	require.NoError(t, tbl.AddNumeric("eng_like", []float64{2}))
	require.NoError(t, tbl.AddNumeric("eng_losttrack", []float64{1}))
	require.NoError(t, tbl.AddNumeric("eng_moreabout", []float64{0}))

	scored, missing, err := Score(tbl, lookup(t, "engagement"))
	require.NoError(t, err)

	assert.Equal(t, 0, missing)
	assert.Equal(t, "cm_engagement", scored.Column)
	assert.Equal(t, 6.0, scored.Composite()[0])
}

func TestScore_MissingItemPropagates(t *testing.T) {
	tbl := table.New(2)
	require.NoError(t, tbl.AddNumeric("eng_interest", []float64{math.NaN(), 1}))
	require.NoError(t, tbl.AddNumeric("eng_like", []float64{2, 1}))
	require.NoError(t, tbl.AddNumeric("eng_losttrack", []float64{2, 1}))
	require.NoError(t, tbl.AddNumeric("eng_moreabout", []float64{2, 1}))

	scored, missing, err := Score(tbl, lookup(t, "engagement"))
	require.NoError(t, err)

	assert.Equal(t, 1, missing)
	assert.True(t, math.IsNaN(scored.Composite()[0]))
	assert.Equal(t, 4.0, scored.Composite()[1])
}

func TestScore_DoesNotMutateSourceTable(t *testing.T) {
	tbl := table.New(1)
	require.NoError(t, tbl.AddNumeric("eng_interest", []float64{1}))
	require.NoError(t, tbl.AddNumeric("eng_like", []float64{1}))
	require.NoError(t, tbl.AddNumeric("eng_losttrack", []float64{1}))
	require.NoError(t, tbl.AddNumeric("eng_moreabout", []float64{1}))

	_, _, err := Score(tbl, lookup(t, "engagement"))
	require.NoError(t, err)

	assert.False(t, tbl.Has("cm_engagement"))
}

func ipgTable(t *testing.T, form, grade string, rfs float64) *table.Table {
	t.Helper()
	tbl := table.New(1)
	require.NoError(t, tbl.AddNumeric("ca1_a", []float64{0}))
	require.NoError(t, tbl.AddNumeric("ca1_b", []float64{1}))
	require.NoError(t, tbl.AddNumeric("ca1_c", []float64{1}))
	require.NoError(t, tbl.AddNumeric("ca2_overall", []float64{2}))
	require.NoError(t, tbl.AddNumeric("ca3_overall", []float64{3}))
	require.NoError(t, tbl.AddNumeric("col", []float64{4}))
	require.NoError(t, tbl.AddNumeric("rfs_overall", []float64{rfs}))
	require.NoError(t, tbl.AddLabels("grade_level", []string{grade}))
	require.NoError(t, tbl.AddLabels("form", []string{form}))
	return tbl
}

func TestScore_IPGRescalesCoreAction1Items(t *testing.T) {
	// Non-literacy row: RFS excluded. ca1 items are 0-1 scaled onto 1-4
	// (0 maps to 1, 1 maps to 4), the rest are already on 1-4.
	tbl := ipgTable(t, "Math", "7", math.NaN())

	scored, missing, err := Score(tbl, lookup(t, "ipg"))
	require.NoError(t, err)

	assert.Equal(t, 0, missing)
	// 1 + 4 + 4 + 2 + 3 + 4
	assert.Equal(t, 18.0, scored.Composite()[0])
}

func TestScore_IPGIncludesRFSForK5Literacy(t *testing.T) {
	tbl := ipgTable(t, "Literacy", "2", 2)

	scored, missing, err := Score(tbl, lookup(t, "ipg"))
	require.NoError(t, err)

	assert.Equal(t, 0, missing)
	// 18 from the base items plus rfs_overall=2.
	assert.Equal(t, 20.0, scored.Composite()[0])
}

func TestScore_IPGNumericGradeLevelStillMatchesRFS(t *testing.T) {
	// A grade_level column holding only bare numbers ingests as numeric.
	// The discriminant still has to see grade 2 as "2".
	tbl := table.New(1)
	require.NoError(t, tbl.AddNumeric("ca1_a", []float64{0}))
	require.NoError(t, tbl.AddNumeric("ca1_b", []float64{1}))
	require.NoError(t, tbl.AddNumeric("ca1_c", []float64{1}))
	require.NoError(t, tbl.AddNumeric("ca2_overall", []float64{2}))
	require.NoError(t, tbl.AddNumeric("ca3_overall", []float64{3}))
	require.NoError(t, tbl.AddNumeric("col", []float64{4}))
	require.NoError(t, tbl.AddNumeric("rfs_overall", []float64{2}))
	require.NoError(t, tbl.AddNumeric("grade_level", []float64{2}))
	require.NoError(t, tbl.AddLabels("form", []string{"Literacy"}))

	scored, missing, err := Score(tbl, lookup(t, "ipg"))
	require.NoError(t, err)

	assert.Equal(t, 0, missing)
	assert.Equal(t, 20.0, scored.Composite()[0])
}

func TestScore_IPGMissingNumericGradeLevelUsesDefaultSubset(t *testing.T) {
	tbl := table.New(1)
	require.NoError(t, tbl.AddNumeric("ca1_a", []float64{0}))
	require.NoError(t, tbl.AddNumeric("ca1_b", []float64{1}))
	require.NoError(t, tbl.AddNumeric("ca1_c", []float64{1}))
	require.NoError(t, tbl.AddNumeric("ca2_overall", []float64{2}))
	require.NoError(t, tbl.AddNumeric("ca3_overall", []float64{3}))
	require.NoError(t, tbl.AddNumeric("col", []float64{4}))
	require.NoError(t, tbl.AddNumeric("rfs_overall", []float64{math.NaN()}))
	require.NoError(t, tbl.AddNumeric("grade_level", []float64{math.NaN()}))
	require.NoError(t, tbl.AddLabels("form", []string{"Literacy"}))

	scored, missing, err := Score(tbl, lookup(t, "ipg"))
	require.NoError(t, err)

	assert.Equal(t, 0, missing)
	assert.Equal(t, 18.0, scored.Composite()[0])
}

func TestScore_IPGExcludesRFSForUpperGrades(t *testing.T) {
	tbl := ipgTable(t, "Literacy", "9", 2)

	scored, _, err := Score(tbl, lookup(t, "ipg"))
	require.NoError(t, err)

	assert.Equal(t, 18.0, scored.Composite()[0])
}

func TestScore_IPGMissingDiscriminantUsesDefaultSubset(t *testing.T) {
	// form missing: default subset (no RFS), so the missing rfs_overall value
	// does not make the composite missing.
	tbl := ipgTable(t, "", "3", math.NaN())

	scored, missing, err := Score(tbl, lookup(t, "ipg"))
	require.NoError(t, err)

	assert.Equal(t, 0, missing)
	assert.Equal(t, 18.0, scored.Composite()[0])
}

func TestScore_IPGIncludedRFSMissingMakesCompositeMissing(t *testing.T) {
	tbl := ipgTable(t, "Literacy", "K", math.NaN())

	scored, missing, err := Score(tbl, lookup(t, "ipg"))
	require.NoError(t, err)

	assert.Equal(t, 1, missing)
	assert.True(t, math.IsNaN(scored.Composite()[0]))
}

func TestScore_MissingCountMatchesIncompleteRows(t *testing.T) {
	tbl := table.New(4)
	require.NoError(t, tbl.AddNumeric("as_content", []float64{0, math.NaN(), 2, 1}))
	require.NoError(t, tbl.AddNumeric("as_practice", []float64{1, 1, math.NaN(), 1}))
	require.NoError(t, tbl.AddNumeric("as_relevance", []float64{2, 1, 0, 1}))

	scored, missing, err := Score(tbl, lookup(t, "assignments"))
	require.NoError(t, err)

	assert.Equal(t, 2, missing)
	assert.Equal(t, 3.0, scored.Composite()[0])
	assert.Equal(t, 3.0, scored.Composite()[3])
}
