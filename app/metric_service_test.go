package app

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commonmetrics/adapters/lmm"
	"commonmetrics/domain/core"
	"commonmetrics/domain/metric"
	"commonmetrics/domain/report"
	"commonmetrics/domain/table"
)

func newService() *MetricService {
	return NewMetricService(metric.NewCatalog(), lmm.NewFitter(), nil)
}

// engagementTable builds a valid engagement item table. Each row's items all
// carry the row's value, so composites equal 4x the value.
func engagementTable(t *testing.T, values []float64, extra func(*table.Table)) *table.Table {
	t.Helper()
	tbl := table.New(len(values))
	for _, item := range []string{"eng_interest", "eng_like", "eng_losttrack", "eng_moreabout"} {
		col := make([]float64, len(values))
		copy(col, values)
		require.NoError(t, tbl.AddNumeric(item, col))
	}
	if extra != nil {
		extra(tbl)
	}
	return tbl
}

func TestMakeMetric_AppendsComposite(t *testing.T) {
	tbl := engagementTable(t, []float64{0, 1, 2, 3}, nil)

	res, err := newService().MakeMetric(context.Background(), ScoreRequest{Metric: "engagement", Table: tbl})
	require.NoError(t, err)

	composite, ok := res.Scored.Numeric("cm_engagement")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 4, 8, 12}, composite)
	assert.Equal(t, 0, res.Missing)
	// Source table is never mutated.
	assert.False(t, tbl.Has("cm_engagement"))
}

func TestMakeMetric_UnknownMetric(t *testing.T) {
	tbl := table.New(1)

	_, err := newService().MakeMetric(context.Background(), ScoreRequest{Metric: "charisma", Table: tbl})
	assert.ErrorIs(t, err, core.ErrMetricNotFound)
}

func TestMakeMetric_MissingColumnsFatal(t *testing.T) {
	tbl := table.New(2)
	require.NoError(t, tbl.AddNumeric("eng_interest", []float64{1, 2}))

	_, err := newService().MakeMetric(context.Background(), ScoreRequest{Metric: "engagement", Table: tbl})
	require.ErrorIs(t, err, core.ErrMissingColumns)
	assert.Contains(t, err.Error(), "eng_like")
}

func TestMakeMetric_OutOfDomainFatal(t *testing.T) {
	tbl := engagementTable(t, []float64{0, 7}, nil)

	_, err := newService().MakeMetric(context.Background(), ScoreRequest{Metric: "engagement", Table: tbl})
	assert.ErrorIs(t, err, core.ErrOutOfDomain)
}

func TestMetricMean_EndToEnd(t *testing.T) {
	values := []float64{0, 1, 2, 3, 1, 2}
	classes := []string{"c1", "c1", "c1", "c2", "c2", "c2"}
	tbl := engagementTable(t, values, func(tbl *table.Table) {
		require.NoError(t, tbl.AddLabels("class_id", classes))
	})

	rep, err := newService().MetricMean(context.Background(), MeanRequest{
		Metric:         "engagement",
		Table:          tbl,
		ClusterEnabled: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "engagement", rep.Metric)
	assert.Equal(t, "cm_engagement", rep.Column)
	assert.Equal(t, report.ModeClustered, rep.Mode)
	assert.Equal(t, 6, rep.Summary.N)
	// Balanced clusters: estimate stays at the grand composite mean.
	assert.InDelta(t, 6.0, rep.Overall.Value, 1e-6)
}

func TestMakeMetric_ScaleUsageWarnsByDefault(t *testing.T) {
	// Responses never reach 2 or 3; the check runs without being requested.
	tbl := engagementTable(t, []float64{0, 1, 0, 1}, nil)

	res, err := newService().MakeMetric(context.Background(), ScoreRequest{Metric: "engagement", Table: tbl})
	require.NoError(t, err)

	require.NotEmpty(t, res.Findings)
	for _, f := range res.Findings {
		assert.Equal(t, report.CodeScaleUsage, f.Code)
	}
}

func TestMakeMetric_SkipScaleUsageSuppressesWarnings(t *testing.T) {
	tbl := engagementTable(t, []float64{0, 1, 0, 1}, nil)

	res, err := newService().MakeMetric(context.Background(), ScoreRequest{
		Metric:         "engagement",
		Table:          tbl,
		SkipScaleUsage: true,
	})
	require.NoError(t, err)

	assert.Empty(t, res.Findings)
}

func TestMetricMean_MergesScaleUsageWarnings(t *testing.T) {
	// Constant responses never exercise the full 0..3 scale.
	tbl := engagementTable(t, []float64{1, 1, 1, 1}, nil)

	rep, err := newService().MetricMean(context.Background(), MeanRequest{
		Metric: "engagement",
		Table:  tbl,
	})
	require.NoError(t, err)

	scaleWarnings := 0
	for _, f := range rep.Findings {
		if f.Code == report.CodeScaleUsage {
			scaleWarnings++
		}
	}
	assert.Equal(t, 4, scaleWarnings)
	assert.False(t, rep.Findings.HasErrors())
}

func TestMetricGrowth_EndToEnd(t *testing.T) {
	tbl1 := engagementTable(t, []float64{0, 1, 2, 3}, nil)
	tbl2 := engagementTable(t, []float64{1, 2, 3, 3}, nil)

	rep, err := newService().MetricGrowth(context.Background(), GrowthRequest{
		Metric: "engagement",
		Table1: tbl1,
		Table2: tbl2,
	})
	require.NoError(t, err)

	// Composite means: 4*1.5=6 at t1, 4*2.25=9 at t2.
	assert.InDelta(t, 6.0, rep.Timepoint1.Value, 1e-9)
	assert.InDelta(t, 9.0, rep.Timepoint2.Value, 1e-9)
	assert.InDelta(t, 3.0, rep.Growth.Value, 1e-9)
}

func TestMetricGrowth_ValidationFailureOnSecondTable(t *testing.T) {
	tbl1 := engagementTable(t, []float64{0, 1}, nil)
	tbl2 := table.New(2)
	require.NoError(t, tbl2.AddNumeric("eng_interest", []float64{1, 2}))

	_, err := newService().MetricGrowth(context.Background(), GrowthRequest{
		Metric: "engagement",
		Table1: tbl1,
		Table2: tbl2,
	})
	assert.ErrorIs(t, err, core.ErrMissingColumns)
}

func TestBatchRunner_IndependentFailures(t *testing.T) {
	// Valid for engagement; missing every expectations item.
	tbl := engagementTable(t, []float64{0, 1, 2, 3}, nil)

	runner := NewBatchRunner(newService(), 2)
	results := runner.RunMeans(context.Background(), []MeanRequest{
		{Metric: "engagement", Table: tbl},
		{Metric: "expectations", Table: tbl},
	})

	require.Len(t, results, 2)
	assert.Equal(t, "engagement", results[0].Metric)
	require.NoError(t, results[0].Err)
	assert.InDelta(t, 6.0, results[0].Report.Overall.Value, 1e-9)

	assert.Equal(t, "expectations", results[1].Metric)
	assert.ErrorIs(t, results[1].Err, core.ErrMissingColumns)
}

func TestBatchRunner_AllCatalogMetricsOverSharedTable(t *testing.T) {
	service := newService()
	tbl := engagementTable(t, []float64{0, 1, 2, 3, 2, 1, 0, 3}, nil)

	var reqs []MeanRequest
	for i := 0; i < 8; i++ {
		reqs = append(reqs, MeanRequest{Metric: "engagement", Table: tbl})
	}
	results := NewBatchRunner(service, 3).RunMeans(context.Background(), reqs)

	require.Len(t, results, 8)
	for i, r := range results {
		require.NoError(t, r.Err, fmt.Sprintf("request %d", i))
		assert.InDelta(t, 6.0, r.Report.Overall.Value, 1e-9)
	}
}

func TestMakeMetric_MissingItemYieldsMissingComposite(t *testing.T) {
	tbl := table.New(2)
	for _, item := range []string{"eng_interest", "eng_losttrack", "eng_moreabout"} {
		require.NoError(t, tbl.AddNumeric(item, []float64{1, 2}))
	}
	require.NoError(t, tbl.AddNumeric("eng_like", []float64{math.NaN(), 2}))

	res, err := newService().MakeMetric(context.Background(), ScoreRequest{Metric: "engagement", Table: tbl})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Missing)

	composite, _ := res.Scored.Numeric("cm_engagement")
	assert.True(t, math.IsNaN(composite[0]))
	assert.InDelta(t, 8.0, composite[1], 1e-12)
}
