// Package app orchestrates validation, scoring, and estimation into the
// three public operations: score a metric, estimate its mean, and estimate
// its growth across two timepoints.
package app

import (
	"context"
	"log"
	"time"

	"commonmetrics/domain/metric"
	"commonmetrics/domain/report"
	"commonmetrics/domain/table"
	"commonmetrics/internal/estimation"
	"commonmetrics/internal/scoring"
	"commonmetrics/internal/validation"
	"commonmetrics/ports"
)

// MetricService wires the catalog, validator, scorer, and estimator behind
// the public scoring and estimation operations.
type MetricService struct {
	catalog   *metric.Catalog
	estimator *estimation.Estimator
	store     ports.ReportStore // nil disables persistence
}

// NewMetricService creates a metric service. The report store may be nil,
// in which case reports are returned but not persisted.
func NewMetricService(catalog *metric.Catalog, fitter ports.ModelFitter, store ports.ReportStore) *MetricService {
	return &MetricService{
		catalog:   catalog,
		estimator: estimation.New(fitter),
		store:     store,
	}
}

// ScoreRequest defines inputs for composite scoring.
type ScoreRequest struct {
	Metric string
	Table  *table.Table
	// SkipScaleUsage turns off the advisory check that every item uses its
	// full response scale. The check runs by default.
	SkipScaleUsage bool
	// ClusterColumn overrides the default class_id column for the
	// cluster-presence check on metrics that expect one.
	ClusterColumn string
}

// ScoreResult carries the scored table with its diagnostics.
type ScoreResult struct {
	Scored   *table.Scored
	Missing  int
	Findings report.Findings
}

// MakeMetric validates the table against the metric definition and, when
// validation passes, appends the composite column. Fatal findings abort
// before scoring; warnings ride along on the result.
func (s *MetricService) MakeMetric(ctx context.Context, req ScoreRequest) (*ScoreResult, error) {
	def, err := s.catalog.Lookup(req.Metric)
	if err != nil {
		return nil, err
	}

	opts := validation.DefaultOptions()
	opts.ScaleUsage = !req.SkipScaleUsage
	if req.ClusterColumn != "" {
		opts.ClusterColumn = req.ClusterColumn
	}

	findings := validation.Validate(req.Table, def, opts)
	if err := validation.Err(findings); err != nil {
		return nil, err
	}

	scored, missing, err := scoring.Score(req.Table, def)
	if err != nil {
		return nil, err
	}
	if missing > 0 {
		log.Printf("[MetricService] %s: %d of %d rows have no composite", def.Name, missing, req.Table.Rows())
	}
	return &ScoreResult{Scored: scored, Missing: missing, Findings: findings}, nil
}

// MeanRequest defines inputs for mean estimation.
type MeanRequest struct {
	Metric         string
	Table          *table.Table
	SkipScaleUsage bool
	ClusterEnabled bool
	ClusterColumn  string
	EquityGroup    string
}

// MetricMean scores the table and estimates the metric mean, clustered when
// the metric calls for it and cluster ids are available. Scoring warnings are
// merged into the report's findings.
func (s *MetricService) MetricMean(ctx context.Context, req MeanRequest) (*report.MeanReport, error) {
	started := time.Now()
	def, err := s.catalog.Lookup(req.Metric)
	if err != nil {
		return nil, err
	}

	scoreRes, err := s.MakeMetric(ctx, ScoreRequest{
		Metric:         req.Metric,
		Table:          req.Table,
		SkipScaleUsage: req.SkipScaleUsage,
		ClusterColumn:  req.ClusterColumn,
	})
	if err != nil {
		return nil, err
	}

	rep, err := s.estimator.Mean(ctx, scoreRes.Scored, def, estimation.MeanOptions{
		ClusterEnabled: req.ClusterEnabled,
		ClusterColumn:  req.ClusterColumn,
		EquityGroup:    req.EquityGroup,
	})
	if err != nil {
		return nil, err
	}
	rep.Findings = append(scoreRes.Findings, rep.Findings...)

	s.persistMean(ctx, rep)
	log.Printf("[MetricService] mean %s: mode=%s n=%d runtime=%dms", rep.Metric, rep.Mode, rep.Summary.N, time.Since(started).Milliseconds())
	return rep, nil
}

// GrowthRequest defines inputs for two-timepoint growth estimation.
type GrowthRequest struct {
	Metric         string
	Table1         *table.Table
	Table2         *table.Table
	SkipScaleUsage bool
	ClusterEnabled bool
	ClusterColumn  string
	EquityGroup    string
}

// MetricGrowth scores both timepoint tables and fits the combined growth
// model. Both tables must validate against the same metric definition.
func (s *MetricService) MetricGrowth(ctx context.Context, req GrowthRequest) (*report.GrowthReport, error) {
	started := time.Now()
	def, err := s.catalog.Lookup(req.Metric)
	if err != nil {
		return nil, err
	}

	score := func(tbl *table.Table) (*ScoreResult, error) {
		return s.MakeMetric(ctx, ScoreRequest{
			Metric:         req.Metric,
			Table:          tbl,
			SkipScaleUsage: req.SkipScaleUsage,
			ClusterColumn:  req.ClusterColumn,
		})
	}
	res1, err := score(req.Table1)
	if err != nil {
		return nil, err
	}
	res2, err := score(req.Table2)
	if err != nil {
		return nil, err
	}

	rep, err := s.estimator.Growth(ctx, res1.Scored, res2.Scored, def, estimation.GrowthOptions{
		ClusterEnabled: req.ClusterEnabled,
		ClusterColumn:  req.ClusterColumn,
		EquityGroup:    req.EquityGroup,
	})
	if err != nil {
		return nil, err
	}
	rep.Findings = append(append(res1.Findings, res2.Findings...), rep.Findings...)

	s.persistGrowth(ctx, rep)
	log.Printf("[MetricService] growth %s: mode=%s runtime=%dms", rep.Metric, rep.Mode, time.Since(started).Milliseconds())
	return rep, nil
}

// Metrics lists the catalog's metric names.
func (s *MetricService) Metrics() []string {
	return s.catalog.Names()
}

// Definition exposes a catalog definition for read-only inspection.
func (s *MetricService) Definition(name string) (*metric.Definition, error) {
	return s.catalog.Lookup(name)
}

// Persistence failures never fail the estimation call: the report was
// already computed and the caller still gets it.

func (s *MetricService) persistMean(ctx context.Context, rep *report.MeanReport) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveMeanReport(ctx, rep); err != nil {
		log.Printf("[MetricService] failed to persist mean report %s: %v", rep.ID, err)
	}
}

func (s *MetricService) persistGrowth(ctx context.Context, rep *report.GrowthReport) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveGrowthReport(ctx, rep); err != nil {
		log.Printf("[MetricService] failed to persist growth report %s: %v", rep.ID, err)
	}
}
