package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"

	"commonmetrics/domain/core"
	"commonmetrics/domain/report"
	apperrors "commonmetrics/internal/errors"
	"commonmetrics/ports"
)

const (
	kindMean   = "mean"
	kindGrowth = "growth"
)

// ReportRepositoryImpl implements ReportStore for PostgreSQL
type ReportRepositoryImpl struct {
	db *sqlx.DB
}

// NewReportRepository creates a new PostgreSQL report repository
func NewReportRepository(db *sqlx.DB) ports.ReportStore {
	return &ReportRepositoryImpl{db: db}
}

// SaveMeanReport persists a mean report as a JSONB payload
func (r *ReportRepositoryImpl) SaveMeanReport(ctx context.Context, rep *report.MeanReport) error {
	return r.save(ctx, string(rep.ID), kindMean, rep.Metric, rep.CreatedAt, rep)
}

// SaveGrowthReport persists a growth report as a JSONB payload
func (r *ReportRepositoryImpl) SaveGrowthReport(ctx context.Context, rep *report.GrowthReport) error {
	return r.save(ctx, string(rep.ID), kindGrowth, rep.Metric, rep.CreatedAt, rep)
}

func (r *ReportRepositoryImpl) save(ctx context.Context, id, kind, metric string, createdAt core.Timestamp, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode report payload")
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO metric_reports (id, kind, metric, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload
	`, id, kind, metric, body, createdAt)
	if err != nil {
		return apperrors.DatabaseError("failed to save report", err)
	}
	return nil
}

// GetMeanReport retrieves a mean report by id
func (r *ReportRepositoryImpl) GetMeanReport(ctx context.Context, id core.ReportID) (*report.MeanReport, error) {
	var rep report.MeanReport
	if err := r.get(ctx, string(id), kindMean, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// GetGrowthReport retrieves a growth report by id
func (r *ReportRepositoryImpl) GetGrowthReport(ctx context.Context, id core.ReportID) (*report.GrowthReport, error) {
	var rep report.GrowthReport
	if err := r.get(ctx, string(id), kindGrowth, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *ReportRepositoryImpl) get(ctx context.Context, id, kind string, out interface{}) error {
	var body []byte
	err := r.db.GetContext(ctx, &body, `
		SELECT payload FROM metric_reports WHERE id = $1 AND kind = $2
	`, id, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("report " + id)
	}
	if err != nil {
		return apperrors.DatabaseError("failed to load report", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.Wrap(err, "failed to decode report payload")
	}
	return nil
}

// ListReports returns the most recent reports of any kind
func (r *ReportRepositoryImpl) ListReports(ctx context.Context, limit int) ([]ports.ReportHead, error) {
	if limit <= 0 {
		limit = 50
	}
	var heads []ports.ReportHead
	err := r.db.SelectContext(ctx, &heads, `
		SELECT id, kind, metric, created_at
		FROM metric_reports
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list reports", err)
	}
	return heads, nil
}
