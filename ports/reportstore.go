package ports

import (
	"context"

	"commonmetrics/domain/core"
	"commonmetrics/domain/report"
)

// ReportHead is one row of a report listing.
type ReportHead struct {
	ID        core.ReportID  `db:"id" json:"id"`
	Kind      string         `db:"kind" json:"kind"`
	Metric    string         `db:"metric" json:"metric"`
	CreatedAt core.Timestamp `db:"created_at" json:"created_at"`
}

// ReportStore persists estimation reports.
type ReportStore interface {
	SaveMeanReport(ctx context.Context, rep *report.MeanReport) error
	SaveGrowthReport(ctx context.Context, rep *report.GrowthReport) error
	GetMeanReport(ctx context.Context, id core.ReportID) (*report.MeanReport, error)
	GetGrowthReport(ctx context.Context, id core.ReportID) (*report.GrowthReport, error)
	ListReports(ctx context.Context, limit int) ([]ReportHead, error)
}
