package report

import (
	"commonmetrics/domain/core"
)

// Mode records whether an estimate came from a clustered (random-intercept)
// or unclustered (ordinary least squares) model.
type Mode string

const (
	ModeClustered   Mode = "clustered"
	ModeUnclustered Mode = "unclustered"
)

// Estimate is a point value with its uncertainty: standard error, two-sided
// 95% confidence bounds, effective denominator degrees of freedom, and the
// clustering mode used. Immutable once returned.
type Estimate struct {
	Value  float64 `json:"value"`
	StdErr float64 `json:"std_err"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	DF     float64 `json:"df"`
	Mode   Mode    `json:"mode"`
}

// Contrast is the signed difference between two group-level estimates.
// Sign convention: First minus Second, where First lexically precedes Second.
// Label order is fixed lexically rather than by first appearance in the data,
// so reordering input rows never flips a sign.
type Contrast struct {
	First      string  `json:"first"`
	Second     string  `json:"second"`
	Difference float64 `json:"difference"`
	StdErr     float64 `json:"std_err"`
	DF         float64 `json:"df"`
	PValue     float64 `json:"p_value"`
}

// Key identifies the unordered pair of group labels, so symmetric pairs are
// never reported twice.
func (c Contrast) Key() string {
	return c.First + "|" + c.Second
}

// Summary holds plain descriptive statistics for a composite column.
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// GroupEstimate pairs one equity-group level with its model-based estimate
// and descriptives.
type GroupEstimate struct {
	Group    string   `json:"group"`
	Summary  Summary  `json:"summary"`
	Estimate Estimate `json:"estimate"`
}

// MeanReport is the output of one clustered-mean estimation call.
type MeanReport struct {
	ID     core.ReportID `json:"id"`
	Metric string        `json:"metric"`
	Column string        `json:"column"`
	Mode   Mode          `json:"mode"`

	Overall Estimate `json:"overall"`
	Summary Summary  `json:"summary"`

	// Groups and Contrasts are populated only when an equity group was
	// supplied. Contrasts cover every unordered pair of distinct labels.
	EquityGroup string          `json:"equity_group,omitempty"`
	Groups      []GroupEstimate `json:"groups,omitempty"`
	Contrasts   []Contrast      `json:"contrasts,omitempty"`

	MissingComposite int       `json:"missing_composite"`
	Findings         Findings  `json:"findings,omitempty"`
	CreatedAt        core.Timestamp `json:"created_at"`
}

// TimepointContrast is a between-group contrast at one of the two growth
// timepoints (1 or 2).
type TimepointContrast struct {
	Timepoint int      `json:"timepoint"`
	Contrast  Contrast `json:"contrast"`
}

// GrowthReport is the output of one growth estimation call: per-timepoint
// estimates, growth (timepoint 2 minus timepoint 1), and, when an equity
// group was supplied, per-pair contrasts at each timepoint plus the
// change-in-differences contrast from the interaction term.
type GrowthReport struct {
	ID     core.ReportID `json:"id"`
	Metric string        `json:"metric"`
	Column string        `json:"column"`
	Mode   Mode          `json:"mode"`

	Timepoint1 Estimate `json:"timepoint1"`
	Timepoint2 Estimate `json:"timepoint2"`
	Growth     Estimate `json:"growth"`

	EquityGroup         string              `json:"equity_group,omitempty"`
	TimepointContrasts  []TimepointContrast `json:"timepoint_contrasts,omitempty"`
	ChangeInDifferences []Contrast          `json:"change_in_differences,omitempty"`

	MissingComposite1 int            `json:"missing_composite_1"`
	MissingComposite2 int            `json:"missing_composite_2"`
	Findings          Findings       `json:"findings,omitempty"`
	CreatedAt         core.Timestamp `json:"created_at"`
}
