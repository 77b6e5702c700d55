package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"commonmetrics/app"
	"commonmetrics/domain/core"
	apperrors "commonmetrics/internal/errors"
)

func (a *App) handleListMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"metrics": a.service.Metrics()})
}

func (a *App) handleGetMetric(w http.ResponseWriter, r *http.Request) {
	def, err := a.service.Definition(chi.URLParam(r, "metric"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":             def.Name,
		"items":            def.ItemNames(),
		"requires_cluster": def.RequiresCluster,
		"composite_column": def.CompositeColumn(),
	})
}

// scoreRequest carries the analysis options shared by all estimation
// endpoints alongside the data columns.
type scoreRequest struct {
	Data           Columns `json:"data"`
	Data1          Columns `json:"data1"`
	Data2          Columns `json:"data2"`
	SkipScaleUsage bool    `json:"skip_scale_usage"`
	Cluster        bool    `json:"cluster"`
	ClusterColumn  string  `json:"cluster_column"`
	EquityGroup    string  `json:"equity_group"`
}

func decodeRequest(r *http.Request) (*scoreRequest, error) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apperrors.InvalidInput("request body is not valid JSON")
	}
	return &req, nil
}

func (a *App) handleScore(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tbl, err := req.Data.Decode()
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := a.service.MakeMetric(r.Context(), app.ScoreRequest{
		Metric:         chi.URLParam(r, "metric"),
		Table:          tbl,
		SkipScaleUsage: req.SkipScaleUsage,
		ClusterColumn:  req.ClusterColumn,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	composite, _ := res.Scored.Numeric(res.Scored.Column)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metric":    res.Scored.Metric,
		"column":    res.Scored.Column,
		"composite": jsonColumn(composite),
		"missing":   res.Missing,
		"findings":  res.Findings,
	})
}

func (a *App) handleMean(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tbl, err := req.Data.Decode()
	if err != nil {
		writeError(w, err)
		return
	}

	rep, err := a.service.MetricMean(r.Context(), app.MeanRequest{
		Metric:         chi.URLParam(r, "metric"),
		Table:          tbl,
		SkipScaleUsage: req.SkipScaleUsage,
		ClusterEnabled: req.Cluster,
		ClusterColumn:  req.ClusterColumn,
		EquityGroup:    req.EquityGroup,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *App) handleGrowth(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tbl1, err := req.Data1.Decode()
	if err != nil {
		writeError(w, err)
		return
	}
	tbl2, err := req.Data2.Decode()
	if err != nil {
		writeError(w, err)
		return
	}

	rep, err := a.service.MetricGrowth(r.Context(), app.GrowthRequest{
		Metric:         chi.URLParam(r, "metric"),
		Table1:         tbl1,
		Table2:         tbl2,
		SkipScaleUsage: req.SkipScaleUsage,
		ClusterEnabled: req.Cluster,
		ClusterColumn:  req.ClusterColumn,
		EquityGroup:    req.EquityGroup,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *App) handleListReports(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, apperrors.NotFound("report store"))
		return
	}
	heads, err := a.store.ListReports(r.Context(), 50)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reports": heads})
}

func (a *App) handleGetMeanReport(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, apperrors.NotFound("report store"))
		return
	}
	rep, err := a.store.GetMeanReport(r.Context(), core.ReportID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *App) handleGetGrowthReport(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, apperrors.NotFound("report store"))
		return
	}
	rep, err := a.store.GetGrowthReport(r.Context(), core.ReportID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *App) handleMeanReportHTML(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, apperrors.NotFound("report store"))
		return
	}
	rep, err := a.store.GetMeanReport(r.Context(), core.ReportID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeHTML(w, RenderMeanHTML(rep))
}

func (a *App) handleGrowthReportHTML(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, apperrors.NotFound("report store"))
		return
	}
	rep, err := a.store.GetGrowthReport(r.Context(), core.ReportID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeHTML(w, RenderGrowthHTML(rep))
}

func writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// jsonColumn converts NaN cells to nulls, since NaN has no JSON encoding.
func jsonColumn(col []float64) []interface{} {
	out := make([]interface{}, len(col))
	for i, v := range col {
		if v != v {
			out[i] = nil
			continue
		}
		out[i] = v
	}
	return out
}
