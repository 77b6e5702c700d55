// Package api exposes scoring and estimation over HTTP. Request and response
// bodies are JSON; rendered report pages are served as HTML.
package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"commonmetrics/app"
	apperrors "commonmetrics/internal/errors"
	"commonmetrics/ports"
)

// App represents the HTTP application
type App struct {
	router  *chi.Mux
	service *app.MetricService
	store   ports.ReportStore // nil disables the report endpoints
}

// NewApp creates the HTTP application around a metric service.
func NewApp(service *app.MetricService, store ports.ReportStore) *App {
	a := &App{
		router:  chi.NewRouter(),
		service: service,
		store:   store,
	}
	a.setupMiddleware()
	a.setupRoutes()
	return a
}

// Router returns the configured handler.
func (a *App) Router() http.Handler {
	return a.router
}

// Start begins serving on the given port
func (a *App) Start(port string) error {
	log.Printf("[API] Starting server on port %s", port)
	return http.ListenAndServe(":"+port, a.router)
}

func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

func (a *App) setupRoutes() {
	// Catalog
	a.router.Get("/api/metrics", a.handleListMetrics)
	a.router.Get("/api/metrics/{metric}", a.handleGetMetric)

	// Scoring and estimation
	a.router.Post("/api/metrics/{metric}/score", a.handleScore)
	a.router.Post("/api/metrics/{metric}/mean", a.handleMean)
	a.router.Post("/api/metrics/{metric}/growth", a.handleGrowth)

	// Persisted reports
	a.router.Get("/api/reports", a.handleListReports)
	a.router.Get("/api/reports/mean/{id}", a.handleGetMeanReport)
	a.router.Get("/api/reports/growth/{id}", a.handleGetGrowthReport)
	a.router.Get("/api/reports/mean/{id}/html", a.handleMeanReportHTML)
	a.router.Get("/api/reports/growth/{id}/html", a.handleGrowthReportHTML)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps error codes onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	case apperrors.CodeValidationError, apperrors.CodeInvalidInput:
		status = http.StatusBadRequest
	case apperrors.CodeEstimationError:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}
