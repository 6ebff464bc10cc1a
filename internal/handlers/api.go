package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"olist-dashboard/internal/errors"
	"olist-dashboard/internal/models"
	"olist-dashboard/internal/observability"
	"olist-dashboard/internal/services"
)

const cacheMaxAge = "public, max-age=300"

var cacheHeaders = map[string]string{
	"Cache-Control": cacheMaxAge,
}

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

type boundsResponse struct {
	MinDate string `json:"min_date"`
	MaxDate string `json:"max_date"`
}

type summaryResponse struct {
	Range          models.DateRange `json:"range"`
	TotalOrders    int              `json:"total_orders"`
	TotalRevenue   float64          `json:"total_revenue"`
	RevenueDisplay string           `json:"total_revenue_display"`
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

func (h *APIHandlers) write(w http.ResponseWriter, r *http.Request, data any) {
	if err := errors.WriteSuccessWithHeaders(w, data, cacheHeaders); err != nil {
		h.logger.WarnContext(r.Context(), "write response", "error", err)
	}
}

func (h *APIHandlers) dashboard(w http.ResponseWriter, r *http.Request) (models.Dashboard, bool) {
	dr, err := queryRange(r, h.analytics)
	if err != nil {
		h.fail(w, r, err)
		return models.Dashboard{}, false
	}
	return h.analytics.Dashboard(r.Context(), dr), true
}

func (h *APIHandlers) HandleBounds(w http.ResponseWriter, r *http.Request) {
	bounds, ok := h.analytics.Bounds()
	if !ok {
		h.fail(w, r, errors.ServiceUnavailable("dataset has no purchase dates"))
		return
	}

	h.write(w, r, boundsResponse{
		MinDate: bounds.Start.Format(models.DateLayout),
		MaxDate: bounds.End.Format(models.DateLayout),
	})
}

func (h *APIHandlers) HandleDailyOrders(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dashboard(w, r)
	if !ok {
		return
	}
	h.write(w, r, d.Daily)
}

func (h *APIHandlers) HandleCustomersByState(w http.ResponseWriter, r *http.Request) {
	h.handleGeo(w, r, func(d models.Dashboard) []models.GeoCount { return d.ByState })
}

func (h *APIHandlers) HandleCustomersByCity(w http.ResponseWriter, r *http.Request) {
	h.handleGeo(w, r, func(d models.Dashboard) []models.GeoCount { return d.ByCity })
}

// handleGeo returns every group ordered by key, or the top groups by
// customer count when ?limit is given.
func (h *APIHandlers) handleGeo(w http.ResponseWriter, r *http.Request, pick func(models.Dashboard) []models.GeoCount) {
	limit, err := queryLimit(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, ok := h.dashboard(w, r)
	if !ok {
		return
	}

	rows := pick(d)
	if limit > 0 {
		rows = services.TopN(rows, limit)
	}
	h.write(w, r, rows)
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dashboard(w, r)
	if !ok {
		return
	}
	h.write(w, r, summaryResponse{
		Range:          d.Range,
		TotalOrders:    d.TotalOrders,
		TotalRevenue:   d.TotalRevenue,
		RevenueDisplay: FormatBRL(d.TotalRevenue),
	})
}

func (h *APIHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dashboard(w, r)
	if !ok {
		return
	}
	h.write(w, r, d)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if h.analytics.Table().Len() == 0 {
		status = "degraded"
	}

	errors.WriteSuccess(w, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"records":   h.analytics.Table().Len(),
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}
