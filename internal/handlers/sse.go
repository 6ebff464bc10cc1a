package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"olist-dashboard/internal/errors"
	"olist-dashboard/internal/models"
	"olist-dashboard/internal/observability"
	"olist-dashboard/internal/services"
)

const defaultTopN = 5

var metricsTemplate = template.Must(template.New("metrics").Parse(`
<section id="metrics" class="metrics">
<div class="metric"><span>Total orders</span><strong>{{.Orders}}</strong></div>
<div class="metric"><span>Total Revenue</span><strong>{{.Revenue}}</strong></div>
</section>`))

var geoTableTemplate = template.Must(template.New("geoTable").Parse(`
<div id="{{.ID}}">
<h3>{{.Heading}}</h3>
<table class="modern-table">
<thead><tr><th>{{.KeyLabel}}</th><th>Customers</th></tr></thead>
<tbody>
{{range .Rows}}<tr><td>{{.Key}}</td><td>{{.CustomerCount}}</td></tr>
{{else}}<tr><td colspan="2">No orders in this range</td></tr>
{{end}}</tbody>
</table>
</div>`))

var dailyContentTemplate = template.Must(template.New("dailyContent").Parse(
	`<div id="daily-content">{{.Days}} days from {{.Range.Start.Format "2006-01-02"}} to {{.Range.End.Format "2006-01-02"}}</div>`))

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	topN      int
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger, topN int) *SSEHandlers {
	if topN <= 0 {
		topN = defaultTopN
	}
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
		topN:      topN,
	}
}

type metricsData struct {
	Orders  string
	Revenue string
}

type geoTableData struct {
	ID       string
	Heading  string
	KeyLabel string
	Rows     []models.GeoCount
}

func render(t *template.Template, data any) (string, error) {
	var buf strings.Builder
	err := t.Execute(&buf, data)
	return buf.String(), err
}

func (h *SSEHandlers) renderMetrics(d models.Dashboard) (string, error) {
	return render(metricsTemplate, metricsData{
		Orders:  FormatCount(d.TotalOrders),
		Revenue: FormatBRL(d.TotalRevenue),
	})
}

func (h *SSEHandlers) renderGeoTables(d models.Dashboard) ([]string, error) {
	tables := []geoTableData{
		{ID: "state-table", Heading: "Best Customer Based on State", KeyLabel: "State", Rows: services.TopN(d.ByState, h.topN)},
		{ID: "city-table", Heading: "Best Customer Based on City", KeyLabel: "City", Rows: services.TopN(d.ByCity, h.topN)},
	}

	out := make([]string, 0, len(tables))
	for _, t := range tables {
		html, err := render(geoTableTemplate, t)
		if err != nil {
			return nil, err
		}
		out = append(out, html)
	}
	return out, nil
}

// dashboard resolves the range from the request's signals. On a bad range
// it answers with a JSON error before any event stream is opened.
func (h *SSEHandlers) dashboard(w http.ResponseWriter, r *http.Request) (models.Dashboard, bool) {
	dr, err := signalRange(r, h.analytics)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return models.Dashboard{}, false
	}
	return h.analytics.Dashboard(r.Context(), dr), true
}

func (h *SSEHandlers) HandleDailyOrders(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dashboard(w, r)
	if !ok {
		return
	}
	sse := datastar.NewSSE(w, r)

	signals, err := json.Marshal(map[string]any{
		"dailyData": d.Daily,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "marshal daily data", "error", err)
		return
	}
	if err := sse.PatchSignals(signals); err != nil {
		h.logger.WarnContext(r.Context(), "patch daily signals", "error", err)
		return
	}

	html, err := render(dailyContentTemplate, map[string]any{"Days": len(d.Daily), "Range": d.Range})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "render daily content", "error", err)
		return
	}
	if err := sse.PatchElements(html); err != nil {
		h.logger.WarnContext(r.Context(), "patch daily content", "error", err)
	}
}

func (h *SSEHandlers) HandleDemographics(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dashboard(w, r)
	if !ok {
		return
	}
	sse := datastar.NewSSE(w, r)

	tables, err := h.renderGeoTables(d)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "render geo tables", "error", err)
		return
	}
	for _, html := range tables {
		if err := sse.PatchElements(html); err != nil {
			h.logger.WarnContext(r.Context(), "patch geo table", "error", err)
			return
		}
	}

	signals, err := json.Marshal(map[string]any{
		"stateData": d.ByState,
		"cityData":  d.ByCity,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "marshal demographics data", "error", err)
		return
	}
	if err := sse.PatchSignals(signals); err != nil {
		h.logger.WarnContext(r.Context(), "patch demographics signals", "error", err)
	}
}

// HandleRefreshAll redraws every panel for the selected range in one stream.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dashboard(w, r)
	if !ok {
		return
	}
	sse := datastar.NewSSE(w, r)

	metrics, err := h.renderMetrics(d)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "render metrics", "error", err)
		return
	}
	tables, err := h.renderGeoTables(d)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "render geo tables", "error", err)
		return
	}

	for _, html := range append([]string{metrics}, tables...) {
		if err := sse.PatchElements(html); err != nil {
			h.logger.WarnContext(r.Context(), "patch elements", "error", err)
			return
		}
	}

	allSignals, err := json.Marshal(map[string]any{
		"dailyData": d.Daily,
		"stateData": d.ByState,
		"cityData":  d.ByCity,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "marshal all signals data", "error", err)
		return
	}
	if err := sse.PatchSignals(allSignals); err != nil {
		h.logger.WarnContext(r.Context(), "patch all signals", "error", err)
	}
}
