package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"olist-dashboard/internal/models"
)

const (
	defaultCacheSize = 128
	tracerName       = "olist-dashboard/services"
)

// TableLoader loads the source transaction table.
type TableLoader interface {
	Load(ctx context.Context, source string) (*models.Table, error)
}

// Recorder receives timing of dashboard computations.
type Recorder interface {
	ObserveDashboard(d time.Duration, cached bool)
	SetDatasetRows(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveDashboard(time.Duration, bool) {}
func (nopRecorder) SetDatasetRows(int) {}

// Analytics serves dashboards over one immutable transaction table.
type Analytics struct {
	mu         sync.RWMutex
	table      *models.Table
	loadedAt   time.Time
	generation uint64

	cache    *lru.Cache[string, models.Dashboard]
	group    singleflight.Group
	logger   *slog.Logger
	recorder Recorder
	tracer   trace.Tracer
}

type Option func(*Analytics)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analytics) { a.logger = logger }
}

func WithRecorder(r Recorder) Option {
	return func(a *Analytics) { a.recorder = r }
}

// WithCacheSize bounds the number of memoized date ranges.
func WithCacheSize(n int) Option {
	return func(a *Analytics) {
		if n <= 0 {
			n = defaultCacheSize
		}
		a.cache = newDashboardCache(n)
	}
}

func NewAnalytics(opts ...Option) *Analytics {
	a := &Analytics{
		table:    models.NewTable(nil),
		logger:   slog.Default(),
		recorder: nopRecorder{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cache == nil {
		a.cache = newDashboardCache(defaultCacheSize)
	}
	return a
}

func newDashboardCache(size int) *lru.Cache[string, models.Dashboard] {
	c, err := lru.New[string, models.Dashboard](size)
	if err != nil {
		// only reachable with a non-positive size
		panic(err)
	}
	return c
}

// SetData replaces the table with rows.
func (a *Analytics) SetData(rows []models.Transaction) {
	a.SetTable(models.NewTable(rows))
}

// SetTable replaces the source table and drops memoized dashboards.
func (a *Analytics) SetTable(table *models.Table) {
	if table == nil {
		table = models.NewTable(nil)
	}
	a.mu.Lock()
	a.table = table
	a.loadedAt = time.Now()
	a.generation++
	a.mu.Unlock()

	a.cache.Purge()
	a.recorder.SetDatasetRows(table.Len())
}

// Load fetches the table through loader once and installs it.
func (a *Analytics) Load(ctx context.Context, loader TableLoader, source string) error {
	ctx, span := a.tracer.Start(ctx, "analytics.Load", trace.WithAttributes(attribute.String("dataset.source", source)))
	defer span.End()

	table, err := loader.Load(ctx, source)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load dataset: %w", err)
	}
	if _, _, ok := table.Bounds(); !ok {
		a.logger.Warn("dataset has no purchase timestamps", "source", source)
	}
	a.SetTable(table)
	return nil
}

func (a *Analytics) Table() *models.Table {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.table
}

// Bounds is the full range of purchase days. ok is false for an empty table.
func (a *Analytics) Bounds() (models.DateRange, bool) {
	first, last, ok := a.Table().Bounds()
	if !ok {
		return models.DateRange{}, false
	}
	return models.NewDateRange(first, last), true
}

// DefaultRange is the date picker's initial selection, the whole dataset.
func (a *Analytics) DefaultRange() models.DateRange {
	if r, ok := a.Bounds(); ok {
		return r
	}
	today := models.Day(time.Now())
	return models.DateRange{Start: today, End: today}
}

// Dashboard filters the table to r and computes every aggregate.
func (a *Analytics) Dashboard(ctx context.Context, r models.DateRange) models.Dashboard {
	start := time.Now()
	a.mu.RLock()
	table, gen := a.table, a.generation
	a.mu.RUnlock()

	key := fmt.Sprintf("%d|%s", gen, r)
	if r.Empty() {
		key = fmt.Sprintf("%d|empty", gen)
	}

	if d, ok := a.cache.Get(key); ok {
		a.recorder.ObserveDashboard(time.Since(start), true)
		d.Range = r
		return d
	}

	v, _, _ := a.group.Do(key, func() (any, error) {
		d := a.compute(ctx, table, r)
		a.cache.Add(key, d)
		return d, nil
	})
	a.recorder.ObserveDashboard(time.Since(start), false)

	d := v.(models.Dashboard)
	d.Range = r
	return d
}

func (a *Analytics) compute(ctx context.Context, table *models.Table, r models.DateRange) models.Dashboard {
	_, span := a.tracer.Start(ctx, "analytics.Dashboard", trace.WithAttributes(
		attribute.String("range.start", r.Start.Format(models.DateLayout)),
		attribute.String("range.end", r.End.Format(models.DateLayout)),
	))
	defer span.End()

	filtered := FilterByRange(table, r)
	daily := DailyOrders(filtered)
	totalOrders, totalRevenue := Summarize(daily)

	d := models.Dashboard{
		Range:        r,
		Daily:        daily,
		ByState:      CustomersByState(filtered),
		ByCity:       CustomersByCity(filtered),
		TotalOrders:  totalOrders,
		TotalRevenue: totalRevenue,
	}

	span.SetAttributes(
		attribute.Int("rows.filtered", filtered.Len()),
		attribute.Int("orders.total", totalOrders),
	)
	a.logger.Debug("dashboard computed",
		"range", r.String(),
		"rows", filtered.Len(),
		"days", len(daily),
	)
	return d
}

// Stats reports dataset figures for the admin endpoint.
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	table, loadedAt := a.table, a.loadedAt
	a.mu.RUnlock()

	stats := map[string]any{
		"record_count":      table.Len(),
		"purchased_count":   table.Purchased(),
		"last_processed":    loadedAt,
		"cached_dashboards": a.cache.Len(),
	}
	if first, last, ok := table.Bounds(); ok {
		stats["min_date"] = first.Format(models.DateLayout)
		stats["max_date"] = last.Format(models.DateLayout)
	}
	return stats
}
