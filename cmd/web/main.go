package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"olist-dashboard/internal/config"
	"olist-dashboard/internal/dataset"
	"olist-dashboard/internal/middleware"
	"olist-dashboard/internal/models"
	"olist-dashboard/internal/observability"
	"olist-dashboard/internal/server"
	"olist-dashboard/internal/services"
	"olist-dashboard/internal/ui/templates"
)

const (
	version       = "1.0.0"
	renderTimeout = 10 * time.Second
	cacheMaxAge   = "public, max-age=300"
)

// dashboardPage renders the shell with the date pickers set to the whole dataset.
func dashboardPage(analytics *services.Analytics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		dr := analytics.DefaultRange()
		page := templates.Page{
			Title:   templates.Title,
			MinDate: dr.Start.Format(models.DateLayout),
			MaxDate: dr.End.Format(models.DateLayout),
			Start:   dr.Start.Format(models.DateLayout),
			End:     dr.End.Format(models.DateLayout),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", cacheMaxAge)
		if err := templates.Dashboard(page).Render(ctx, w); err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

// newHandler wires routes and middleware. metrics may be nil.
func newHandler(cfg *config.Config, analytics *services.Analytics, metrics *observability.Metrics, logger *slog.Logger) http.Handler {
	opts := server.Options{
		Templates:  &server.TemplateHandlers{Dashboard: dashboardPage(analytics)},
		TopN:       cfg.Dashboard.TopN,
		Middleware: []middleware.Middleware{middleware.Tracing()},
	}
	if metrics != nil {
		opts.Metrics = metrics.Handler()
		opts.Middleware = append(opts.Middleware, middleware.Metrics(metrics))
	}
	srv := server.NewServer(analytics, logger, opts)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	return middlewareChain(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"addr", cfg.Address(),
		"dataset", cfg.Dataset.Source,
	)

	shutdownTracing, err := observability.InitTracing(context.Background(), cfg.Telemetry, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	var metrics *observability.Metrics
	analyticsOpts := []services.Option{
		services.WithLogger(logger),
		services.WithCacheSize(cfg.Dashboard.CacheSize),
	}
	if cfg.Telemetry.EnableMetrics {
		metrics = observability.NewMetrics()
		analyticsOpts = append(analyticsOpts, services.WithRecorder(metrics))
	}
	analytics := services.NewAnalytics(analyticsOpts...)

	loader := dataset.NewLoader(
		dataset.WithHTTPClient(&http.Client{Timeout: cfg.Dataset.FetchTimeout}),
		dataset.WithCache(cfg.Dataset.CacheDir, cfg.Dataset.CacheTTL),
		dataset.WithLogger(logger),
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Dataset.FetchTimeout)
	defer cancel()

	start := time.Now()
	if err := analytics.Load(ctx, loader, cfg.Dataset.Source); err != nil {
		logger.Error("failed to load dataset", "source", cfg.Dataset.Source, "error", err)
		os.Exit(1)
	}
	logger.Info("dataset loaded successfully",
		"records", analytics.Table().Len(),
		"duration", time.Since(start),
	)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, analytics, metrics, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)
	gracefulServer.RegisterShutdownHook(shutdownTracing)

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
