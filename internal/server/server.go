package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"olist-dashboard/internal/handlers"
	"olist-dashboard/internal/middleware"
	"olist-dashboard/internal/services"
)

type Server struct {
	analytics   *services.Analytics
	router      chi.Router
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

type Options struct {
	Templates *TemplateHandlers
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Middleware runs inside the router so route patterns are known.
	Middleware []middleware.Middleware
	TopN       int
}

func NewServer(analytics *services.Analytics, logger *slog.Logger, opts Options) *Server {
	s := &Server{
		analytics:   analytics,
		router:      chi.NewRouter(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analytics, logger),
		sseHandlers: handlers.NewSSEHandlers(analytics, logger, opts.TopN),
	}
	for _, m := range opts.Middleware {
		s.router.Use(m)
	}
	s.setupRoutes(opts)
	return s
}

func (s *Server) setupRoutes(opts Options) {
	r := s.router

	// Dashboard routes
	if opts.Templates != nil && opts.Templates.Dashboard != nil {
		r.Get("/", opts.Templates.Dashboard)
	}
	r.Get("/health", s.apiHandlers.HandleHealth)
	r.Get("/admin/stats", s.apiHandlers.HandleStats)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	// REST API endpoints
	r.Route("/api", func(r chi.Router) {
		r.Get("/bounds", s.apiHandlers.HandleBounds)
		r.Get("/daily-orders", s.apiHandlers.HandleDailyOrders)
		r.Get("/customers/state", s.apiHandlers.HandleCustomersByState)
		r.Get("/customers/city", s.apiHandlers.HandleCustomersByCity)
		r.Get("/summary", s.apiHandlers.HandleSummary)
		r.Get("/dashboard", s.apiHandlers.HandleDashboard)
	})

	// Datastar SSE endpoints
	r.Route("/sse", func(r chi.Router) {
		r.Get("/daily-orders", s.sseHandlers.HandleDailyOrders)
		r.Get("/demographics", s.sseHandlers.HandleDemographics)
		r.Get("/refresh-all", s.sseHandlers.HandleRefreshAll)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
