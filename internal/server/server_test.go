package server

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"olist-dashboard/internal/config"
	"olist-dashboard/internal/middleware"
	"olist-dashboard/internal/models"
	"olist-dashboard/internal/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAnalytics() *services.Analytics {
	a := services.NewAnalytics(services.WithLogger(testLogger()))
	a.SetData([]models.Transaction{
		{OrderID: "O1", CustomerID: "C1", CustomerState: "SP", CustomerCity: "Sao Paulo", Price: 150,
			PurchasedAt: sql.NullTime{Time: time.Date(2018, 1, 5, 10, 0, 0, 0, time.UTC), Valid: true}},
	})
	return a
}

func TestServer_Routes(t *testing.T) {
	page := func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("page")) }
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("metrics")) })
	srv := NewServer(testAnalytics(), testLogger(), Options{
		Templates: &TemplateHandlers{Dashboard: page},
		Metrics:   metrics,
	})

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/admin/stats", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/bounds", http.StatusOK},
		{http.MethodGet, "/api/daily-orders", http.StatusOK},
		{http.MethodGet, "/api/customers/state", http.StatusOK},
		{http.MethodGet, "/api/customers/city?limit=5", http.StatusOK},
		{http.MethodGet, "/api/summary?start=2018-01-01&end=2018-01-31", http.StatusOK},
		{http.MethodGet, "/api/dashboard", http.StatusOK},
		{http.MethodGet, "/sse/daily-orders", http.StatusOK},
		{http.MethodGet, "/sse/demographics", http.StatusOK},
		{http.MethodGet, "/sse/refresh-all", http.StatusOK},
		{http.MethodPost, "/api/summary", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/country-revenue", http.StatusNotFound},
		{http.MethodGet, "/api/summary?start=nope", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestServer_WithoutOptionalRoutes(t *testing.T) {
	srv := NewServer(testAnalytics(), testLogger(), Options{})

	for _, path := range []string{"/", "/metrics"} {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestServer_RunsMiddleware(t *testing.T) {
	srv := NewServer(testAnalytics(), testLogger(), Options{
		Middleware: []middleware.Middleware{middleware.RequestID(), middleware.SecurityHeaders()},
	})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func newGraceful(t *testing.T) (*GracefulServer, net.Listener) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	httpServer := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})}
	cfg := config.ServerConfig{ReadTimeout: time.Second, WriteTimeout: time.Second, ShutdownTimeout: 2 * time.Second}
	return NewGracefulServer(httpServer, testLogger(), cfg), ln
}

func TestGracefulServer_ServeAndShutdown(t *testing.T) {
	gs, ln := newGraceful(t)

	var hooks atomic.Int32
	gs.RegisterShutdownHook(func(ctx context.Context) error {
		hooks.Add(1)
		return nil
	})
	gs.RegisterShutdownHook(func(ctx context.Context) error {
		hooks.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Equal(t, int32(2), hooks.Load())
}

func TestGracefulServer_HookError(t *testing.T) {
	gs, ln := newGraceful(t)
	boom := errors.New("flush spans")
	gs.RegisterShutdownHook(func(ctx context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := gs.Serve(ctx, ln)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
