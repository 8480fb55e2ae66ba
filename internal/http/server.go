// Package http serves the field editor and configuration API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"trackmeta/internal/core"
	"trackmeta/internal/field"
	"trackmeta/internal/flood"
	"trackmeta/internal/store"
)

const (
	shutdownTimeout = 10 * time.Second
	maxRequestBody  = 64 << 10
	// retryAfterSeconds is advertised for tracks SoundCloud is still processing.
	retryAfterSeconds = 30
	readinessProbeKey = "readiness-probe"
)

// ConfigStore reads and saves the installation parameters.
type ConfigStore interface {
	Get(ctx context.Context) (field.InstallationParameters, error)
	Save(ctx context.Context, params field.InstallationParameters) (field.InstallationParameters, error)
}

// Dependencies are the components the handlers act on. Limiter may be nil to
// disable rate limiting.
type Dependencies struct {
	Fields  *field.Manager
	Config  ConfigStore
	Store   store.Store
	Limiter *flood.Floodgate
}

type Server struct {
	config   *core.ServerConfig
	logger   *zap.Logger
	server   *http.Server
	metrics  *Metrics
	gatherer prometheus.Gatherer
	deps     Dependencies
	language string
}

// NewServer creates the HTTP server. metrics must be registered on gatherer
// for /metrics to expose them.
func NewServer(config *core.ServerConfig, deps Dependencies, metrics *Metrics, gatherer prometheus.Gatherer,
	language string, logger *zap.Logger) *Server {
	s := &Server{
		config:   config,
		logger:   logger,
		metrics:  metrics,
		gatherer: gatherer,
		deps:     deps,
		language: language,
	}
	s.server = createHTTPServer(config, s.setupRoutes())
	return s
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", healthzHandler)
	mux.HandleFunc("GET /readyz", s.readyzHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /{$}", homeHandler)

	mux.HandleFunc("GET /api/config", s.getConfigHandler)
	mux.HandleFunc("PUT /api/config", s.putConfigHandler)

	mux.HandleFunc("GET /api/entries/{entry}/fields/{field}", s.getFieldHandler)
	mux.HandleFunc("PUT /api/entries/{entry}/fields/{field}/reference", s.putReferenceHandler)
	mux.HandleFunc("POST /api/entries/{entry}/fields/{field}/resolve", s.resolveHandler)

	return mux
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"trackmeta"}`))
}

func (s *Server) readyzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	_, err := s.deps.Store.Get(r.Context(), readinessProbeKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("Readiness check failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable","service":"trackmeta"}`))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready","service":"trackmeta"}`))
}

func homeHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>trackmeta</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .header { color: #333; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
        .endpoint a:hover { text-decoration: underline; }
        code { background: #f4f4f4; padding: 2px 4px; }
    </style>
</head>
<body>
    <h1 class="header">trackmeta</h1>
    <p>SoundCloud track metadata for content fields</p>

    <h2>Endpoints</h2>
    <div class="endpoint"><a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint"><a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint"><a href="/readyz">Ready</a> - Readiness check</div>
    <div class="endpoint"><code>GET|PUT /api/config</code> - Installation configuration</div>
    <div class="endpoint"><code>GET /api/entries/{entry}/fields/{field}</code> - Stored track metadata</div>
    <div class="endpoint"><code>PUT /api/entries/{entry}/fields/{field}/reference</code> - Change the track reference</div>
    <div class="endpoint"><code>POST /api/entries/{entry}/fields/{field}/resolve</code> - Generate track metadata</div>
</body>
</html>`))
}
