package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// shutdownTimeout bounds how long in-flight requests may run during shutdown.
const shutdownTimeout = 10 * time.Second

// Transport is the inbound adapter exposing the policy API over HTTP.
type Transport struct {
	server        *http.Server
	addr          string
	apiHandler    *PolicyAPIHandler
	healthChecker *HealthChecker
	registry      *prometheus.Registry
	logger        *slog.Logger
}

// Option is a functional option for configuring Transport.
type Option func(*Transport)

// WithAddr sets the listen address. Default is "127.0.0.1:8000".
func WithAddr(addr string) Option {
	return func(t *Transport) {
		t.addr = addr
	}
}

// WithHealthChecker sets the /health handler backend.
func WithHealthChecker(h *HealthChecker) Option {
	return func(t *Transport) {
		t.healthChecker = h
	}
}

// WithLogger sets the logger for the transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// NewTransport creates the HTTP transport serving the policy API, /health,
// and /metrics. The registry must be the one the API metrics were
// registered with.
func NewTransport(apiHandler *PolicyAPIHandler, registry *prometheus.Registry, opts ...Option) *Transport {
	t := &Transport{
		addr:       "127.0.0.1:8000",
		apiHandler: apiHandler,
		registry:   registry,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}

	mux := http.NewServeMux()
	routes := apiHandler.Routes()
	mux.Handle("/policies", routes)
	mux.Handle("/policies/", routes)
	if t.healthChecker != nil {
		mux.HandleFunc("GET /health", t.healthChecker.Handler())
	}

	registry.MustRegister(collectors.NewGoCollector())
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	t.server = &http.Server{
		Addr:              t.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return t
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully. Blocks until shutdown completes.
func (t *Transport) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("policy API listening", "addr", t.addr)
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := t.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
