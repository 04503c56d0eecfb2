package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Young-Hyun-Ham/hamsfam-sub000"
	httpAdapter "github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/adapters/http"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 5 * time.Second

// Server bundles the HTTP surface of an engine: the JSON API, the SSE run
// streams and the Prometheus metrics.
type Server struct {
	Engine   *hamsfam.Engine
	Streams  *httpAdapter.StreamManager
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Handler  http.Handler
}

// ServerOptions returns the engine options that feed the stream manager and
// the metrics of a server. They must be applied when the engine is built.
func ServerOptions(logger *slog.Logger) ([]hamsfam.Option, *Server) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	streams := httpAdapter.NewStreamManager()
	streams.SetLogger(logger)

	hooks := metrics.Hooks()
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		hooks = observability.CombineHooks(hooks, observability.LogHooks(logger))
	}
	opts := []hamsfam.Option{
		hamsfam.WithCallbacks(streams.Callbacks()),
		hamsfam.WithCallbacks(metrics.Callbacks()),
		hamsfam.WithLifecycleHooks(hooks),
	}
	return opts, &Server{Streams: streams, Metrics: metrics, Registry: reg}
}

// Mount builds the handler once the engine exists.
func (s *Server) Mount(eng *hamsfam.Engine, logger *slog.Logger) http.Handler {
	s.Engine = eng
	s.Handler = httpAdapter.NewHandler(eng, s.Streams,
		httpAdapter.WithLogger(logger),
		httpAdapter.WithMetricsHandler(observability.Handler(s.Registry)),
	)
	return s.Handler
}

// ListenAndServe serves handler on addr until ctx is done, then shuts down
// gracefully. ready, when not nil, receives the bound address.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Open event streams end with ctx.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Serve(ln)
	}()
	logger.Info("server listening", "addr", ln.Addr().String())
	if ready != nil {
		ready(ln.Addr())
	}

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down server")
	}

	// Give outstanding requests a deadline for completion.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
		if err := srv.Close(); err != nil {
			return fmt.Errorf("error killing server: %w", err)
		}
	}
	if err := <-serverErrors; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
