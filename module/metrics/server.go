package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	metricsPath     = "/metrics"
	shutdownTimeout = 5 * time.Second
)

// Server exposes the collectors registered with a gatherer to prometheus.
type Server struct {
	log    zerolog.Logger
	server *http.Server
}

// NewServer creates a server listening on port. With withProfiler set, the
// pprof handlers are mounted below /debug/pprof/.
func NewServer(log zerolog.Logger, port uint, gatherer prometheus.Gatherer, withProfiler bool) *Server {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	if withProfiler {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	addr := fmt.Sprintf(":%d", port)
	return &Server{
		log: log.With().Str("component", "metrics_server").Str("address", addr).Logger(),
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run serves until ctx is done. Only failures to listen are returned.
func (s *Server) Run(ctx context.Context) error {
	served := make(chan error, 1)
	go func() {
		served <- s.server.ListenAndServe()
	}()
	s.log.Info().Str("path", metricsPath).Msg("serving metrics")

	select {
	case err := <-served:
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(stopCtx); err != nil {
		s.log.Warn().Err(err).Msg("metrics server did not shut down cleanly")
		return nil
	}
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn().Err(err).Msg("metrics server stopped with error")
	}
	return nil
}
