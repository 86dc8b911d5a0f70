package metric

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tangkong/hutch-python/errors"
)

// Server exposes the metrics registry over HTTP
type Server struct {
	port     int
	path     string
	registry *Registry

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a metrics server. Port 0 disables nothing here;
// callers skip construction when metrics are off.
func NewServer(port int, registry *Registry) *Server {
	return &Server{
		port:     port,
		path:     "/metrics",
		registry: registry,
	}
}

// Start runs the metrics HTTP server. Blocks until Stop or failure.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(
			errors.ErrAlreadyStarted, "MetricServer", "Start", "state check")
	}
	if s.registry == nil {
		s.mu.Unlock()
		return errors.WrapFatal(
			errors.ErrMissingConfig, "MetricServer", "Start", "registry check")
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	))

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}
	server := s.server
	s.mu.Unlock()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WrapFatal(err, "MetricServer", "Start",
			fmt.Sprintf("serve metrics on port %d", s.port))
	}
	return nil
}

// Stop shuts the metrics server down
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Close()
	s.server = nil
	if err != nil {
		return errors.WrapTransient(err, "MetricServer", "Stop", "close HTTP server")
	}
	return nil
}
