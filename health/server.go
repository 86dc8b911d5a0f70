package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/tangkong/hutch-python/errors"
)

// Server serves the session health over HTTP. GET /healthz returns the
// aggregate as JSON with 200 for healthy/degraded and 503 otherwise.
type Server struct {
	port    int
	session string
	monitor *Monitor

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a health server for the named session
func NewServer(port int, session string, monitor *Monitor) *Server {
	return &Server{port: port, session: session, monitor: monitor}
}

// Handler returns the health endpoint handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		status := s.monitor.Aggregate(s.session)

		w.Header().Set("Content-Type", "application/json")
		if status.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
	return mux
}

// Start runs the health server. Blocks until Stop or failure.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(
			errors.ErrAlreadyStarted, "HealthServer", "Start", "state check")
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}
	server := s.server
	s.mu.Unlock()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WrapFatal(err, "HealthServer", "Start",
			fmt.Sprintf("serve health on port %d", s.port))
	}
	return nil
}

// Stop shuts the health server down
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Close()
	s.server = nil
	if err != nil {
		return errors.WrapTransient(err, "HealthServer", "Stop", "close HTTP server")
	}
	return nil
}
