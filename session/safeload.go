package session

import (
	"log/slog"
	"time"

	"github.com/tangkong/hutch-python/health"
	"github.com/tangkong/hutch-python/metric"
)

// safeLoader wraps load steps with timing, logging, metrics and health
// reporting. A failing step is recorded and skipped; startup continues
// with whatever did load.
type safeLoader struct {
	logger  *slog.Logger
	metrics *metric.Metrics
	monitor *health.Monitor
}

// run executes one load step and reports its outcome. Returns whether
// the step succeeded.
func (s *safeLoader) run(step string, fn func() error) bool {
	s.logger.Info("Loading...", "step", step)
	start := time.Now()

	err := fn()
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.LoadDuration.WithLabelValues(step).Observe(elapsed.Seconds())
	}

	if err != nil {
		s.logger.Error("Failed to load",
			"step", step, "duration", elapsed, "error", err)
		if s.metrics != nil {
			s.metrics.LoadStepsTotal.WithLabelValues(step, "failure").Inc()
		}
		if s.monitor != nil {
			s.monitor.UpdateDegraded(step, err.Error())
		}
		return false
	}

	s.logger.Info("Successfully loaded", "step", step, "duration", elapsed)
	if s.metrics != nil {
		s.metrics.LoadStepsTotal.WithLabelValues(step, "success").Inc()
	}
	if s.monitor != nil {
		s.monitor.UpdateHealthy(step, "loaded")
	}
	return true
}
