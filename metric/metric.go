// Package metric collects session telemetry: load step outcomes, load
// durations, device counts and override pipeline activity.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the session-level metrics
type Metrics struct {
	SessionInfo        *prometheus.GaugeVec
	LoadStepsTotal     *prometheus.CounterVec
	LoadDuration       *prometheus.HistogramVec
	DevicesLoaded      prometheus.Gauge
	DevicesSkipped     *prometheus.CounterVec
	DirectivesApplied  prometheus.Counter
	DirectiveWarnings  prometheus.Counter
	ScriptRunsTotal    *prometheus.CounterVec
	ArchiveRequests    *prometheus.CounterVec
	SessionIdleSeconds prometheus.Gauge
}

// NewMetrics creates the session metrics
func NewMetrics() *Metrics {
	return &Metrics{
		SessionInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "hutch",
				Subsystem: "session",
				Name:      "info",
				Help:      "Session identity labels, value is always 1",
			},
			[]string{"hutch", "experiment", "session_id"},
		),

		LoadStepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hutch",
				Subsystem: "load",
				Name:      "steps_total",
				Help:      "Load step outcomes by step name and status",
			},
			[]string{"step", "status"},
		),

		LoadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "hutch",
				Subsystem: "load",
				Name:      "duration_seconds",
				Help:      "Load step duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"step"},
		),

		DevicesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "hutch",
				Subsystem: "devices",
				Name:      "loaded",
				Help:      "Number of devices in the session registry",
			},
		),

		DevicesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hutch",
				Subsystem: "devices",
				Name:      "skipped_total",
				Help:      "Devices skipped during database load, by reason",
			},
			[]string{"reason"},
		),

		DirectivesApplied: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "hutch",
				Subsystem: "objconf",
				Name:      "directives_applied_total",
				Help:      "Override directive blocks applied to devices",
			},
		),

		DirectiveWarnings: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "hutch",
				Subsystem: "objconf",
				Name:      "warnings_total",
				Help:      "Override directives skipped with a warning",
			},
		),

		ScriptRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hutch",
				Subsystem: "scripts",
				Name:      "runs_total",
				Help:      "User script runs by status",
			},
			[]string{"status"},
		),

		ArchiveRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hutch",
				Subsystem: "archive",
				Name:      "requests_total",
				Help:      "Archiver appliance requests by status",
			},
			[]string{"status"},
		),

		SessionIdleSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "hutch",
				Subsystem: "session",
				Name:      "idle_seconds",
				Help:      "Seconds since the last session activity",
			},
		),
	}
}

// collectors returns every core metric for registration
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SessionInfo,
		m.LoadStepsTotal,
		m.LoadDuration,
		m.DevicesLoaded,
		m.DevicesSkipped,
		m.DirectivesApplied,
		m.DirectiveWarnings,
		m.ScriptRunsTotal,
		m.ArchiveRequests,
		m.SessionIdleSeconds,
	}
}
