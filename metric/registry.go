package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tangkong/hutch-python/errors"
)

// Registry manages the session metrics and any extras registered by
// subsystems.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics

	mu         sync.RWMutex
	registered map[string]prometheus.Collector
}

// NewRegistry creates a metrics registry with the core session metrics
// plus Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            NewMetrics(),
		registered:         make(map[string]prometheus.Collector),
	}

	for _, c := range r.Metrics.collectors() {
		r.prometheusRegistry.MustRegister(c)
	}

	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry returns the underlying prometheus registry
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Register adds a subsystem-specific collector under a unique name
func (r *Registry) Register(subsystem, name string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", subsystem, name)
	if _, exists := r.registered[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: metric %s", errors.ErrDuplicateName, key),
			"Registry", "Register", "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if stderrors.As(err, &already) {
			return errors.WrapInvalid(err, "Registry", "Register", "duplicate collector")
		}
		return errors.Wrap(err, "Registry", "Register", "register collector")
	}

	r.registered[key] = collector
	return nil
}

// Unregister removes a subsystem-specific collector
func (r *Registry) Unregister(subsystem, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", subsystem, name)
	collector, ok := r.registered[key]
	if !ok {
		return false
	}
	delete(r.registered, key)
	return r.prometheusRegistry.Unregister(collector)
}
