package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r.Metrics)

	r.Metrics.DevicesLoaded.Set(42)
	assert.Equal(t, 42.0, testutil.ToFloat64(r.Metrics.DevicesLoaded))

	r.Metrics.LoadStepsTotal.WithLabelValues("happi db", "success").Inc()
	assert.Equal(t, 1.0,
		testutil.ToFloat64(r.Metrics.LoadStepsTotal.WithLabelValues("happi db", "success")))
}

func TestRegisterCustomCollector(t *testing.T) {
	r := NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "daq_begin_total",
		Help: "DAQ begin calls",
	})

	require.NoError(t, r.Register("daq", "begin_total", counter))
	assert.Error(t, r.Register("daq", "begin_total", counter))

	counter.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(counter))

	assert.True(t, r.Unregister("daq", "begin_total"))
	assert.False(t, r.Unregister("daq", "begin_total"))
}

func TestRegistryGathersCoreMetrics(t *testing.T) {
	r := NewRegistry()
	r.Metrics.SessionInfo.WithLabelValues("tmo", "lv4418", "abc").Set(1)

	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["hutch_session_info"])
	assert.True(t, names["go_goroutines"])
}
