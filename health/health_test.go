package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	t.Run("empty is healthy", func(t *testing.T) {
		assert.True(t, Aggregate("session", nil).IsHealthy())
	})

	t.Run("all healthy", func(t *testing.T) {
		status := Aggregate("session", []Status{
			NewHealthy("devicedb", "loaded"),
			NewHealthy("daq", "connected"),
		})
		assert.True(t, status.IsHealthy())
		assert.Len(t, status.SubStatuses, 2)
	})

	t.Run("degraded wins over healthy", func(t *testing.T) {
		status := Aggregate("session", []Status{
			NewHealthy("devicedb", "loaded"),
			NewDegraded("camviewer", "config missing"),
		})
		assert.True(t, status.IsDegraded())
	})

	t.Run("unhealthy wins over degraded", func(t *testing.T) {
		status := Aggregate("session", []Status{
			NewDegraded("camviewer", "config missing"),
			NewUnhealthy("daq", "control endpoint unreachable"),
		})
		assert.True(t, status.IsUnhealthy())
	})
}

func TestMonitor(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("devicedb", "38 devices loaded")
	m.UpdateDegraded("camviewer", "config missing")

	assert.Equal(t, 2, m.Count())

	status, ok := m.Get("devicedb")
	require.True(t, ok)
	assert.True(t, status.Healthy)
	assert.False(t, status.Timestamp.IsZero())

	_, ok = m.Get("ghost")
	assert.False(t, ok)

	agg := m.Aggregate("tmo-session")
	assert.True(t, agg.IsDegraded())
	assert.Equal(t, "tmo-session", agg.Component)

	m.UpdateUnhealthy("daq", "unreachable")
	assert.True(t, m.Aggregate("tmo-session").IsUnhealthy())
}

func TestHealthEndpoint(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("devicedb", "loaded")
	srv := NewServer(0, "tmo-session", m)

	t.Run("healthy returns 200", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		var status Status
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, "tmo-session", status.Component)
		assert.True(t, status.IsHealthy())
	})

	t.Run("unhealthy returns 503", func(t *testing.T) {
		m.UpdateUnhealthy("daq", "unreachable")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
