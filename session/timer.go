package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tangkong/hutch-python/metric"
)

const idlePollInterval = time.Minute

// IdleTimer closes a session that sat idle too long. Activity resets
// the clock; a warning fires 24 hours before expiry when the limit is
// long enough to allow one.
type IdleTimer struct {
	maxIdle time.Duration
	logger  *slog.Logger
	metrics *metric.Metrics
	poll    time.Duration

	mu         sync.Mutex
	lastActive time.Time
	warned     bool
}

// NewIdleTimer creates an idle timer with the given limit
func NewIdleTimer(maxIdle time.Duration, logger *slog.Logger, metrics *metric.Metrics) *IdleTimer {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdleTimer{
		maxIdle:    maxIdle,
		logger:     logger,
		metrics:    metrics,
		poll:       idlePollInterval,
		lastActive: time.Now(),
	}
}

// Touch records session activity
func (t *IdleTimer) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastActive = time.Now()
	t.warned = false
}

// Idle returns how long the session has been idle
func (t *IdleTimer) Idle() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Since(t.lastActive)
}

// Watch blocks until the idle limit is hit or the context ends. It
// returns nil on context cancellation and ErrSessionExpired semantics
// are left to the caller, which receives the expiry via the callback.
func (t *IdleTimer) Watch(ctx context.Context, onExpire func()) {
	warnLead := 24 * time.Hour

	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle := t.Idle()
			if t.metrics != nil {
				t.metrics.SessionIdleSeconds.Set(idle.Seconds())
			}

			if idle >= t.maxIdle {
				t.logger.Warn("Session idle limit reached, shutting down",
					"idle", idle, "limit", t.maxIdle)
				if onExpire != nil {
					onExpire()
				}
				return
			}

			if t.maxIdle > warnLead && idle >= t.maxIdle-warnLead {
				t.mu.Lock()
				shouldWarn := !t.warned
				t.warned = true
				t.mu.Unlock()
				if shouldWarn {
					t.logger.Warn("Session will close after 24 more idle hours",
						"idle", idle, "limit", t.maxIdle)
				}
			}
		}
	}
}
