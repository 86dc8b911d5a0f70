package daq

import (
	"context"
	"sync"

	"github.com/tangkong/hutch-python/errors"
)

// Sim is an in-memory DAQ used by --sim sessions and tests. It keeps
// the same state machine as the live flavors without any transport.
type Sim struct {
	mu       sync.Mutex
	platform int
	state    string
	events   int
}

func newSim(platform int) *Sim {
	return &Sim{platform: platform, state: stateDisconnected}
}

const (
	stateDisconnected = "disconnected"
	stateConfigured   = "configured"
	stateRunning      = "running"
)

// Name returns the registry handle
func (s *Sim) Name() string { return "daq" }

// ClassName reports the DAQ flavor
func (s *Sim) ClassName() string { return "SimDaq" }

// Platform returns the configured platform number
func (s *Sim) Platform() int { return s.platform }

// Connect moves the simulated DAQ into the configured state
func (s *Sim) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateDisconnected {
		return errors.WrapInvalid(
			errors.ErrAlreadyStarted, "SimDaq", "Connect", "state check")
	}
	s.state = stateConfigured
	return nil
}

// Disconnect returns the simulated DAQ to the disconnected state
func (s *Sim) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateDisconnected
	s.events = 0
	return nil
}

// Begin starts a simulated acquisition
func (s *Sim) Begin(ctx context.Context, events int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateDisconnected:
		return errors.WrapInvalid(
			errors.ErrNotStarted, "SimDaq", "Begin", "state check")
	case stateRunning:
		return errors.WrapInvalid(
			errors.ErrAlreadyStarted, "SimDaq", "Begin", "state check")
	}
	s.state = stateRunning
	s.events = events
	return nil
}

// End stops the simulated acquisition
func (s *Sim) End(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateRunning {
		return errors.WrapInvalid(
			errors.ErrNotStarted, "SimDaq", "End", "state check")
	}
	s.state = stateConfigured
	return nil
}

// State reports the current control state
func (s *Sim) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
