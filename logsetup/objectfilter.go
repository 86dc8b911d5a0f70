package logsetup

import (
	"context"
	"log/slog"
	"sync"
)

// DeviceKey is the attribute that tags a record as belonging to a
// device. Device callbacks log with it so the filter can tell object
// chatter apart from session messages.
const DeviceKey = "device"

// filterState is the allow list shared by a filter and all handlers
// derived from it via WithAttrs/WithGroup.
type filterState struct {
	mu        sync.RWMutex
	allowed   map[string]struct{}
	passLevel slog.Level
}

func (s *filterState) isAllowed(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.allowed[name]
	return ok
}

// ObjectFilter suppresses device-tagged records unless the device is
// on the allow list. Records at or above the pass level still pass for
// every device, and untagged records always pass.
type ObjectFilter struct {
	next  slog.Handler
	state *filterState
	// device is set when the logger was bound to one device via With
	device string
}

// NewObjectFilter wraps next with device filtering. Records at or
// above passLevel pass for every device.
func NewObjectFilter(next slog.Handler, passLevel slog.Level) *ObjectFilter {
	return &ObjectFilter{
		next: next,
		state: &filterState{
			allowed:   make(map[string]struct{}),
			passLevel: passLevel,
		},
	}
}

// Allow adds devices to the allow list
func (f *ObjectFilter) Allow(names ...string) {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	for _, n := range names {
		f.state.allowed[n] = struct{}{}
	}
}

// Disallow removes devices from the allow list
func (f *ObjectFilter) Disallow(names ...string) {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	for _, n := range names {
		delete(f.state.allowed, n)
	}
}

// Allowed reports whether a device is on the allow list
func (f *ObjectFilter) Allowed(name string) bool {
	return f.state.isAllowed(name)
}

func (f *ObjectFilter) Enabled(ctx context.Context, level slog.Level) bool {
	return f.next.Enabled(ctx, level)
}

func (f *ObjectFilter) Handle(ctx context.Context, record slog.Record) error {
	if record.Level >= f.state.passLevel {
		return f.next.Handle(ctx, record)
	}

	device := f.device
	if device == "" {
		record.Attrs(func(a slog.Attr) bool {
			if a.Key == DeviceKey {
				device = a.Value.String()
				return false
			}
			return true
		})
	}

	if device == "" || f.state.isAllowed(device) {
		return f.next.Handle(ctx, record)
	}
	return nil
}

func (f *ObjectFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	// A device tag attached via With is invisible to Handle's record
	// scan, so resolve it here.
	device := f.device
	for _, a := range attrs {
		if a.Key == DeviceKey {
			device = a.Value.String()
		}
	}
	return &ObjectFilter{next: f.next.WithAttrs(attrs), state: f.state, device: device}
}

func (f *ObjectFilter) WithGroup(name string) slog.Handler {
	return &ObjectFilter{next: f.next.WithGroup(name), state: f.state, device: f.device}
}
