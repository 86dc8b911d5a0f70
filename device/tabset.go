package device

import (
	"sort"
	"sync"
)

// TabSet is the mutable tab-completion visibility set for a device. It
// tracks which attribute names are exposed to interactive discovery.
//
// Override application during session startup is single-threaded, but the
// set is also read by log filters and the summary writer, so access is
// guarded.
type TabSet struct {
	mu      sync.RWMutex
	visible map[string]struct{}
}

// NewTabSet creates a visibility set containing the given names
func NewTabSet(names ...string) *TabSet {
	ts := &TabSet{visible: make(map[string]struct{}, len(names))}
	for _, n := range names {
		ts.visible[n] = struct{}{}
	}
	return ts
}

// Add makes an attribute name visible
func (ts *TabSet) Add(name string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.visible[name] = struct{}{}
}

// Remove hides an attribute name. Removing a name that is not visible is
// a no-op.
func (ts *TabSet) Remove(name string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, ok := ts.visible[name]; !ok {
		return false
	}
	delete(ts.visible, name)
	return true
}

// Reset empties the visibility set
func (ts *TabSet) Reset() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.visible = make(map[string]struct{})
}

// Replace resets the set to exactly the given names
func (ts *TabSet) Replace(names []string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.visible = make(map[string]struct{}, len(names))
	for _, n := range names {
		ts.visible[n] = struct{}{}
	}
}

// Contains reports whether an attribute name is visible
func (ts *TabSet) Contains(name string) bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	_, ok := ts.visible[name]
	return ok
}

// Names returns the visible attribute names in sorted order
func (ts *TabSet) Names() []string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	names := make([]string, 0, len(ts.visible))
	for n := range ts.visible {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of visible attributes
func (ts *TabSet) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.visible)
}
