// Package device defines the runtime object abstraction shared by the
// launcher: named laboratory objects with a discoverable class name, an
// enumerable attribute list, a mutable tab-completion visibility set, and
// per-attribute kind classification. It also provides the immutable
// session registry those objects are bound into at startup.
package device

import (
	"sort"
	"sync"
)

// Object is any named runtime handle that can live in the session
// registry. Lookups by directive matchers use Name and ClassName.
type Object interface {
	Name() string
	ClassName() string
}

// Documented objects carry a one-line description for the session
// summary file.
type Documented interface {
	Doc() string
}

// Device is a runtime object whose introspection metadata can be
// reconfigured by the object-configuration override pipeline.
type Device interface {
	Object

	// Attributes enumerates all attribute names, sorted.
	Attributes() []string
	// HasAttribute is the explicit capability query used by the
	// directive applier instead of reflection.
	HasAttribute(name string) bool

	// Tab is the mutable tab-completion visibility set.
	Tab() *TabSet

	// Kind is the device-level classification.
	Kind() Kind
	SetKind(k Kind)

	// AttrKind reports the classification of a single attribute.
	AttrKind(attr string) Kind
	SetAttrKind(attr string, k Kind)
}

// Base is the canonical Device implementation. Device factories embed or
// return it directly; specialized device classes only differ in class
// name, attribute lists and metadata.
type Base struct {
	name      string
	className string
	doc       string

	mu    sync.RWMutex
	attrs map[string]Kind
	kind  Kind
	tab   *TabSet
}

// BaseOption configures a Base device at construction time
type BaseOption func(*Base)

// WithTabDefaults limits the initially visible attributes to the given
// names. Without this option every attribute starts visible.
func WithTabDefaults(names ...string) BaseOption {
	return func(b *Base) {
		b.tab = NewTabSet(names...)
	}
}

// WithDoc attaches a one-line description used in the session summary
func WithDoc(doc string) BaseOption {
	return func(b *Base) {
		b.doc = doc
	}
}

// WithKind sets the initial device-level kind (default normal)
func WithKind(k Kind) BaseOption {
	return func(b *Base) {
		b.kind = k
	}
}

// NewBase creates a device with the given name, class name and attribute
// list. All attributes start with kind normal and, unless WithTabDefaults
// is given, all attributes start visible.
func NewBase(name, className string, attrs []string, opts ...BaseOption) *Base {
	b := &Base{
		name:      name,
		className: className,
		attrs:     make(map[string]Kind, len(attrs)),
		kind:      KindNormal,
	}
	for _, a := range attrs {
		b.attrs[a] = KindNormal
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.tab == nil {
		b.tab = NewTabSet(attrs...)
	}
	return b
}

// Name returns the device name
func (b *Base) Name() string { return b.name }

// ClassName returns the device class name
func (b *Base) ClassName() string { return b.className }

// Doc returns the one-line description, if any
func (b *Base) Doc() string { return b.doc }

// Attributes returns all attribute names in sorted order
func (b *Base) Attributes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.attrs))
	for a := range b.attrs {
		names = append(names, a)
	}
	sort.Strings(names)
	return names
}

// HasAttribute reports whether the device has the named attribute
func (b *Base) HasAttribute(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.attrs[name]
	return ok
}

// Tab returns the visibility set
func (b *Base) Tab() *TabSet { return b.tab }

// Kind returns the device-level classification
func (b *Base) Kind() Kind {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.kind
}

// SetKind sets the device-level classification
func (b *Base) SetKind(k Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kind = k
}

// AttrKind returns an attribute's classification. Unknown attributes
// report omitted.
func (b *Base) AttrKind(attr string) Kind {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.attrs[attr]
}

// SetAttrKind sets an attribute's classification. Setting the kind of an
// attribute the device does not have is a silent no-op; the applier is
// responsible for warning first via HasAttribute.
func (b *Base) SetAttrKind(attr string, k Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.attrs[attr]; ok {
		b.attrs[attr] = k
	}
}
