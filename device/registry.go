package device

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tangkong/hutch-python/errors"
)

// Group is a named, immutable collection of objects exposed as a single
// registry entry, e.g. the class-based default groups (motors, detectors)
// or the simulated-hardware namespace.
type Group struct {
	name    string
	doc     string
	members []Object // sorted by name
}

// NewGroup creates a group from the given members, sorted by name
func NewGroup(name, doc string, members []Object) *Group {
	sorted := make([]Object, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })
	return &Group{name: name, doc: doc, members: sorted}
}

// Name returns the group name
func (g *Group) Name() string { return g.name }

// ClassName identifies groups to directive matchers
func (g *Group) ClassName() string { return "Group" }

// Doc returns the one-line group description
func (g *Group) Doc() string { return g.doc }

// Members returns the group members in name order
func (g *Group) Members() []Object {
	out := make([]Object, len(g.members))
	copy(out, g.members)
	return out
}

// Len returns the number of members
func (g *Group) Len() int { return len(g.members) }

// Registry is the immutable-after-build mapping from name to object
// handle. It is constructed once at session startup by a Builder and then
// passed by reference to consumers; there is no ambient global namespace.
type Registry struct {
	objects map[string]Object
	docs    map[string]string
	names   []string // sorted
}

// Get looks up an object by name
func (r *Registry) Get(name string) (Object, bool) {
	obj, ok := r.objects[name]
	return obj, ok
}

// Device looks up a configurable device by name. Returns false when the
// name is unknown or names a non-device handle.
func (r *Registry) Device(name string) (Device, bool) {
	obj, ok := r.objects[name]
	if !ok {
		return nil, false
	}
	dev, ok := obj.(Device)
	return dev, ok
}

// ByClass returns all objects whose class name matches, in name order
func (r *Registry) ByClass(className string) []Object {
	var out []Object
	for _, name := range r.names {
		if obj := r.objects[name]; obj.ClassName() == className {
			out = append(out, obj)
		}
	}
	return out
}

// Names returns all registered names in sorted order
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Devices returns all configurable devices in name order
func (r *Registry) Devices() []Device {
	var out []Device
	for _, name := range r.names {
		if dev, ok := r.objects[name].(Device); ok {
			out = append(out, dev)
		}
	}
	return out
}

// Doc returns the description registered for a name, falling back to the
// object's own Doc when none was registered explicitly.
func (r *Registry) Doc(name string) string {
	if doc, ok := r.docs[name]; ok && doc != "" {
		return doc
	}
	if obj, ok := r.objects[name]; ok {
		if d, ok := obj.(Documented); ok {
			return d.Doc()
		}
	}
	return ""
}

// Len returns the number of registered objects
func (r *Registry) Len() int { return len(r.objects) }

// Builder accumulates named objects during session assembly and produces
// the sealed Registry. It is safe for use from a single goroutine only;
// the load sequence is synchronous.
type Builder struct {
	mu      sync.Mutex
	objects map[string]Object
	docs    map[string]string
	sealed  bool
}

// NewBuilder creates an empty registry builder
func NewBuilder() *Builder {
	return &Builder{
		objects: make(map[string]Object),
		docs:    make(map[string]string),
	}
}

// Add registers an object under its own name
func (b *Builder) Add(obj Object) error {
	if obj == nil {
		return errors.WrapInvalid(
			errors.ErrInvalidConfig, "Builder", "Add", "object validation")
	}
	return b.AddNamed(obj.Name(), obj)
}

// AddNamed registers an object under an explicit name (aliases such as
// the `a`/`all_objects` pair use this). Duplicate names are rejected so a
// later load step cannot silently shadow an earlier device.
func (b *Builder) AddNamed(name string, obj Object) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed {
		return errors.WrapFatal(
			errors.ErrRegistrySealed, "Builder", "AddNamed", "registry mutation after build")
	}
	if name == "" {
		return errors.WrapInvalid(
			errors.ErrInvalidConfig, "Builder", "AddNamed", "name validation")
	}
	if _, exists := b.objects[name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrDuplicateName, name),
			"Builder", "AddNamed", "duplicate name check")
	}

	b.objects[name] = obj
	return nil
}

// Doc attaches a one-line description to a registered name
func (b *Builder) Doc(name, doc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return
	}
	b.docs[name] = doc
}

// Has reports whether a name is already registered
func (b *Builder) Has(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[name]
	return ok
}

// Get returns a previously added object, pre-seal. Load steps use this to
// wire later objects to earlier ones (e.g. grafting questionnaire objects
// onto the experiment object).
func (b *Builder) Get(name string) (Object, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[name]
	return obj, ok
}

// Objects returns a snapshot of all objects added so far, in name order
func (b *Builder) Objects() []Object {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.objects))
	for n := range b.objects {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]Object, 0, len(names))
	for _, n := range names {
		out = append(out, b.objects[n])
	}
	return out
}

// Build seals the builder and returns the immutable registry. Further
// Add calls fail with ErrRegistrySealed.
func (b *Builder) Build() *Registry {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sealed = true

	names := make([]string, 0, len(b.objects))
	for n := range b.objects {
		names = append(names, n)
	}
	sort.Strings(names)

	objects := make(map[string]Object, len(b.objects))
	for n, o := range b.objects {
		objects[n] = o
	}
	docs := make(map[string]string, len(b.docs))
	for n, d := range b.docs {
		docs[n] = d
	}

	return &Registry{objects: objects, docs: docs, names: names}
}
