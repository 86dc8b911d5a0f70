package devicedb

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tangkong/hutch-python/device"
	"github.com/tangkong/hutch-python/errors"
)

// Factory creates a device instance from a database entry. Factories
// must not perform I/O; hardware connections are established lazily by
// consumers after the session is assembled.
type Factory func(entry Entry) (device.Device, error)

// Registration holds a factory and metadata for one device class
type Registration struct {
	// Class is the device class name matched against entry.device_class
	Class string
	// Description is a human-readable summary used for discovery
	Description string
	// Factory creates instances of the class
	Factory Factory
}

// FactoryRegistry maps device class names to factories. Registration is
// thread-safe; class factories register once at startup.
type FactoryRegistry struct {
	mu        sync.RWMutex
	factories map[string]*Registration
}

// NewFactoryRegistry creates an empty factory registry
func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{factories: make(map[string]*Registration)}
}

// Register adds a device class factory. Duplicate class names are
// rejected so two packages cannot silently fight over a class.
func (r *FactoryRegistry) Register(reg *Registration) error {
	if reg == nil || reg.Class == "" {
		return errors.WrapInvalid(
			errors.ErrInvalidConfig, "FactoryRegistry", "Register", "registration validation")
	}
	if reg.Factory == nil {
		return errors.WrapInvalid(
			errors.ErrInvalidConfig, "FactoryRegistry", "Register", "factory function validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[reg.Class]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrDuplicateName, reg.Class),
			"FactoryRegistry", "Register", "duplicate class check")
	}

	r.factories[reg.Class] = reg
	return nil
}

// Create instantiates a device from a database entry. Unknown device
// classes return ErrUnknownClass so the loader can warn and move on.
func (r *FactoryRegistry) Create(entry Entry) (device.Device, error) {
	r.mu.RLock()
	reg, ok := r.factories[entry.DeviceClass]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownClass, entry.DeviceClass),
			"FactoryRegistry", "Create", fmt.Sprintf("create device %s", entry.Name))
	}

	dev, err := reg.Factory(entry)
	if err != nil {
		return nil, errors.Wrap(err, "FactoryRegistry", "Create",
			fmt.Sprintf("create device %s", entry.Name))
	}
	return dev, nil
}

// Classes returns all registered device class names, sorted
func (r *FactoryRegistry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.factories))
	for c := range r.factories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
