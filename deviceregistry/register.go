// Package deviceregistry registers the built-in beamline device classes
// with a factory registry. Hutch-specific classes are registered by the
// hutch's own load modules on top of these.
package deviceregistry

import (
	stderrors "errors"
	"fmt"

	"github.com/tangkong/hutch-python/device"
	"github.com/tangkong/hutch-python/devicedb"
	"github.com/tangkong/hutch-python/errors"
)

// Register registers all built-in device class factories:
//
//   - Motor (single-axis positioner)
//   - Slits (four-blade aperture)
//   - Attenuator (solid attenuator stack)
//   - Imager (profile monitor with removable target)
//   - AreaDetector (2D camera detector)
//   - GasDetector (pulse energy monitor)
//   - Valve (vacuum gate valve)
func Register(registry *devicedb.FactoryRegistry) error {
	if registry == nil {
		return errors.WrapFatal(
			stderrors.New("registry cannot be nil"),
			"DeviceRegistry", "Register", "registry validation")
	}

	builtins := []*devicedb.Registration{
		{
			Class:       "Motor",
			Description: "single-axis positioner",
			Factory: makeFactory("Motor",
				[]string{"position", "velocity", "acceleration", "low_limit", "high_limit", "homed"},
				"position", "velocity"),
		},
		{
			Class:       "Slits",
			Description: "four-blade aperture",
			Factory: makeFactory("Slits",
				[]string{"xwidth", "ywidth", "xcenter", "ycenter", "blocked"},
				"xwidth", "ywidth"),
		},
		{
			Class:       "Attenuator",
			Description: "solid attenuator stack",
			Factory: makeFactory("Attenuator",
				[]string{"transmission", "energy", "filters", "inserted", "removed"},
				"transmission", "inserted"),
		},
		{
			Class:       "Imager",
			Description: "profile monitor with removable target",
			Factory: makeFactory("Imager",
				[]string{"target", "zoom", "focus", "exposure", "inserted", "removed"},
				"target", "inserted"),
		},
		{
			Class:       "AreaDetector",
			Description: "2D camera detector",
			Factory: makeFactory("AreaDetector",
				[]string{"image", "exposure", "gain", "acquire", "num_images"},
				"image", "acquire"),
		},
		{
			Class:       "GasDetector",
			Description: "pulse energy monitor",
			Factory: makeFactory("GasDetector",
				[]string{"energy", "pressure", "calibration"},
				"energy"),
		},
		{
			Class:       "Valve",
			Description: "vacuum gate valve",
			Factory: makeFactory("Valve",
				[]string{"open_command", "close_command", "position_state", "interlocked"},
				"position_state"),
		},
	}

	for _, reg := range builtins {
		if err := registry.Register(reg); err != nil {
			return errors.WrapInvalid(err, "DeviceRegistry", "Register",
				fmt.Sprintf("%s class registration", reg.Class))
		}
	}
	return nil
}

// makeFactory builds a factory for a device class with a fixed attribute
// list. Only tabDefaults start visible for tab completion; the rest stay
// reachable but hidden until an override whitelists them.
func makeFactory(class string, attrs []string, tabDefaults ...string) devicedb.Factory {
	return func(entry devicedb.Entry) (device.Device, error) {
		if entry.Name == "" {
			return nil, errors.WrapInvalid(
				stderrors.New("entry has no name"),
				class, "Factory", "entry validation")
		}
		doc := fmt.Sprintf("%s %s", class, entry.Prefix)
		if entry.Prefix == "" {
			doc = class
		}
		return device.NewBase(entry.Name, class, attrs,
			device.WithTabDefaults(tabDefaults...),
			device.WithDoc(doc),
		), nil
	}
}
