// Package sim provides simulated hardware for sessions started without
// live controls access.
package sim

import (
	"fmt"

	"github.com/tangkong/hutch-python/device"
)

var motorAttrs = []string{
	"position", "velocity", "acceleration", "low_limit", "high_limit",
}

func simMotor(name, class string) device.Device {
	return device.NewBase(name, class, motorAttrs,
		device.WithTabDefaults("position", "velocity"),
		device.WithDoc(fmt.Sprintf("simulated %s", name)),
	)
}

// Hardware returns the standard set of simulated devices: three fast
// motors and three slow motors, named fast_motor1..3 and slow_motor1..3.
func Hardware() []device.Device {
	devices := make([]device.Device, 0, 6)
	for i := 1; i <= 3; i++ {
		devices = append(devices, simMotor(fmt.Sprintf("fast_motor%d", i), "FastMotor"))
	}
	for i := 1; i <= 3; i++ {
		devices = append(devices, simMotor(fmt.Sprintf("slow_motor%d", i), "SlowMotor"))
	}
	return devices
}

// Group bundles the simulated devices under a single "sim" handle so a
// session can expose them as one namespace entry.
func Group() *device.Group {
	devices := Hardware()
	members := make([]device.Object, len(devices))
	for i, d := range devices {
		members[i] = d
	}
	return device.NewGroup("sim", "simulated hardware", members)
}
