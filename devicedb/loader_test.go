package devicedb

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangkong/hutch-python/config"
	"github.com/tangkong/hutch-python/device"
)

func loaderFixture(t *testing.T) (*Loader, *Client) {
	t.Helper()

	r := NewFactoryRegistry()
	require.NoError(t, r.Register(motorRegistration()))
	require.NoError(t, r.Register(&Registration{
		Class: "Broken",
		Factory: func(entry Entry) (device.Device, error) {
			return nil, fmt.Errorf("controller unreachable")
		},
	}))

	client, err := Open(writeDB(t, `[
		{"name": "mr1k1", "device_class": "Motor", "beamline": "TMO", "active": true},
		{"name": "mr2k2", "device_class": "Motor", "beamline": "TMO", "active": true, "load_level": "all"},
		{"name": "mr3k3", "device_class": "Motor", "beamline": "TMO", "active": false},
		{"name": "bad1", "device_class": "Broken", "beamline": "TMO", "active": true},
		{"name": "ghost", "device_class": "Teleporter", "beamline": "TMO", "active": true},
		{"name": "mono", "device_class": "Motor", "beamline": "L0", "active": true},
		{"name": "far", "device_class": "Motor", "beamline": "RIX", "active": true}
	]`))
	require.NoError(t, err)

	return NewLoader(r, nil), client
}

func deviceNames(devices []device.Device) []string {
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name()
	}
	return names
}

func TestLoaderLoad(t *testing.T) {
	loader, client := loaderFixture(t)

	t.Run("hutch is upper-cased and failures are skipped", func(t *testing.T) {
		devices := loader.Load(context.Background(), client, LoadOptions{
			Hutch:     "tmo",
			LoadLevel: config.LoadLevelStandard,
		})
		// bad1 fails its factory, ghost has no factory, mr2k2 is above
		// the standard load level and mr3k3 is inactive.
		assert.Equal(t, []string{"mr1k1"}, deviceNames(devices))
	})

	t.Run("load level all includes everything active", func(t *testing.T) {
		devices := loader.Load(context.Background(), client, LoadOptions{
			Hutch:     "tmo",
			LoadLevel: config.LoadLevelAll,
		})
		assert.Equal(t, []string{"mr1k1", "mr2k2"}, deviceNames(devices))
	})

	t.Run("extra beamlines widen the search", func(t *testing.T) {
		devices := loader.Load(context.Background(), client, LoadOptions{
			Hutch:          "tmo",
			ExtraBeamlines: []string{"L0"},
			LoadLevel:      config.LoadLevelStandard,
		})
		assert.Equal(t, []string{"mono", "mr1k1"}, deviceNames(devices))
	})

	t.Run("excluded devices are dropped", func(t *testing.T) {
		devices := loader.Load(context.Background(), client, LoadOptions{
			Hutch:          "tmo",
			ExcludeDevices: []string{"mr1k1"},
			LoadLevel:      config.LoadLevelAll,
		})
		assert.Equal(t, []string{"mr2k2"}, deviceNames(devices))
	})

	t.Run("no matching beamline", func(t *testing.T) {
		devices := loader.Load(context.Background(), client, LoadOptions{Hutch: "xcs"})
		assert.Empty(t, devices)
	})
}
