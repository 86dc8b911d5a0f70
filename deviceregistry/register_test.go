package deviceregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangkong/hutch-python/devicedb"
)

func TestRegister(t *testing.T) {
	registry := devicedb.NewFactoryRegistry()
	require.NoError(t, Register(registry))

	assert.Equal(t, []string{
		"AreaDetector", "Attenuator", "GasDetector",
		"Imager", "Motor", "Slits", "Valve",
	}, registry.Classes())
}

func TestRegisterNilRegistry(t *testing.T) {
	assert.Error(t, Register(nil))
}

func TestRegisterTwiceFails(t *testing.T) {
	registry := devicedb.NewFactoryRegistry()
	require.NoError(t, Register(registry))
	assert.Error(t, Register(registry))
}

func TestBuiltinFactories(t *testing.T) {
	registry := devicedb.NewFactoryRegistry()
	require.NoError(t, Register(registry))

	t.Run("motor has limited tab defaults", func(t *testing.T) {
		dev, err := registry.Create(devicedb.Entry{
			Name: "mr1k1", DeviceClass: "Motor", Prefix: "MR1K1:BEND",
		})
		require.NoError(t, err)
		assert.Equal(t, "Motor", dev.ClassName())
		assert.True(t, dev.HasAttribute("acceleration"))
		assert.Equal(t, []string{"position", "velocity"}, dev.Tab().Names())
	})

	t.Run("entry without name rejected", func(t *testing.T) {
		_, err := registry.Create(devicedb.Entry{DeviceClass: "Motor"})
		assert.Error(t, err)
	})
}
