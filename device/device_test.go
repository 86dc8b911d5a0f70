package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/tangkong/hutch-python/errors"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"omitted", KindOmitted},
		{"normal", KindNormal},
		{"config", KindConfig},
		{"hinted", KindHinted},
		{"HINTED", KindHinted},
		{"  Normal ", KindNormal},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseKind("detailed")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalid(err))
}

func TestKind_Flags(t *testing.T) {
	assert.True(t, KindHinted.Has(KindNormal), "hinted implies normal")
	assert.False(t, KindConfig.Has(KindNormal))
	assert.Equal(t, "hinted", KindHinted.String())
	assert.Equal(t, "omitted", KindOmitted.String())
}

func TestTabSet_Basics(t *testing.T) {
	ts := NewTabSet("foo", "bar")

	assert.True(t, ts.Contains("foo"))
	assert.Equal(t, []string{"bar", "foo"}, ts.Names())

	ts.Add("baz")
	assert.True(t, ts.Contains("baz"))
	assert.Equal(t, 3, ts.Len())

	assert.True(t, ts.Remove("foo"))
	assert.False(t, ts.Contains("foo"))
	// second remove is a no-op
	assert.False(t, ts.Remove("foo"))

	ts.Replace([]string{"only"})
	assert.Equal(t, []string{"only"}, ts.Names())

	ts.Reset()
	assert.Equal(t, 0, ts.Len())
}

func TestBase_Attributes(t *testing.T) {
	dev := NewBase("at1k4", "Attenuator", []string{"transmission", "setpoint", "readback"})

	assert.Equal(t, "at1k4", dev.Name())
	assert.Equal(t, "Attenuator", dev.ClassName())
	assert.Equal(t, []string{"readback", "setpoint", "transmission"}, dev.Attributes())
	assert.True(t, dev.HasAttribute("setpoint"))
	assert.False(t, dev.HasAttribute("dne"))

	// All attributes start visible by default
	assert.True(t, dev.Tab().Contains("readback"))
}

func TestBase_TabDefaults(t *testing.T) {
	dev := NewBase("im1k0", "Imager", []string{"state", "zoom", "focus"},
		WithTabDefaults("state"))

	assert.True(t, dev.Tab().Contains("state"))
	assert.False(t, dev.Tab().Contains("zoom"))
}

func TestBase_Kinds(t *testing.T) {
	dev := NewBase("gdet", "GasDetector", []string{"energy"})

	assert.Equal(t, KindNormal, dev.Kind())
	assert.Equal(t, KindNormal, dev.AttrKind("energy"))
	assert.Equal(t, KindOmitted, dev.AttrKind("dne"))

	dev.SetKind(KindHinted)
	assert.Equal(t, KindHinted, dev.Kind())

	dev.SetAttrKind("energy", KindConfig)
	assert.Equal(t, KindConfig, dev.AttrKind("energy"))

	// Setting a missing attribute's kind does not invent the attribute
	dev.SetAttrKind("dne", KindHinted)
	assert.False(t, dev.HasAttribute("dne"))
}

func TestBase_Doc(t *testing.T) {
	dev := NewBase("daq", "Daq", nil, WithDoc("LCLS1 DAQ interface object."))
	assert.Equal(t, "LCLS1 DAQ interface object.", dev.Doc())
}
