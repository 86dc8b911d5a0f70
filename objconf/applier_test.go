package objconf

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangkong/hutch-python/device"
)

func newTestDevice() *device.Base {
	return device.NewBase("im1l0", "Imager", []string{"zoom", "focus", "state", "cam"},
		device.WithTabDefaults("state"))
}

func testApplier() (*Applier, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewApplier(logger), &buf
}

func TestApply_WhitelistThenBlacklistExcludes(t *testing.T) {
	a, _ := testApplier()
	dev := newTestDevice()

	a.Apply(dev, []Directive{
		{Matcher: "im1l0", Whitelist: []string{"zoom"}},
		{Matcher: "im1l0", Blacklist: []string{"zoom"}},
	})

	assert.False(t, dev.Tab().Contains("zoom"))
}

func TestApply_BlacklistThenWhitelistIncludes(t *testing.T) {
	a, _ := testApplier()
	dev := newTestDevice()

	a.Apply(dev, []Directive{
		{Matcher: "im1l0", Blacklist: []string{"zoom"}},
		{Matcher: "im1l0", Whitelist: []string{"zoom"}},
	})

	assert.True(t, dev.Tab().Contains("zoom"))
}

func TestApply_ReplaceDiscardsEarlierEffects(t *testing.T) {
	a, _ := testApplier()
	dev := newTestDevice()

	a.Apply(dev, []Directive{
		{Matcher: "im1l0", Whitelist: []string{"zoom", "focus"}},
		{Matcher: "im1l0", Replace: []string{"cam"}},
	})

	assert.Equal(t, []string{"cam"}, dev.Tab().Names())
}

func TestApply_ReplaceWithinBlockWinsOverOwnWhitelist(t *testing.T) {
	a, _ := testApplier()
	dev := newTestDevice()

	// Whitelist and replace in the same block: replace resets the set,
	// discarding the whitelist effect from the same block.
	a.Apply(dev, []Directive{
		{Matcher: "im1l0", Whitelist: []string{"zoom"}, Replace: []string{"focus"}},
	})

	assert.Equal(t, []string{"focus"}, dev.Tab().Names())
}

func TestApply_LaterBlockOverridesReplace(t *testing.T) {
	a, _ := testApplier()
	dev := newTestDevice()

	a.Apply(dev, []Directive{
		{Matcher: "im1l0", Replace: []string{"cam"}},
		{Matcher: "Imager", Whitelist: []string{"zoom"}},
	})

	assert.Equal(t, []string{"cam", "zoom"}, dev.Tab().Names())
}

func TestApply_KindIndependentOfVisibility(t *testing.T) {
	a, _ := testApplier()
	dev := newTestDevice()

	a.Apply(dev, []Directive{
		{Matcher: "im1l0", Blacklist: []string{"state"}, Kinds: []KindEntry{{Attr: "state", Kind: "hinted"}}},
	})

	assert.False(t, dev.Tab().Contains("state"))
	assert.Equal(t, device.KindHinted, dev.AttrKind("state"))
}

func TestApply_KindOnDeviceName(t *testing.T) {
	a, _ := testApplier()
	dev := newTestDevice()

	a.Apply(dev, []Directive{
		{Matcher: "im1l0", Kinds: []KindEntry{{Attr: "im1l0", Kind: "config"}}},
	})

	assert.Equal(t, device.KindConfig, dev.Kind())
}

func TestApply_UnknownKindSkipped(t *testing.T) {
	a, buf := testApplier()
	dev := newTestDevice()

	a.Apply(dev, []Directive{
		{Matcher: "im1l0", Kinds: []KindEntry{
			{Attr: "zoom", Kind: "detailed"},
			{Attr: "focus", Kind: "config"},
		}},
	})

	// Bad entry skipped, later entry still applied
	assert.Equal(t, device.KindNormal, dev.AttrKind("zoom"))
	assert.Equal(t, device.KindConfig, dev.AttrKind("focus"))
	assert.Contains(t, buf.String(), "not a valid kind")
}

func TestApply_MissingAttributeWarnsAndContinues(t *testing.T) {
	a, buf := testApplier()
	dev := newTestDevice()

	a.Apply(dev, []Directive{
		{Matcher: "im1l0", Whitelist: []string{"dne", "zoom"}},
	})

	assert.True(t, dev.Tab().Contains("zoom"))
	assert.False(t, dev.Tab().Contains("dne"))
	assert.Contains(t, buf.String(), "no such attribute")
}

func TestApply_Idempotent(t *testing.T) {
	a, _ := testApplier()
	dev := newTestDevice()

	directives := []Directive{
		{Matcher: "im1l0", Whitelist: []string{"zoom"}},
		{Matcher: "Imager", Blacklist: []string{"state"}},
		{Matcher: "im1l0", Replace: []string{"cam", "focus"}, Kinds: []KindEntry{{Attr: "cam", Kind: "hinted"}}},
	}

	a.Apply(dev, Resolve(directives, dev))
	first := dev.Tab().Names()
	firstKind := dev.AttrKind("cam")

	a.Apply(dev, Resolve(directives, dev))
	assert.Equal(t, first, dev.Tab().Names())
	assert.Equal(t, firstKind, dev.AttrKind("cam"))
}

func TestApplyAll_RegistryWide(t *testing.T) {
	a, _ := testApplier()

	im1 := device.NewBase("im1l0", "Imager", []string{"zoom", "state"})
	im2 := device.NewBase("im2l0", "Imager", []string{"zoom", "state"})
	att := device.NewBase("at2l0", "Attenuator", []string{"transmission"})

	b := device.NewBuilder()
	require.NoError(t, b.Add(im1))
	require.NoError(t, b.Add(im2))
	require.NoError(t, b.Add(att))
	reg := b.Build()

	directives, err := Parse([]byte(`
Imager:
  tab_blacklist: [zoom]
im1l0:
  tab_whitelist: [zoom]
ghost:
  tab_whitelist: [anything]
`))
	require.NoError(t, err)

	a.ApplyAll(reg, directives)

	// Class block applies to both imagers; name block re-adds for im1l0 only.
	// The ghost matcher names no loaded object and is silently ignored.
	assert.True(t, im1.Tab().Contains("zoom"))
	assert.False(t, im2.Tab().Contains("zoom"))
	assert.True(t, att.Tab().Contains("transmission"))
}

func TestApply_WarningsCounted(t *testing.T) {
	a, _ := testApplier()
	dev := newTestDevice()

	assert.Equal(t, 0, a.Warnings())

	a.Apply(dev, []Directive{
		{Matcher: "im1l0", Whitelist: []string{"dne", "zoom"}},
		{Matcher: "im1l0", Kinds: []KindEntry{
			{Attr: "zoom", Kind: "detailed"},
			{Attr: "focus", Kind: "config"},
		}},
	})

	// One missing attribute plus one invalid kind.
	assert.Equal(t, 2, a.Warnings())
}
