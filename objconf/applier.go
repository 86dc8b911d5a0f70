package objconf

import (
	"log/slog"

	"github.com/tangkong/hutch-python/device"
)

// Applier mutates device visibility and classification state from
// resolved directive blocks. Application is deterministic and idempotent:
// re-running the same directive sequence against the same initial state
// yields the same final state.
type Applier struct {
	logger   *slog.Logger
	warnings int
}

// NewApplier creates an applier logging warnings to the given logger
func NewApplier(logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{logger: logger}
}

// Warnings reports how many directives were skipped with a warning
func (a *Applier) Warnings() int { return a.warnings }

// Apply applies the resolved directive blocks to one device, in order.
// Within each block the directive kinds apply in fixed priority order:
// whitelist, blacklist, replace-list, kind-map. A directive naming an
// attribute the device does not have is reported as a warning and
// skipped; it never aborts processing of the remaining directives.
func (a *Applier) Apply(dev device.Device, directives []Directive) {
	for _, d := range directives {
		a.applyWhitelist(dev, d.Whitelist)
		a.applyBlacklist(dev, d.Blacklist)
		if d.HasReplace() {
			// Replace discards whitelist/blacklist effects of this and all
			// earlier blocks, but stays subject to later blocks.
			a.applyReplace(dev, d.Replace)
		}
		a.applyKinds(dev, d.Kinds)
	}
}

// ApplyAll resolves and applies the directive sequence to every
// configurable device in the registry, in deterministic name order.
// Matchers that correspond to no loaded object are silently ignored.
func (a *Applier) ApplyAll(reg *device.Registry, directives []Directive) {
	if len(directives) == 0 {
		return
	}
	for _, dev := range reg.Devices() {
		if matched := Resolve(directives, dev); len(matched) > 0 {
			a.Apply(dev, matched)
		}
	}
}

func (a *Applier) applyWhitelist(dev device.Device, attrs []string) {
	for _, attr := range attrs {
		if !dev.HasAttribute(attr) {
			a.warnMissing(dev, keyWhitelist, attr)
			continue
		}
		dev.Tab().Add(attr)
	}
}

func (a *Applier) applyBlacklist(dev device.Device, attrs []string) {
	for _, attr := range attrs {
		if !dev.HasAttribute(attr) {
			a.warnMissing(dev, keyBlacklist, attr)
			continue
		}
		if !dev.Tab().Remove(attr) {
			a.logger.Debug("attribute not in tab completion list",
				"device", dev.Name(), "attribute", attr)
		}
	}
}

func (a *Applier) applyReplace(dev device.Device, attrs []string) {
	dev.Tab().Reset()
	for _, attr := range attrs {
		if !dev.HasAttribute(attr) {
			a.warnMissing(dev, keyReplace, attr)
			continue
		}
		dev.Tab().Add(attr)
	}
}

func (a *Applier) applyKinds(dev device.Device, entries []KindEntry) {
	for _, entry := range entries {
		kind, err := device.ParseKind(entry.Kind)
		if err != nil {
			a.warnings++
			a.logger.Warn("not a valid kind, skipping",
				"device", dev.Name(), "attribute", entry.Attr, "kind", entry.Kind)
			continue
		}

		// An entry keyed by the device's own name sets the device-level kind
		if entry.Attr == dev.Name() {
			dev.SetKind(kind)
			continue
		}

		if !dev.HasAttribute(entry.Attr) {
			a.warnMissing(dev, keyKind, entry.Attr)
			continue
		}
		dev.SetAttrKind(entry.Attr, kind)
	}
}

func (a *Applier) warnMissing(dev device.Device, directive, attr string) {
	a.warnings++
	a.logger.Warn("device has no such attribute, directive skipped",
		"device", dev.Name(), "directive", directive, "attribute", attr)
}
