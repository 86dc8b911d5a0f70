package devicedb

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tangkong/hutch-python/config"
	"github.com/tangkong/hutch-python/device"
	"github.com/tangkong/hutch-python/pkg/worker"
)

// slowLoadThreshold is how long a single device instantiation may take
// before it is reported in the log.
const slowLoadThreshold = 500 * time.Millisecond

// loadWorkers bounds how many devices are instantiated at once.
const loadWorkers = 4

// loadDrainTimeout caps how long Load waits for in-flight creates.
const loadDrainTimeout = 2 * time.Minute

// LoadOptions controls which database entries become live devices
type LoadOptions struct {
	// Hutch selects the primary beamline (upper-cased for the search)
	Hutch string
	// ExtraBeamlines adds upstream beamlines whose devices feed the hutch
	ExtraBeamlines []string
	// LoadLevel filters entries marked with a higher level than requested
	LoadLevel config.LoadLevel
	// ExcludeDevices lists device names that must not be loaded
	ExcludeDevices []string
}

// Loader instantiates database entries through a factory registry
type Loader struct {
	registry *FactoryRegistry
	logger   *slog.Logger
}

// NewLoader creates a database loader
func NewLoader(registry *FactoryRegistry, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{registry: registry, logger: logger}
}

type createJob struct {
	idx   int
	entry Entry
}

// Load searches the database and instantiates the matching devices.
// Entries are created concurrently through a bounded worker pool, and
// per-entry failures (unknown class, factory error) are logged and
// skipped so one bad definition never blocks the rest of the beamline.
func (l *Loader) Load(ctx context.Context, client *Client, opts LoadOptions) []device.Device {
	beamlines := make([]string, 0, len(opts.ExtraBeamlines)+1)
	if opts.Hutch != "" {
		beamlines = append(beamlines, strings.ToUpper(opts.Hutch))
	}
	beamlines = append(beamlines, opts.ExtraBeamlines...)

	entries := client.Search(SearchOptions{Beamlines: beamlines, ActiveOnly: true})
	if len(entries) == 0 {
		l.logger.Warn("No items found in database", "beamlines", beamlines)
		return nil
	}

	excluded := make(map[string]struct{}, len(opts.ExcludeDevices))
	for _, n := range opts.ExcludeDevices {
		excluded[n] = struct{}{}
	}

	wanted := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if _, skip := excluded[entry.Name]; skip {
			l.logger.Info("Skipping excluded device", "device", entry.Name)
			continue
		}
		if entryLoadLevel(entry) > opts.LoadLevel {
			l.logger.Debug("Skipping device above requested load level",
				"device", entry.Name, "load_level", entry.LoadLevel)
			continue
		}
		wanted = append(wanted, entry)
	}

	// Each job writes to its own slot so the database order survives
	// the concurrent creation.
	results := make([]device.Device, len(wanted))
	pool := worker.NewPool(loadWorkers, len(wanted), func(_ context.Context, job createJob) error {
		start := time.Now()
		dev, err := l.registry.Create(job.entry)
		if err != nil {
			l.logger.Warn("Failed to create device from database entry",
				"device", job.entry.Name, "class", job.entry.DeviceClass, "error", err)
			return err
		}
		if elapsed := time.Since(start); elapsed > slowLoadThreshold {
			l.logger.Info("Slow device load",
				"device", job.entry.Name, "duration", elapsed)
		}
		results[job.idx] = dev
		return nil
	})
	pool.Start(ctx)
	for i, entry := range wanted {
		if err := pool.Submit(createJob{idx: i, entry: entry}); err != nil {
			l.logger.Warn("Failed to queue device for creation",
				"device", entry.Name, "error", err)
		}
	}
	if err := pool.Stop(loadDrainTimeout); err != nil {
		l.logger.Error("Device creation did not finish in time", "error", err)
	}

	devices := make([]device.Device, 0, len(wanted))
	for _, dev := range results {
		if dev != nil {
			devices = append(devices, dev)
		}
	}

	l.logger.Info("Loaded devices from database",
		"count", len(devices), "searched", len(entries), "beamlines", beamlines)
	return devices
}

func entryLoadLevel(e Entry) config.LoadLevel {
	if e.LoadLevel == "" {
		return config.LoadLevelStandard
	}
	return config.ParseLoadLevel(e.LoadLevel)
}
