package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tangkong/hutch-python/archive"
	"github.com/tangkong/hutch-python/camload"
	"github.com/tangkong/hutch-python/config"
	"github.com/tangkong/hutch-python/daq"
	"github.com/tangkong/hutch-python/device"
	"github.com/tangkong/hutch-python/devicedb"
	"github.com/tangkong/hutch-python/deviceregistry"
	"github.com/tangkong/hutch-python/errors"
	"github.com/tangkong/hutch-python/experiment"
	"github.com/tangkong/hutch-python/health"
	"github.com/tangkong/hutch-python/logsetup"
	"github.com/tangkong/hutch-python/metric"
	"github.com/tangkong/hutch-python/objconf"
	"github.com/tangkong/hutch-python/sim"
	"github.com/tangkong/hutch-python/userload"
)

// camviewerCfgTemplate locates the shared camera config for a hutch
const camviewerCfgTemplate = "/reg/g/pcds/pyps/config/%s/camviewer.cfg"

// Options selects what the session loads beyond conf.yml
type Options struct {
	// Config is the interpreted conf.yml
	Config *config.Config
	// Sim forces simulated DAQ mode
	Sim bool
	// Experiment overrides the experiment key and auto-selection
	Experiment string
	// Script is an optional startup script run after the other load
	// steps; its failure aborts the load
	Script string
	// CamviewerCfg overrides the shared camviewer config path
	CamviewerCfg string
	// ArchiveURL points at the archiver appliance; empty skips it
	ArchiveURL string
	// MetricsPort serves /metrics when non-zero
	MetricsPort int
	// HealthPort serves /healthz when non-zero
	HealthPort int
}

// Session is one assembled interactive environment
type Session struct {
	ID      string
	Hutch   string
	ExpName experiment.Name

	opts    Options
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metric.Registry
	monitor *health.Monitor
	timer   *IdleTimer

	registry *device.Registry
	daq      daq.Daq
	archive  *archive.Client
}

// New creates an unloaded session
func New(opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Empty()
	}

	metrics := metric.NewRegistry()
	return &Session{
		ID:      uuid.NewString(),
		Hutch:   cfg.Hutch,
		opts:    opts,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		monitor: health.NewMonitor(),
		timer:   NewIdleTimer(cfg.SessionTimer, logger, metrics.Metrics),
	}
}

// Registry returns the session object registry, nil before Load
func (s *Session) Registry() *device.Registry { return s.registry }

// Daq returns the session DAQ object, possibly nil
func (s *Session) Daq() daq.Daq { return s.daq }

// Archive returns the archiver client, nil when not configured
func (s *Session) Archive() *archive.Client { return s.archive }

// Monitor returns the session health monitor
func (s *Session) Monitor() *health.Monitor { return s.monitor }

// Metrics returns the session metrics registry
func (s *Session) Metrics() *metric.Registry { return s.metrics }

// Touch records user activity for the idle timer
func (s *Session) Touch() { s.timer.Touch() }

// Load runs the assembly sequence. Individual steps fail soft: their
// objects are absent and the failure is logged, recorded in metrics and
// reflected in session health. Only a nil cache or a malformed override
// config abort the load.
func (s *Session) Load(ctx context.Context) error {
	PrintBanner(s.Hutch)

	cache := NewCache(s.logger)
	loader := &safeLoader{
		logger:  s.logger,
		metrics: s.metrics.Metrics,
		monitor: s.monitor,
	}

	s.loadDaq(ctx, cache, loader)
	s.loadDeviceDB(ctx, cache, loader)
	s.loadCameras(cache, loader)

	loader.run("simulated hardware", func() error {
		// The motors are cached individually so the registry, the
		// default groups and configuration directives all see them;
		// the group shares the same instances.
		devices := sim.Hardware()
		members := make([]device.Object, 0, len(devices))
		for _, dev := range devices {
			cache.Add(dev)
			members = append(members, dev)
		}
		group := device.NewGroup("sim", "simulated hardware", members)
		cache.Add(group)
		cache.Doc(group.Name(), "Namespace of simulated hardware.")
		return nil
	})

	s.loadArchive(cache, loader)
	s.selectExperiment(ctx, loader)
	if err := s.loadScripts(cache, loader); err != nil {
		return err
	}
	s.loadGroups(cache, loader)

	// Seal the registry, then apply the override pipeline to it.
	s.registry = cache.Build()
	s.metrics.Metrics.DevicesLoaded.Set(float64(len(s.registry.Devices())))

	if err := s.applyOverrides(); err != nil {
		return err
	}

	s.writeSummary(loader)

	s.metrics.Metrics.SessionInfo.
		WithLabelValues(s.Hutch, s.ExpName.Full, s.ID).Set(1)
	s.logger.Info("Session assembled",
		"session_id", s.ID, "hutch", s.Hutch,
		"experiment", s.ExpName.Full, "objects", s.registry.Len())
	return nil
}

func (s *Session) loadDaq(ctx context.Context, cache *Cache, loader *safeLoader) {
	loader.run("daq", func() error {
		settings := daq.ResolveSettings(s.cfg, s.opts.Sim, s.logger)
		d, err := daq.New(s.cfg, settings, s.logger)
		if err != nil {
			return err
		}
		if d == nil {
			return nil
		}
		s.daq = d
		cache.Add(d)
		cache.Doc("daq", "DAQ interface object.")
		return nil
	})
}

func (s *Session) loadDeviceDB(ctx context.Context, cache *Cache, loader *safeLoader) {
	if s.cfg.DB == "" {
		s.logger.Info("Missing db key in conf, skipping device database")
		return
	}
	loader.run("device database", func() error {
		client, err := devicedb.Open(s.cfg.DB)
		if err != nil {
			return err
		}

		factories := devicedb.NewFactoryRegistry()
		if err := deviceregistry.Register(factories); err != nil {
			return err
		}

		devices := devicedb.NewLoader(factories, s.logger).Load(ctx, client, devicedb.LoadOptions{
			Hutch:          s.Hutch,
			LoadLevel:      s.cfg.LoadLevel,
			ExcludeDevices: s.cfg.ExcludeDevices,
		})
		for _, dev := range devices {
			cache.Add(dev)
		}
		s.metrics.Metrics.DevicesSkipped.WithLabelValues("excluded").
			Add(float64(len(s.cfg.ExcludeDevices)))
		return nil
	})
}

func (s *Session) loadCameras(cache *Cache, loader *safeLoader) {
	if s.Hutch == "" {
		return
	}
	path := s.opts.CamviewerCfg
	if path == "" {
		path = fmt.Sprintf(camviewerCfgTemplate, s.Hutch)
	}
	loader.run("camviewer config", func() error {
		cams, err := camload.NewLoader(s.logger).ReadConfig(path)
		if err != nil {
			return err
		}
		members := make([]device.Object, 0, len(cams))
		for _, cam := range cams {
			cache.Add(cam)
			members = append(members, cam)
		}
		group := device.NewGroup("camviewer", "Namespace of configured camviewer cameras.", members)
		cache.Add(group)
		return nil
	})
}

func (s *Session) loadArchive(cache *Cache, loader *safeLoader) {
	if s.opts.ArchiveURL == "" {
		return
	}
	loader.run("archapp", func() error {
		// Appliance retries are chatty at info level.
		logger := logsetup.Hush(s.logger, slog.LevelWarn)
		s.archive = archive.NewClient(s.opts.ArchiveURL, logger,
			archive.WithRequestCounter(s.metrics.Metrics.ArchiveRequests))
		return nil
	})
}

func (s *Session) selectExperiment(ctx context.Context, loader *safeLoader) {
	name := s.opts.Experiment
	if name == "" {
		name = s.cfg.Experiment
	}

	if name == "" && s.Hutch != "" {
		loader.run("experiment selection", func() error {
			current, err := experiment.NewResolver(s.logger).Current(ctx, s.Hutch)
			if err != nil {
				return err
			}
			name = current
			return nil
		})
	}

	if name != "" {
		s.ExpName = experiment.Split(s.Hutch, name)
	}
}

func (s *Session) loadScripts(cache *Cache, loader *safeLoader) error {
	if len(s.cfg.Load) == 0 && s.ExpName.Raw == "" && s.opts.Script == "" {
		return nil
	}

	host := userload.NewHost(cache.Builder(), s.logger)
	defer host.Close()

	runs := s.metrics.Metrics.ScriptRunsTotal

	if len(s.cfg.Load) > 0 {
		loader.run("user modules", func() error {
			loaded, failed := userload.LoadModules(host, s.cfg.HutchDir, s.cfg.Load, s.logger)
			runs.WithLabelValues("success").Add(float64(loaded))
			runs.WithLabelValues("failure").Add(float64(failed))
			return nil
		})
	}

	if s.ExpName.Raw != "" {
		loader.run("experiment file", func() error {
			dir := filepath.Join(s.cfg.HutchDir, "experiments")
			ran, err := userload.LoadExperiment(host, dir, s.ExpName.Raw, s.logger)
			if ran {
				if err != nil {
					runs.WithLabelValues("failure").Inc()
				} else {
					runs.WithLabelValues("success").Inc()
				}
			}
			return err
		})
	}

	// Unlike the soft-fail load steps, an explicitly requested startup
	// script failing should be visible to the caller.
	if s.opts.Script != "" {
		if err := host.RunFile(s.opts.Script); err != nil {
			runs.WithLabelValues("failure").Inc()
			return errors.Wrap(err, "Session", "Load", "run startup script")
		}
		runs.WithLabelValues("success").Inc()
	}
	return nil
}

// loadGroups builds the default class groups: motors, detectors and
// the all_objects alias pair.
func (s *Session) loadGroups(cache *Cache, loader *safeLoader) {
	loader.run("default groups", func() error {
		objs := cache.Builder().Objects()

		group := func(name, doc string, classes ...string) {
			want := make(map[string]struct{}, len(classes))
			for _, c := range classes {
				want[c] = struct{}{}
			}
			var members []device.Object
			for _, obj := range objs {
				if _, ok := want[obj.ClassName()]; ok {
					members = append(members, obj)
				}
			}
			g := device.NewGroup(name, doc, members)
			cache.Add(g)
		}

		group("motors", "All motion axes.", "Motor", "FastMotor", "SlowMotor")
		group("detectors", "All detectors.", "AreaDetector", "GasDetector", "Imager")
		group("slits", "All slits.", "Slits")

		all := device.NewGroup("all_objects", "Every session object.", objs)
		cache.Add(all)
		cache.AddNamed("a", all)
		return nil
	})
}

// applyOverrides runs the object configuration pipeline over the sealed
// registry. A malformed override file aborts the load before any device
// is mutated.
func (s *Session) applyOverrides() error {
	if s.cfg.ObjConfig == "" {
		return nil
	}
	directives, err := objconf.Load(s.cfg.ObjConfig)
	if err != nil {
		return errors.Wrap(err, "Session", "Load", "load object configuration")
	}

	applier := objconf.NewApplier(s.logger)
	applier.ApplyAll(s.registry, directives)
	s.metrics.Metrics.DirectivesApplied.Add(float64(len(directives)))
	s.metrics.Metrics.DirectiveWarnings.Add(float64(applier.Warnings()))
	s.logger.Info("Applied object configuration overrides",
		"directives", len(directives), "warnings", applier.Warnings())
	return nil
}

func (s *Session) writeSummary(loader *safeLoader) {
	if s.cfg.HutchDir == "" {
		return
	}
	name := s.Hutch
	if name == "" {
		name = "hutch"
	}
	path := filepath.Join(s.cfg.HutchDir, name+".db.txt")
	loader.run("db.txt", func() error {
		if err := WriteSummary(path, s.registry); err != nil {
			// A read-only hutch dir is common on shared filesystems.
			s.logger.Warn("Could not write session summary", "path", path, "error", err)
		}
		return nil
	})
}

// Run serves the session until the context ends, a fatal server error
// occurs or the idle timer expires.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	if s.opts.MetricsPort > 0 {
		server := metric.NewServer(s.opts.MetricsPort, s.metrics)
		g.Go(server.Start)
		g.Go(func() error {
			<-ctx.Done()
			return server.Stop()
		})
	}

	if s.opts.HealthPort > 0 {
		server := health.NewServer(s.opts.HealthPort, s.sessionName(), s.monitor)
		g.Go(server.Start)
		g.Go(func() error {
			<-ctx.Done()
			return server.Stop()
		})
	}

	g.Go(func() error {
		s.timer.Watch(ctx, cancel)
		return nil
	})

	err := g.Wait()
	if s.daq != nil {
		if derr := s.daq.Disconnect(); derr != nil {
			s.logger.Warn("DAQ disconnect failed", "error", derr)
		}
	}
	return err
}

func (s *Session) sessionName() string {
	if s.Hutch == "" {
		return "hutch-session"
	}
	return s.Hutch + "-session"
}
