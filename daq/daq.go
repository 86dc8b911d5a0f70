// Package daq wires the session to a data acquisition system. The
// configuration picks one of the LCLS1 flavors, the LCLS2 control
// plane or no DAQ at all.
package daq

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/tangkong/hutch-python/config"
	"github.com/tangkong/hutch-python/errors"
)

// Daq is the acquisition control surface exposed to the session
type Daq interface {
	// Name is the registry handle, always "daq"
	Name() string
	// ClassName reports the DAQ flavor for directive matching
	ClassName() string

	// Connect establishes the control connection
	Connect(ctx context.Context) error
	// Disconnect tears it down
	Disconnect() error
	// Begin starts acquiring the given number of events (0 means run
	// until End)
	Begin(ctx context.Context, events int) error
	// End stops the current acquisition
	End(ctx context.Context) error

	// State reports the control state, e.g. "disconnected", "configured",
	// "running"
	State() string
}

// Settings is the resolved DAQ configuration for this host
type Settings struct {
	Type     string
	Host     string
	Platform int
	// DefaultPlatform is true when the platform came from the
	// "default" entry rather than a hostname match
	DefaultPlatform bool
	// Sim forces the simulated implementation
	Sim bool
}

// hostnameFn is swapped in tests
var hostnameFn = os.Hostname

// ResolveSettings interprets the DAQ keys of the configuration for the
// current host.
func ResolveSettings(cfg *config.Config, sim bool, logger *slog.Logger) Settings {
	if logger == nil {
		logger = slog.Default()
	}

	s := Settings{Type: cfg.DaqType, Host: cfg.DaqHost, Sim: sim, DefaultPlatform: true}

	if len(cfg.DaqPlatforms) > 0 {
		hostname, err := hostnameFn()
		if err != nil {
			hostname = ""
		}
		if platform, ok := cfg.DaqPlatforms[hostname]; ok {
			s.Platform = platform
			s.DefaultPlatform = false
			logger.Info("Selected daq platform for host",
				"host", hostname, "platform", platform)
		} else if platform, ok := cfg.DaqPlatforms["default"]; ok {
			s.Platform = platform
			logger.Info("Selected default daq platform", "platform", platform)
		}
	} else {
		logger.Info("Selected default daq platform", "platform", 0)
	}
	return s
}

// New creates the DAQ object for the resolved settings. A nil Daq with
// a nil error means the session runs without one.
func New(cfg *config.Config, settings Settings, logger *slog.Logger) (Daq, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DaqInvalid {
		logger.Error("Selected invalid daq type, skipping daq")
		return nil, nil
	}

	switch settings.Type {
	case config.DaqTypeLCLS1, config.DaqTypeLCLS1Sim:
		if settings.Type == config.DaqTypeLCLS1Sim || settings.Sim {
			return newSim(settings.Platform), nil
		}
		return newLCLS1(settings, logger), nil
	case config.DaqTypeLCLS2:
		if settings.Sim {
			logger.Warn("Sim mode not implemented for lcls2 DAQ, instantiating live DAQ")
		}
		if settings.Host == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: daq_host is required for the lcls2 daq", errors.ErrMissingConfig),
				"daq", "New", "lcls2 configuration check")
		}
		return newLCLS2(settings, logger), nil
	case config.DaqTypeNone:
		logger.Info("Skip daq because daq_type is nodaq")
		return nil, nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: daq_type %q", errors.ErrInvalidConfig, settings.Type),
			"daq", "New", "daq type check")
	}
}
