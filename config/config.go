// Package config reads and interprets the conf.yml file that drives a
// hutch session. Each key degrades independently: a wrong-typed value is
// logged and treated as absent so one bad entry never takes down the
// whole launch. Only a document that is not a mapping at all is fatal.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tangkong/hutch-python/errors"
)

// ValidKeys are the recognized top-level conf.yml keys. Unknown keys are
// reported with a warning but never abort the launch.
var ValidKeys = []string{
	"daq_host",
	"daq_platform",
	"daq_type",
	"db",
	"exclude_devices",
	"experiment",
	"hutch",
	"load",
	"load_level",
	"obj_config",
	"session_timer",
}

// DAQ type constants
const (
	DaqTypeLCLS1    = "lcls1"
	DaqTypeLCLS1Sim = "lcls1-sim"
	DaqTypeLCLS2    = "lcls2"
	DaqTypeNone     = "nodaq"
)

// DefaultSessionTimer is how long a session may stay idle before the
// launcher shuts it down (48 hours).
const DefaultSessionTimer = 172800 * time.Second

// LoadLevel controls how much of the device database is instantiated
type LoadLevel int

// Load level constants, most inclusive last
const (
	LoadLevelMinimal LoadLevel = iota
	LoadLevelStandard
	LoadLevelAll
)

// String returns the lowercase load level name
func (l LoadLevel) String() string {
	switch l {
	case LoadLevelMinimal:
		return "minimal"
	case LoadLevelStandard:
		return "standard"
	case LoadLevelAll:
		return "all"
	default:
		return "unknown"
	}
}

// ParseLoadLevel interprets a load_level setting, defaulting to standard
// for unrecognized values.
func ParseLoadLevel(s string) LoadLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MINIMAL":
		return LoadLevelMinimal
	case "ALL":
		return LoadLevelAll
	default:
		return LoadLevelStandard
	}
}

// Config is the interpreted conf.yml content plus launch-directory
// context. Zero values mean "key absent"; the session skips the
// corresponding load steps.
type Config struct {
	// Hutch is the lowercased hutch name, e.g. "mfx"
	Hutch string
	// DB is the resolved device database path
	DB string
	// LoadLevel filters device database instantiation
	LoadLevel LoadLevel
	// Load lists the user Lua modules from the `load` key
	Load []string
	// Experiment is the explicit experiment name override
	Experiment string
	// ObjConfig is the resolved obj_config file path
	ObjConfig string
	// DaqType selects the DAQ flavor (lcls1, lcls1-sim, lcls2, nodaq)
	DaqType string
	// DaqInvalid is set when daq_type held an unrecognized value; the
	// DAQ step is skipped entirely in that case.
	DaqInvalid bool
	// DaqHost is required when DaqType is lcls2
	DaqHost string
	// DaqPlatforms maps hostname to DAQ platform number; the "default"
	// key is the fallback.
	DaqPlatforms map[string]int
	// ExcludeDevices lists device names that must not be loaded
	ExcludeDevices []string
	// SessionTimer bounds session idle time
	SessionTimer time.Duration
	// HutchDir is the directory containing conf.yml; relative db and
	// obj_config paths resolve against it.
	HutchDir string
}

// Empty returns the configuration used when no conf.yml is given: a very
// empty environment with defaults only.
func Empty() *Config {
	return &Config{
		DaqType:      DaqTypeLCLS1,
		LoadLevel:    LoadLevelStandard,
		SessionTimer: DefaultSessionTimer,
	}
}

// Load reads conf.yml from path and interprets it
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "config", "Load", "read conf.yml")
	}

	cfg, err := Parse(data, logger)
	if err != nil {
		return nil, err
	}

	cfg.HutchDir = filepath.Dir(path)
	cfg.DB = resolvePath(cfg.HutchDir, cfg.DB)
	cfg.ObjConfig = resolvePath(cfg.HutchDir, cfg.ObjConfig)
	return cfg, nil
}

// Parse interprets the raw conf.yml document
func Parse(data []byte, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %v", errors.ErrConfigFormat, err),
			"config", "Parse", "parse conf.yml")
	}
	if raw == nil {
		raw = map[string]any{}
	}

	warnUnknownKeys(raw, logger)

	cfg := Empty()

	if v, ok := raw["hutch"]; ok {
		if s, ok := v.(string); ok {
			cfg.Hutch = strings.ToLower(s)
		} else {
			logger.Error("Invalid hutch conf, must be string", "value", v)
		}
	} else {
		logger.Info("Missing hutch from conf. Will skip elog and cameras.")
	}

	if v, ok := raw["db"]; ok {
		if s, ok := v.(string); ok {
			cfg.DB = s
		} else {
			logger.Error("Invalid db conf, must be string", "value", v)
		}
	} else {
		logger.Info("Missing db from conf. Will skip loading from shared database.")
	}

	if v, ok := raw["load_level"]; ok {
		if s, ok := v.(string); ok {
			cfg.LoadLevel = ParseLoadLevel(s)
		} else {
			logger.Error("Invalid load_level conf, must be string", "value", v)
		}
	}

	if v, ok := raw["load"]; ok {
		load, err := toStringList(v)
		if err != nil {
			logger.Error("Invalid load conf, must be string or list", "value", v)
		} else {
			cfg.Load = load
		}
	} else {
		logger.Info("Missing load from conf. Will skip loading hutch files.")
	}

	if v, ok := raw["experiment"]; ok {
		if s, ok := v.(string); ok {
			cfg.Experiment = s
		} else {
			logger.Error("Invalid experiment selection, must be a string matching the elog experiment name",
				"value", v)
		}
	} else if cfg.Hutch == "" {
		logger.Info("Missing hutch and experiment from conf. " +
			"Will not load objects from questionnaire or experiment file.")
	}

	if v, ok := raw["obj_config"]; ok {
		if s, ok := v.(string); ok {
			cfg.ObjConfig = s
		} else {
			logger.Error("Invalid obj_config conf, must be string", "value", v)
		}
	} else {
		logger.Info("Missing obj_config from conf. Will skip applying user settings to devices.")
	}

	parseDaq(raw, cfg, logger)

	if v, ok := raw["exclude_devices"]; ok {
		names, err := toStringList(v)
		if err != nil || isScalarString(v) {
			logger.Error("Invalid exclude_devices conf, must be a list", "value", v)
		} else {
			for i, n := range names {
				names[i] = strings.TrimSpace(n)
			}
			cfg.ExcludeDevices = names
		}
	} else {
		logger.Info("Missing exclude_devices in conf. Will load all devices.")
	}

	if v, ok := raw["session_timer"]; ok {
		if secs, ok := toInt(v); ok && secs > 0 {
			cfg.SessionTimer = time.Duration(secs) * time.Second
		} else {
			logger.Error("Invalid session_timer conf, must be a positive integer of seconds", "value", v)
		}
	} else {
		logger.Info("Missing session_timer value from conf. Set default value to 172800 seconds (48 hours).")
	}

	return cfg, nil
}

func parseDaq(raw map[string]any, cfg *Config, logger *slog.Logger) {
	if v, ok := raw["daq_type"]; ok {
		s, isStr := v.(string)
		switch {
		case isStr && isValidDaqType(s):
			cfg.DaqType = s
			logger.Info("Selected valid daq type", "daq_type", s)
		default:
			logger.Error("Selected invalid daq type! Will skip daq!", "value", v)
			cfg.DaqInvalid = true
		}
	} else {
		logger.Info("Selected default daq type lcls1")
	}

	if v, ok := raw["daq_host"]; ok {
		if s, ok := v.(string); ok {
			cfg.DaqHost = s
		} else {
			logger.Error("Invalid daq_host conf, must be string", "value", v)
		}
	} else if cfg.DaqType == DaqTypeLCLS2 {
		logger.Error(`Missing required key "daq_host" in config! DAQ setup will fail!`)
	}

	if v, ok := raw["daq_platform"]; ok {
		platforms, err := toPlatformMap(v)
		if err != nil {
			logger.Error("Invalid daq_platform conf, must be a mapping of hostname to platform number",
				"value", v)
		} else {
			cfg.DaqPlatforms = platforms
		}
	}
}

func warnUnknownKeys(raw map[string]any, logger *slog.Logger) {
	known := make(map[string]struct{}, len(ValidKeys))
	for _, k := range ValidKeys {
		known[k] = struct{}{}
	}

	var extras []string
	for k := range raw {
		if _, ok := known[k]; !ok {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	for _, k := range extras {
		logger.Warn("Found key in configuration, but this is not a valid key",
			"key", k, "valid_keys", strings.Join(ValidKeys, ", "))
	}
}

func isValidDaqType(s string) bool {
	switch s {
	case DaqTypeLCLS1, DaqTypeLCLS1Sim, DaqTypeLCLS2, DaqTypeNone:
		return true
	}
	return false
}

func resolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func isScalarString(v any) bool {
	_, ok := v.(string)
	return ok
}

func toStringList(v any) ([]string, error) {
	switch val := v.(type) {
	case string:
		return []string{val}, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("non-string entry %v", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	}
	return 0, false
}

func toPlatformMap(v any) (map[string]int, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unsupported type %T", v)
	}
	out := make(map[string]int, len(m))
	for host, num := range m {
		n, ok := toInt(num)
		if !ok {
			return nil, fmt.Errorf("platform for %s is not an integer", host)
		}
		out[host] = n
	}
	return out, nil
}
