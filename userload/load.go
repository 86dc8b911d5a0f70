package userload

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tangkong/hutch-python/errors"
)

// LoadModules runs each configured setup script and reports how many
// loaded and how many failed. A failing script is logged and skipped;
// its objects are simply absent from the session.
func LoadModules(host *Host, baseDir string, modules []string, logger *slog.Logger) (loaded, failed int) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, module := range modules {
		path := modulePath(baseDir, module)
		if err := host.RunFile(path); err != nil {
			failed++
			logger.Error("Objects from module will NOT be available because it failed to load",
				"module", module, "error", err)
			continue
		}
		loaded++
		logger.Info("Loaded module", "module", module)
	}
	return loaded, failed
}

// LoadExperiment runs the experiment setup script for the raw
// experiment name (hutch prefix stripped) and reports whether a script
// actually ran. A missing script is routine, not an error: new
// experiments start without one.
func LoadExperiment(host *Host, experimentsDir, rawName string, logger *slog.Logger) (bool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	path := filepath.Join(experimentsDir, rawName+".lua")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			logger.Info("Skip missing experiment file", "experiment", rawName)
			return false, nil
		}
		return false, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrScriptNotFound, err),
			"userload", "LoadExperiment", "stat experiment file")
	}

	if err := host.RunFile(path); err != nil {
		return true, err
	}
	logger.Info("Loaded experiment file", "experiment", rawName)
	return true, nil
}

// modulePath resolves a configured module name to a script path. Plain
// names resolve relative to the hutch directory; explicit paths are
// kept as given.
func modulePath(baseDir, module string) string {
	if !strings.HasSuffix(module, ".lua") {
		module += ".lua"
	}
	if filepath.IsAbs(module) {
		return module
	}
	return filepath.Join(baseDir, module)
}
