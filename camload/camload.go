// Package camload turns camviewer configuration files into camera
// devices. The format is line-oriented: comma-separated fields
// (type, pv info, evr, name, ...), hash comments, blank lines and
// "include <path>" lines pulling in another file.
package camload

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tangkong/hutch-python/device"
	"github.com/tangkong/hutch-python/errors"
)

// CamInfo is one interpreted camera line
type CamInfo struct {
	// Type is the camera type field, e.g. "GE" for area detectors
	Type string
	// Prefix is the detector PV prefix derived from the pv info field
	Prefix string
	// EVR is the event receiver field, unused but preserved
	EVR string
	// Name is the normalized object name (spaces to underscores, lower)
	Name string
}

// Loader parses camviewer config files and builds camera devices
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a camviewer config loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// ReadConfig reads a camviewer config file and returns camera devices,
// one per usable line. Unsupported and malformed lines are logged and
// skipped so one bad camera never blocks the viewer list.
func (l *Loader) ReadConfig(path string) ([]device.Device, error) {
	infos, err := l.Interpret(path)
	if err != nil {
		return nil, err
	}

	var devices []device.Device
	for _, info := range infos {
		dev, err := buildCam(info)
		if err != nil {
			l.logger.Error("Skipping camera from config",
				"name", info.Name, "error", err)
			continue
		}
		l.logger.Info("Loaded camera", "name", dev.Name())
		devices = append(devices, dev)
	}
	return devices, nil
}

// Interpret reads a config file and resolves its lines, following
// includes. Cameras already seen by PV prefix are dropped so included
// files cannot introduce duplicates.
func (l *Loader) Interpret(path string) ([]CamInfo, error) {
	seen := make(map[string]struct{})
	visited := make(map[string]struct{})
	return l.interpretFile(path, seen, visited)
}

func (l *Loader) interpretFile(path string, seen, visited map[string]struct{}) ([]CamInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if _, ok := visited[abs]; ok {
		l.logger.Error("Include cycle in camviewer cfg, skipping", "path", path)
		return nil, nil
	}
	visited[abs] = struct{}{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "camload", "Interpret", "read camviewer cfg")
	}

	return l.interpretLines(strings.Split(string(data), "\n"), filepath.Dir(path), seen, visited), nil
}

func (l *Loader) interpretLines(lines []string, dir string, seen, visited map[string]struct{}) []CamInfo {
	var infos []CamInfo
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		if strings.HasPrefix(parts[0], "include") {
			fields := strings.Fields(parts[0])
			if len(fields) < 2 {
				l.logger.Error("Malformed include line in camviewer cfg, skipping", "line", line)
				continue
			}
			target := fields[1]
			if !filepath.IsAbs(target) {
				target = filepath.Join(dir, target)
			}
			included, err := l.interpretFile(target, seen, visited)
			if err != nil {
				l.logger.Error("Failed to read camviewer include, skipping",
					"path", target, "error", err)
				continue
			}
			infos = append(infos, included...)
			continue
		}

		if len(parts) < 2 {
			continue
		}

		prefix := detPrefix(parts[1])
		if _, dup := seen[prefix]; dup {
			continue
		}
		seen[prefix] = struct{}{}

		info := CamInfo{Type: parts[0], Prefix: prefix}
		if len(parts) > 2 {
			info.EVR = parts[2]
		}
		if len(parts) > 3 {
			info.Name = normalizeName(parts[3])
		}
		infos = append(infos, info)
	}
	return infos
}

// buildCam creates a camera device from one interpreted line. Only the
// GE camera types map to area detectors; other types are viewer-only.
func buildCam(info CamInfo) (device.Device, error) {
	if !strings.HasPrefix(info.Type, "GE") {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: unsupported camera type %q", errors.ErrInvalidConfig, info.Type),
			"camload", "buildCam", "camera type check")
	}
	if info.Prefix == "" || info.Name == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: camera line missing pv info or name", errors.ErrInvalidConfig),
			"camload", "buildCam", "camera line check")
	}
	return device.NewBase(info.Name, "AreaDetector",
		[]string{"image", "exposure", "gain", "acquire", "num_images"},
		device.WithTabDefaults("image", "acquire"),
		device.WithDoc(fmt.Sprintf("AreaDetector %s", info.Prefix)),
	), nil
}

// detPrefix derives the detector PV prefix from the pv info field. The
// field is "image_base;detector_base"; when the detector base is absent
// it is guessed by chopping the last segment of the image base.
func detPrefix(pvInfo string) string {
	parts := strings.SplitN(pvInfo, ";", 2)
	if len(parts) == 2 && parts[1] != "" {
		return parts[1] + ":"
	}
	segs := strings.Split(parts[0], ":")
	return strings.Join(segs[:len(segs)-1], ":") + ":"
}

func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}
