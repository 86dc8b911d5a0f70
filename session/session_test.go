package session

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangkong/hutch-python/config"
	"github.com/tangkong/hutch-python/device"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fixture builds a hutch directory with a conf.yml worth of content:
// device database, camviewer config, override config, user module and
// experiment file.
func fixture(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "db.json"), `[
		{"name": "mr1k1", "device_class": "Motor", "prefix": "MR1K1:BEND", "beamline": "TMO", "active": true},
		{"name": "im1l0", "device_class": "Imager", "prefix": "IM1L0:XTES", "beamline": "TMO", "active": true},
		{"name": "at2l0", "device_class": "Attenuator", "prefix": "AT2L0:XTES", "beamline": "TMO", "active": true},
		{"name": "skipme", "device_class": "Motor", "prefix": "SKIP:ME", "beamline": "TMO", "active": true}
	]`)

	writeFile(t, filepath.Join(dir, "camviewer.cfg"),
		"GE, TMO:IM9:CVV:01;TMO:IM9:CVV, evr0, IM9 Spare\n")

	writeFile(t, filepath.Join(dir, "obj_config.yml"), `
mr1k1:
  replace_tablist:
    - position
Imager:
  kind:
    target: hinted
FastMotor:
  tab_whitelist:
    - acceleration
fast_motor2:
  kind:
    velocity: hinted
at2l0:
  tab_whitelist:
    - dne
`)

	writeFile(t, filepath.Join(dir, "beamline.lua"),
		`session.register("pulse_picker", "Motor", {"position", "velocity"})`)

	writeFile(t, filepath.Join(dir, "experiments", "lv4418.lua"),
		`session.register("user_tool", "Motor", {"position"})`)

	return &config.Config{
		Hutch:          "tmo",
		DB:             filepath.Join(dir, "db.json"),
		ObjConfig:      filepath.Join(dir, "obj_config.yml"),
		Load:           []string{"beamline"},
		Experiment:     "tmolv4418",
		DaqType:        config.DaqTypeLCLS1,
		ExcludeDevices: []string{"skipme"},
		LoadLevel:      config.LoadLevelStandard,
		SessionTimer:   config.DefaultSessionTimer,
		HutchDir:       dir,
	}
}

func TestSessionLoad(t *testing.T) {
	cfg := fixture(t)
	s := New(Options{
		Config:       cfg,
		Sim:          true,
		CamviewerCfg: filepath.Join(cfg.HutchDir, "camviewer.cfg"),
	}, discardLogger())

	require.NoError(t, s.Load(context.Background()))
	reg := s.Registry()
	require.NotNil(t, reg)

	t.Run("database devices cached, exclusions honored", func(t *testing.T) {
		_, ok := reg.Device("mr1k1")
		assert.True(t, ok)
		_, ok = reg.Get("skipme")
		assert.False(t, ok)
	})

	t.Run("cameras and sim hardware present", func(t *testing.T) {
		_, ok := reg.Device("im9_spare")
		assert.True(t, ok)
		_, ok = reg.Get("camviewer")
		assert.True(t, ok)
		_, ok = reg.Device("fast_motor1")
		assert.True(t, ok)
		_, ok = reg.Get("sim")
		assert.True(t, ok)
	})

	t.Run("sim daq selected", func(t *testing.T) {
		require.NotNil(t, s.Daq())
		assert.Equal(t, "SimDaq", s.Daq().ClassName())
		_, ok := reg.Get("daq")
		assert.True(t, ok)
	})

	t.Run("experiment name split", func(t *testing.T) {
		assert.Equal(t, "tmolv4418", s.ExpName.Full)
		assert.Equal(t, "lv4418", s.ExpName.Raw)
	})

	t.Run("scripts ran", func(t *testing.T) {
		_, ok := reg.Device("pulse_picker")
		assert.True(t, ok)
		_, ok = reg.Device("user_tool")
		assert.True(t, ok)
	})

	t.Run("default groups", func(t *testing.T) {
		motors, ok := reg.Get("motors")
		require.True(t, ok)
		assert.Greater(t, motors.(*device.Group).Len(), 0)

		all, ok := reg.Get("all_objects")
		require.True(t, ok)
		alias, ok := reg.Get("a")
		require.True(t, ok)
		assert.Equal(t, all.(*device.Group).Len(), alias.(*device.Group).Len())
	})

	t.Run("sim motors reachable by groups and directives", func(t *testing.T) {
		fm1, ok := reg.Device("fast_motor1")
		require.True(t, ok)
		assert.Contains(t, fm1.Tab().Names(), "acceleration")

		fm2, ok := reg.Device("fast_motor2")
		require.True(t, ok)
		assert.Equal(t, device.KindHinted, fm2.AttrKind("velocity"))

		motors, ok := reg.Get("motors")
		require.True(t, ok)
		names := make([]string, 0, motors.(*device.Group).Len())
		for _, m := range motors.(*device.Group).Members() {
			names = append(names, m.Name())
		}
		assert.Contains(t, names, "fast_motor1")
		assert.Contains(t, names, "slow_motor3")
	})

	t.Run("overrides applied", func(t *testing.T) {
		mr1k1, _ := reg.Device("mr1k1")
		assert.Equal(t, []string{"position"}, mr1k1.Tab().Names())

		im1l0, _ := reg.Device("im1l0")
		assert.Equal(t, device.KindHinted, im1l0.AttrKind("target"))
	})

	t.Run("load metrics recorded", func(t *testing.T) {
		m := s.Metrics().Metrics
		assert.Equal(t, 2.0, testutil.ToFloat64(m.ScriptRunsTotal.WithLabelValues("success")))
		assert.Equal(t, 0.0, testutil.ToFloat64(m.ScriptRunsTotal.WithLabelValues("failure")))
		// The at2l0 block names an attribute the attenuator lacks.
		assert.Equal(t, 1.0, testutil.ToFloat64(m.DirectiveWarnings))
	})

	t.Run("summary written", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(cfg.HutchDir, "tmo.db.txt"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "mr1k1")
		assert.Contains(t, string(data), "Motor")
	})
}

func TestSessionLoadMalformedOverridesAborts(t *testing.T) {
	cfg := fixture(t)
	writeFile(t, cfg.ObjConfig, "mr1k1:\n  tab_whitelist: 5\n")

	s := New(Options{Config: cfg, Sim: true,
		CamviewerCfg: filepath.Join(cfg.HutchDir, "camviewer.cfg")}, discardLogger())
	assert.Error(t, s.Load(context.Background()))
}

func TestSessionLoadStartupScript(t *testing.T) {
	script := filepath.Join(t.TempDir(), "startup.lua")
	writeFile(t, script, `session.register("extra_motor", "Motor", {"position"})`)

	s := New(Options{Config: config.Empty(), Sim: true, Script: script},
		discardLogger())
	require.NoError(t, s.Load(context.Background()))

	_, ok := s.Registry().Device("extra_motor")
	assert.True(t, ok)
}

func TestSessionLoadStartupScriptFailureAborts(t *testing.T) {
	script := filepath.Join(t.TempDir(), "broken.lua")
	writeFile(t, script, `error("no beam today")`)

	s := New(Options{Config: config.Empty(), Sim: true, Script: script},
		discardLogger())
	assert.Error(t, s.Load(context.Background()))
}

func TestSessionLoadEmptyConfig(t *testing.T) {
	s := New(Options{Config: config.Empty(), Sim: true}, discardLogger())
	require.NoError(t, s.Load(context.Background()))

	// sim hardware and default groups still exist
	reg := s.Registry()
	_, ok := reg.Device("fast_motor1")
	assert.True(t, ok)
	_, ok = reg.Get("all_objects")
	assert.True(t, ok)
}

func TestSessionRunStopsOnContextCancel(t *testing.T) {
	s := New(Options{Config: config.Empty(), Sim: true}, discardLogger())
	require.NoError(t, s.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop after cancel")
	}
}

func TestIdleTimerExpires(t *testing.T) {
	timer := NewIdleTimer(20*time.Millisecond, discardLogger(), nil)
	timer.poll = 5 * time.Millisecond

	expired := make(chan struct{})
	go timer.Watch(context.Background(), func() { close(expired) })

	select {
	case <-expired:
	case <-time.After(5 * time.Second):
		t.Fatal("idle timer did not expire")
	}
}

func TestIdleTimerTouchResets(t *testing.T) {
	timer := NewIdleTimer(time.Hour, discardLogger(), nil)
	time.Sleep(2 * time.Millisecond)
	before := timer.Idle()
	timer.Touch()
	assert.Less(t, timer.Idle(), before)
}

func TestWriteSummary(t *testing.T) {
	builder := device.NewBuilder()
	require.NoError(t, builder.Add(device.NewBase("mr1k1", "Motor", []string{"position"},
		device.WithDoc("bending mirror"))))
	reg := builder.Build()

	path := filepath.Join(t.TempDir(), "tmo.db.txt")
	require.NoError(t, WriteSummary(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mr1k1")
	assert.Contains(t, string(data), "bending mirror")
}

func TestBanner(t *testing.T) {
	assert.Contains(t, Banner("tmo"), "TMO Python")
	assert.Contains(t, Banner(""), "HUTCH Python")
}
