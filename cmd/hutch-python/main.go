// Package main implements the hutch session launcher: it reads a hutch
// configuration, assembles the session object registry with overrides
// applied, and serves the session until shutdown.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/tangkong/hutch-python/config"
	"github.com/tangkong/hutch-python/logsetup"
	"github.com/tangkong/hutch-python/objconf"
	"github.com/tangkong/hutch-python/session"
)

const (
	Version = "0.1.0"
	appName = "hutch-python"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Launcher failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cli := parseFlags()

	if cli.ShowHelp {
		printDetailedHelp()
		return nil
	}
	if cli.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		return nil
	}
	if err := validateFlags(cli); err != nil {
		return err
	}

	logger, closeLog, err := logsetup.Setup(logsetup.Options{
		Level:    cli.LogLevel,
		Format:   cli.LogFormat,
		FilePath: cli.LogFile,
		Debug:    cli.Debug,
	})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	cfg, err := loadConfig(cli, logger)
	if err != nil {
		return err
	}
	if cli.Validate {
		if cfg.ObjConfig != "" {
			if _, err := objconf.Load(cfg.ObjConfig); err != nil {
				return err
			}
		}
		logger.Info("Configuration is valid", "hutch", cfg.Hutch)
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sess := session.New(session.Options{
		Config:      cfg,
		Sim:         cli.Sim,
		Experiment:  cli.Experiment,
		Script:      cli.Script,
		ArchiveURL:  cli.ArchiveURL,
		MetricsPort: cli.MetricsPort,
		HealthPort:  cli.HealthPort,
	}, logger)

	if err := sess.Load(ctx); err != nil {
		return err
	}

	// A positional script runs the session non-interactively: load,
	// execute, exit.
	if cli.Script != "" {
		logger.Info("Startup script finished, exiting", "script", cli.Script)
		return nil
	}

	logger.Info("Session ready", "session_id", sess.ID, "hutch", sess.Hutch)
	return sess.Run(ctx)
}

func loadConfig(cli *CLIConfig, logger *slog.Logger) (*config.Config, error) {
	if cli.CfgPath == "" {
		logger.Info("Launching with empty configuration")
		return config.Empty(), nil
	}
	return config.Load(cli.CfgPath, logger)
}
