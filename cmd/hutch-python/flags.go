package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	CfgPath     string
	Experiment  string
	Debug       bool
	Sim         bool
	LogLevel    string
	LogFormat   string
	LogFile     string
	ArchiveURL  string
	MetricsPort int
	HealthPort  int
	Validate    bool
	ShowVersion bool
	ShowHelp    bool
	Script      string
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.CfgPath, "cfg",
		getEnv("HUTCH_PYTHON_CFG", ""),
		"Path to conf.yml; omit for an empty session (env: HUTCH_PYTHON_CFG)")

	flag.StringVar(&cfg.Experiment, "exp", "",
		"Experiment override, e.g. xpplp1216 or lp1216")

	flag.BoolVar(&cfg.Debug, "debug",
		getEnvBool("HUTCH_PYTHON_DEBUG", false),
		"Enable debug logging (env: HUTCH_PYTHON_DEBUG)")

	flag.BoolVar(&cfg.Sim, "sim", false,
		"Use simulated DAQ")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("HUTCH_PYTHON_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: HUTCH_PYTHON_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("HUTCH_PYTHON_LOG_FORMAT", "text"),
		"Log format: text, json (env: HUTCH_PYTHON_LOG_FORMAT)")

	flag.StringVar(&cfg.LogFile, "log-file",
		getEnv("HUTCH_PYTHON_LOG_FILE", ""),
		"Session log file path, empty disables (env: HUTCH_PYTHON_LOG_FILE)")

	flag.StringVar(&cfg.ArchiveURL, "archive-url",
		getEnv("HUTCH_PYTHON_ARCHIVE_URL", ""),
		"Archiver appliance base URL, empty disables (env: HUTCH_PYTHON_ARCHIVE_URL)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("HUTCH_PYTHON_METRICS_PORT", 0),
		"Metrics HTTP port, 0 to disable (env: HUTCH_PYTHON_METRICS_PORT)")

	flag.IntVar(&cfg.HealthPort, "health-port",
		getEnvInt("HUTCH_PYTHON_HEALTH_PORT", 0),
		"Health HTTP port, 0 to disable (env: HUTCH_PYTHON_HEALTH_PORT)")

	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")

	flag.Usage = printDetailedHelp
	flag.Parse()

	// optional positional startup script
	cfg.Script = flag.Arg(0)

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.CfgPath != "" {
		if _, err := os.Stat(cfg.CfgPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.CfgPath)
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"text", "json"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}
	if cfg.HealthPort < 0 || cfg.HealthPort > 65535 {
		return fmt.Errorf("invalid health port: %d", cfg.HealthPort)
	}
	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Interactive hutch session launcher

Usage: %s [options] [script]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Start the hutch session
  %s --cfg=/reg/g/pcds/pyps/apps/hutch-python/tmo/conf.yml

  # Force an experiment and simulated DAQ
  %s --cfg=conf.yml --exp=lv4418 --sim

  # Validate the configuration only
  %s --cfg=conf.yml --validate
`, os.Args[0], os.Args[0], os.Args[0])
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
