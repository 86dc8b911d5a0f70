// Package logsetup builds the session loggers: a console handler, a
// shared session log file and a device-aware filter for noisy object
// records.
package logsetup

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/tangkong/hutch-python/errors"
)

// Options selects how session logging behaves
type Options struct {
	// Level is the console cut-off: debug, info, warn or error
	Level string
	// Format selects the console encoding: text or json
	Format string
	// FilePath, when set, also appends every record to the session log
	FilePath string
	// Debug forces level debug and source annotation
	Debug bool
}

// ParseLevel maps a level name to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds the session logger. The returned closer flushes and
// closes the session log file, if one was opened.
func Setup(opts Options) (*slog.Logger, func() error, error) {
	level := ParseLevel(opts.Level)
	if opts.Debug {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: opts.Debug,
	}

	var console slog.Handler
	switch strings.ToLower(opts.Format) {
	case "json":
		console = slog.NewJSONHandler(os.Stdout, handlerOpts)
	default:
		console = slog.NewTextHandler(os.Stdout, handlerOpts)
	}

	closer := func() error { return nil }
	handler := console

	if opts.FilePath != "" {
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, errors.WrapFatal(err, "logsetup", "Setup", "open session log file")
		}
		// File always captures debug regardless of console level.
		fileHandler := slog.NewJSONHandler(&syncWriter{w: f}, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		handler = newTeeHandler(console, fileHandler)
		closer = f.Close
	}

	logger := slog.New(handler).With("pid", os.Getpid())
	return logger, closer, nil
}

// syncWriter serializes appends to the session log. Device callbacks
// can log from several goroutines at once.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// teeHandler fans records out to multiple handlers
type teeHandler struct {
	handlers []slog.Handler
}

func newTeeHandler(handlers ...slog.Handler) *teeHandler {
	return &teeHandler{handlers: handlers}
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		out[i] = h.WithAttrs(attrs)
	}
	return &teeHandler{handlers: out}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		out[i] = h.WithGroup(name)
	}
	return &teeHandler{handlers: out}
}

// Hush returns a derived logger that drops records below min. Chatty
// subsystems get hushed so their retry noise stays out of the console
// while the file sink keeps its own level.
func Hush(logger *slog.Logger, min slog.Level) *slog.Logger {
	return slog.New(&levelGate{next: logger.Handler(), min: min})
}

type levelGate struct {
	next slog.Handler
	min  slog.Level
}

func (g *levelGate) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= g.min && g.next.Enabled(ctx, level)
}

func (g *levelGate) Handle(ctx context.Context, record slog.Record) error {
	return g.next.Handle(ctx, record)
}

func (g *levelGate) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelGate{next: g.next.WithAttrs(attrs), min: g.min}
}

func (g *levelGate) WithGroup(name string) slog.Handler {
	return &levelGate{next: g.next.WithGroup(name), min: g.min}
}
