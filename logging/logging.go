// Package logging sets up log/slog for the command line tools. Library
// packages never log through globals: they take a *slog.Logger, usually one
// made by ForService.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/Xenakios/AudioPluginHost-II-sub001"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

type Config struct {
	Level      string `mapstructure:"level"`  // trace, debug, info, warn or error
	Format     string `mapstructure:"format"` // text or json
	File       string `mapstructure:"file"`   // rotate logs into this file instead of stderr
	MaxSizeMB  int    `mapstructure:"maxsize"`
	MaxBackups int    `mapstructure:"maxbackups"`
}

var (
	mu     sync.Mutex
	base   *slog.Logger
	closer io.Closer
)

// Init configures the process-wide logger and makes it the slog default.
// Calling it again replaces the previous configuration.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	var w io.Writer = os.Stderr
	var c io.Closer
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    max(cfg.MaxSizeMB, 1),
			MaxBackups: cfg.MaxBackups,
		}
		w, c = lj, lj
	}
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevel}
	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return plughost.ConfigErrorf("unknown log format %q", cfg.Format)
	}
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		closer.Close()
	}
	base, closer = slog.New(h), c
	slog.SetDefault(base)
	return nil
}

// Close flushes and closes the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	return err
}

func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, plughost.ConfigErrorf("unknown log level %q", s)
}

// ForService returns a logger with the service attribute set. Before Init it
// is based on slog.Default().
func ForService(serviceName string) *slog.Logger {
	mu.Lock()
	l := base
	mu.Unlock()
	if l == nil {
		l = slog.Default()
	}
	return l.With("service", serviceName)
}

// Trace logs a trace message using the custom Trace level.
func Trace(l *slog.Logger, msg string, args ...any) {
	l.Log(context.Background(), LevelTrace, msg, args...)
}

// Fatal logs at the custom Fatal level and exits.
func Fatal(l *slog.Logger, msg string, args ...any) {
	l.Log(context.Background(), LevelFatal, msg, args...)
	Close()
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
