// Package logging builds the slog loggers used across inputkit.
//
// Every logger carries a component attribute and redacts attributes whose
// key names a secret or a speech transcript. File output rotates by size.
// Guard and CallbackFailed contain and report failing consumer callbacks.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Level is a slog level.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var levelNames = []struct {
	name  string
	level Level
}{
	{"debug", LevelDebug},
	{"info", LevelInfo},
	{"warn", LevelWarn},
	{"error", LevelError},
}

// ParseLevel parses debug, info, warn (or warning) and error.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(s)
	if s == "warning" {
		s = "warn"
	}
	for _, ln := range levelNames {
		if ln.name == s {
			return ln.level, nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level: %s", s)
}

// LevelString is the inverse of ParseLevel. Unknown levels print as info.
func LevelString(level Level) string {
	for _, ln := range levelNames {
		if ln.level == level {
			return ln.name
		}
	}
	return "info"
}

// Format selects the slog handler.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat parses "text" or "json". Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown log format: %s", s)
}

// Config describes a logger.
type Config struct {
	Level  Level
	Format Format

	// Output is "stdout", "stderr", "file", "both" (stderr and file) or
	// "discard".
	Output string

	// FilePath, MaxSize (megabytes) and MaxBackups apply to file output.
	FilePath   string
	MaxSize    int64
	MaxBackups int

	Component string

	// Writer overrides Output when set.
	Writer io.Writer
}

// DefaultConfig logs info and above as text to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     "stderr",
		FilePath:   filepath.Join(stateDir(), "inputkit.log"),
		MaxSize:    20,
		MaxBackups: 3,
		Component:  "inputkit",
	}
}

func stateDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "inputkit")
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			base = os.Getenv("APPDATA")
		}
		return filepath.Join(base, "inputkit", "logs")
	}
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "inputkit")
	}
	return filepath.Join(home, ".local", "state", "inputkit")
}

// Logger is an slog.Logger that owns its log file, if any.
type Logger struct {
	*slog.Logger
	rotator *FileRotator
}

var (
	defaultOnce   sync.Once
	defaultLogger *Logger
)

// Default returns the process-wide logger built from DefaultConfig.
func Default() *Logger {
	defaultOnce.Do(func() {
		l, err := New(DefaultConfig())
		if err != nil {
			l = &Logger{Logger: slog.Default()}
		}
		defaultLogger = l
	})
	return defaultLogger
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// New builds a logger from cfg. A nil cfg means DefaultConfig.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	w, rotator, err := openOutput(cfg)
	if err != nil {
		return nil, fmt.Errorf("setup writers: %w", err)
	}

	opts := &slog.HandlerOptions{Level: cfg.Level, ReplaceAttr: redact}
	var h slog.Handler
	if cfg.Format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	if cfg.Component != "" {
		h = h.WithAttrs([]slog.Attr{slog.String("component", cfg.Component)})
	}
	return &Logger{Logger: slog.New(h), rotator: rotator}, nil
}

func openOutput(cfg *Config) (io.Writer, *FileRotator, error) {
	if cfg.Writer != nil {
		return cfg.Writer, nil, nil
	}
	out := strings.ToLower(cfg.Output)
	switch out {
	case "stdout":
		return os.Stdout, nil, nil
	case "discard":
		return io.Discard, nil, nil
	case "file", "both":
		r, err := NewFileRotator(cfg)
		if err != nil {
			return nil, nil, err
		}
		if out == "both" {
			return io.MultiWriter(os.Stderr, r), r, nil
		}
		return r, r, nil
	}
	return os.Stderr, nil, nil
}

var redactedKeys = []string{
	"password", "secret", "token", "credential", "private", "auth",
	"cookie", "api_key", "transcript", "utterance",
}

func shouldRedact(key string) bool {
	key = strings.ToLower(key)
	for _, k := range redactedKeys {
		if strings.Contains(key, k) {
			return true
		}
	}
	return false
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if shouldRedact(a.Key) {
		a.Value = slog.StringValue("[REDACTED]")
	}
	return a
}

// WithComponent returns a child logger tagged with component name.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(slog.String("component", name))
}

// With returns a child logger carrying args on every record. The child
// shares the parent's log file.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), rotator: l.rotator}
}

// Or returns l, or the default logger scoped to component when l is nil.
func (l *Logger) Or(component string) *Logger {
	if l != nil {
		return l
	}
	return Default().WithComponent(component)
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.rotator == nil {
		return nil
	}
	return l.rotator.Close()
}
