// Package config handles configuration loading and validation for inputkit.
//
// A configuration file may be TOML, JSON or YAML; the format follows the
// file extension. Every file is checked against an embedded JSON schema
// before it is decoded, then semantically validated by ValidateConfig.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"inputkit/internal/feedback"
	"inputkit/internal/focus"
	"inputkit/internal/gesture"
	"inputkit/internal/logging"
	"inputkit/internal/voice"
)

// Version is the current configuration schema version.
const Version = 1

// Config is the complete inputkit configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	Gesture  GestureConfig  `toml:"gesture" json:"gesture" yaml:"gesture"`
	Pinch    PinchConfig    `toml:"pinch" json:"pinch" yaml:"pinch"`
	Focus    FocusConfig    `toml:"focus" json:"focus" yaml:"focus"`
	Voice    VoiceConfig    `toml:"voice" json:"voice" yaml:"voice"`
	Feedback FeedbackConfig `toml:"feedback" json:"feedback" yaml:"feedback"`
	Logging  LoggingConfig  `toml:"logging" json:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `toml:"metrics" json:"metrics" yaml:"metrics"`
}

// GestureConfig holds the tap, long-press and swipe thresholds.
type GestureConfig struct {
	// TapThresholdPx is the movement tolerance for a tap.
	TapThresholdPx float64 `toml:"tap_threshold_px" json:"tap_threshold_px" yaml:"tap_threshold_px"`

	// LongPressTimeoutMs is how long a stationary touch must be held.
	LongPressTimeoutMs int `toml:"long_press_timeout_ms" json:"long_press_timeout_ms" yaml:"long_press_timeout_ms"`

	// DoubleTapWindowMs is the maximum gap between two taps.
	DoubleTapWindowMs int `toml:"double_tap_window_ms" json:"double_tap_window_ms" yaml:"double_tap_window_ms"`

	// TapMaxDurationMs is the maximum contact time for a tap.
	TapMaxDurationMs int `toml:"tap_max_duration_ms" json:"tap_max_duration_ms" yaml:"tap_max_duration_ms"`

	// SwipeThresholdPx is the minimum travel for a swipe.
	SwipeThresholdPx float64 `toml:"swipe_threshold_px" json:"swipe_threshold_px" yaml:"swipe_threshold_px"`

	// DirectionFilter is "any", "up", "down", "left" or "right".
	DirectionFilter string `toml:"direction_filter" json:"direction_filter" yaml:"direction_filter"`

	// LongPressMoveTolerancePx is how far a held touch may drift. Zero
	// means any move cancels the long-press.
	LongPressMoveTolerancePx float64 `toml:"long_press_move_tolerance_px" json:"long_press_move_tolerance_px" yaml:"long_press_move_tolerance_px"`
}

// PinchConfig holds the pinch scale clamp.
type PinchConfig struct {
	MinScale float64 `toml:"min_scale" json:"min_scale" yaml:"min_scale"`
	MaxScale float64 `toml:"max_scale" json:"max_scale" yaml:"max_scale"`
}

// FocusConfig holds focus navigation settings.
type FocusConfig struct {
	// DwellTimeMs is how long the pointer must rest on a region before it
	// takes focus.
	DwellTimeMs int `toml:"dwell_time_ms" json:"dwell_time_ms" yaml:"dwell_time_ms"`
}

// VoiceConfig holds voice dispatch settings and declared commands.
type VoiceConfig struct {
	Enabled         bool                `toml:"enabled" json:"enabled" yaml:"enabled"`
	DispatchInterim bool                `toml:"dispatch_interim" json:"dispatch_interim" yaml:"dispatch_interim"`
	Commands        []voice.Declaration `toml:"commands" json:"commands,omitempty" yaml:"commands,omitempty"`
}

// FeedbackConfig holds feedback modality and sink settings.
type FeedbackConfig struct {
	Audio  bool `toml:"audio" json:"audio" yaml:"audio"`
	Haptic bool `toml:"haptic" json:"haptic" yaml:"haptic"`

	// Sink is "log", "dbus" or "none".
	Sink string `toml:"sink" json:"sink" yaml:"sink"`

	// MaxPulsesPerSecond caps pulse delivery; 0 disables the cap.
	MaxPulsesPerSecond float64 `toml:"max_pulses_per_second" json:"max_pulses_per_second" yaml:"max_pulses_per_second"`
	Burst              int     `toml:"burst" json:"burst" yaml:"burst"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file", "both" or "discard".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output writes to a file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the log file size that triggers rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Namespace string `toml:"namespace" json:"namespace" yaml:"namespace"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	g := gesture.DefaultConfig()
	p := gesture.DefaultPinchConfig()
	f := feedback.DefaultConfig()
	l := logging.DefaultConfig()

	return &Config{
		Version: Version,
		Gesture: GestureConfig{
			TapThresholdPx:           g.TapThreshold,
			LongPressTimeoutMs:       int(g.LongPressTimeout / time.Millisecond),
			DoubleTapWindowMs:        int(g.DoubleTapWindow / time.Millisecond),
			TapMaxDurationMs:         int(g.TapMaxDuration / time.Millisecond),
			SwipeThresholdPx:         g.SwipeThreshold,
			DirectionFilter:          string(g.DirectionFilter),
			LongPressMoveTolerancePx: g.LongPressMoveTolerance,
		},
		Pinch: PinchConfig{
			MinScale: p.MinScale,
			MaxScale: p.MaxScale,
		},
		Focus: FocusConfig{
			DwellTimeMs: int(focus.DefaultDwellTime / time.Millisecond),
		},
		Voice: VoiceConfig{
			Enabled: voice.DefaultConfig().Enabled,
		},
		Feedback: FeedbackConfig{
			Audio:              f.Audio,
			Haptic:             f.Haptic,
			Sink:               string(feedback.SinkLog),
			MaxPulsesPerSecond: f.MaxPulsesPerSecond,
			Burst:              f.Burst,
		},
		Logging: LoggingConfig{
			Level:      logging.LevelString(l.Level),
			Format:     "text",
			Output:     l.Output,
			FilePath:   l.FilePath,
			MaxSizeMB:  int(l.MaxSize),
			MaxBackups: l.MaxBackups,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "inputkit",
		},
	}
}

// Load reads, schema-checks and decodes the configuration at path, applies
// environment overrides and validates the result. A missing file yields
// the defaults. An empty path means ConfigPath().
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration. Variables are prefixed with INPUTKIT_.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("INPUTKIT_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("INPUTKIT_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("INPUTKIT_FEEDBACK_SINK"); v != "" {
		c.Feedback.Sink = strings.ToLower(v)
	}
	if v := os.Getenv("INPUTKIT_DIRECTION_FILTER"); v != "" {
		c.Gesture.DirectionFilter = strings.ToLower(v)
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Voice.Commands = append([]voice.Declaration(nil), c.Voice.Commands...)
	return &clone
}

// GestureConfig converts the gesture section for gesture.NewClassifier.
// The direction filter is assumed valid; Validate reports bad values.
func (c *Config) GestureConfig() gesture.Config {
	filter, err := gesture.ParseDirectionFilter(c.Gesture.DirectionFilter)
	if err != nil {
		filter = gesture.FilterAny
	}
	return gesture.Config{
		TapThreshold:           c.Gesture.TapThresholdPx,
		LongPressTimeout:       millis(c.Gesture.LongPressTimeoutMs),
		DoubleTapWindow:        millis(c.Gesture.DoubleTapWindowMs),
		TapMaxDuration:         millis(c.Gesture.TapMaxDurationMs),
		SwipeThreshold:         c.Gesture.SwipeThresholdPx,
		DirectionFilter:        filter,
		LongPressMoveTolerance: c.Gesture.LongPressMoveTolerancePx,
	}
}

// PinchConfig converts the pinch section.
func (c *Config) PinchConfig() gesture.PinchConfig {
	return gesture.PinchConfig{MinScale: c.Pinch.MinScale, MaxScale: c.Pinch.MaxScale}
}

// DwellTime returns the focus dwell delay.
func (c *Config) DwellTime() time.Duration {
	return millis(c.Focus.DwellTimeMs)
}

// VoiceConfig converts the voice section for voice.NewDispatcher.
func (c *Config) VoiceConfig() voice.Config {
	return voice.Config{Enabled: c.Voice.Enabled, DispatchInterim: c.Voice.DispatchInterim}
}

// FeedbackConfig converts the feedback section for feedback.NewPulser.
func (c *Config) FeedbackConfig() feedback.Config {
	return feedback.Config{
		Audio:              c.Feedback.Audio,
		Haptic:             c.Feedback.Haptic,
		MaxPulsesPerSecond: c.Feedback.MaxPulsesPerSecond,
		Burst:              c.Feedback.Burst,
	}
}

// LoggingConfig converts the logging section for logging.New.
func (c *Config) LoggingConfig() (*logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		return nil, err
	}
	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = format
	lc.Output = c.Logging.Output
	if c.Logging.FilePath != "" {
		lc.FilePath = c.Logging.FilePath
	}
	lc.MaxSize = int64(c.Logging.MaxSizeMB)
	lc.MaxBackups = c.Logging.MaxBackups
	return lc, nil
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Marshal encodes cfg in the named format ("toml", "json" or "yaml").
func Marshal(cfg *Config, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "toml", "":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("encode TOML: %w", err)
		}
		return buf.Bytes(), nil
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode JSON: %w", err)
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("encode YAML: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", format)
	}
}

// SaveConfig writes cfg to path in the format implied by its extension.
func SaveConfig(cfg *Config, path string) error {
	data, err := Marshal(cfg, formatOf(path))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// formatOf maps a file extension to a format name; unknown extensions
// are treated as TOML.
func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "toml"
	}
}
