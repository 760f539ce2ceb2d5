package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"inputkit/internal/feedback"
	"inputkit/internal/gesture"
	"inputkit/internal/logging"
	"inputkit/internal/voice"
)

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// IsWarning returns true if this is a non-fatal validation issue.
func (e *ValidationError) IsWarning() bool {
	warningFields := []string{
		"feedback.audio", // both modalities off silences feedback
	}
	for _, f := range warningFields {
		if strings.HasPrefix(e.Field, f) {
			return true
		}
	}
	return false
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is(err, ErrInvalidConfig) match a validation failure.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var warnings ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var errs ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			errs = append(errs, err)
		}
	}
	return errs
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}

// ValidateConfig performs semantic validation of the configuration. It
// returns nil, or ValidationErrors when at least one non-warning problem
// was found. Warnings alone do not fail validation; use Check to see them.
func ValidateConfig(c *Config) error {
	errs := Check(c)
	if !errs.HasErrors() {
		return nil
	}
	return errs
}

// Check returns every validation finding, warnings included.
func Check(c *Config) ValidationErrors {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateGesture(&c.Gesture)...)
	errs = append(errs, validatePinch(&c.Pinch)...)
	errs = append(errs, validateFocus(&c.Focus)...)
	errs = append(errs, validateVoice(&c.Voice)...)
	errs = append(errs, validateFeedback(&c.Feedback)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)

	return errs
}

func validateGesture(g *GestureConfig) ValidationErrors {
	var errs ValidationErrors

	if g.TapThresholdPx <= 0 {
		errs = append(errs, ValidationError{
			Field:   "gesture.tap_threshold_px",
			Message: "tap threshold must be positive",
		})
	}
	if g.SwipeThresholdPx <= 0 {
		errs = append(errs, ValidationError{
			Field:   "gesture.swipe_threshold_px",
			Message: "swipe threshold must be positive",
		})
	}
	if g.TapThresholdPx > 0 && g.SwipeThresholdPx > 0 && g.SwipeThresholdPx < g.TapThresholdPx {
		errs = append(errs, ValidationError{
			Field:   "gesture.swipe_threshold_px",
			Message: "swipe threshold must not be below the tap threshold",
		})
	}
	if g.LongPressTimeoutMs < 50 || g.LongPressTimeoutMs > 10000 {
		errs = append(errs, *RangeError("gesture.long_press_timeout_ms", 50, 10000))
	}
	if g.DoubleTapWindowMs < 50 || g.DoubleTapWindowMs > 5000 {
		errs = append(errs, *RangeError("gesture.double_tap_window_ms", 50, 5000))
	}
	if g.TapMaxDurationMs < 10 || g.TapMaxDurationMs > 5000 {
		errs = append(errs, *RangeError("gesture.tap_max_duration_ms", 10, 5000))
	}
	if g.LongPressMoveTolerancePx < 0 {
		errs = append(errs, ValidationError{
			Field:   "gesture.long_press_move_tolerance_px",
			Message: "tolerance cannot be negative",
		})
	}
	if _, err := gesture.ParseDirectionFilter(g.DirectionFilter); err != nil {
		errs = append(errs, ValidationError{
			Field:   "gesture.direction_filter",
			Message: fmt.Sprintf("invalid direction filter: %s (valid: any, up, down, left, right)", g.DirectionFilter),
		})
	}

	return errs
}

func validatePinch(p *PinchConfig) ValidationErrors {
	var errs ValidationErrors

	if p.MinScale <= 0 {
		errs = append(errs, ValidationError{
			Field:   "pinch.min_scale",
			Message: "min scale must be positive",
		})
	}
	if p.MaxScale < p.MinScale {
		errs = append(errs, ValidationError{
			Field:   "pinch.max_scale",
			Message: fmt.Sprintf("max scale %v is below min scale %v", p.MaxScale, p.MinScale),
		})
	}

	return errs
}

func validateFocus(f *FocusConfig) ValidationErrors {
	if f.DwellTimeMs < 100 || f.DwellTimeMs > 10000 {
		return ValidationErrors{*RangeError("focus.dwell_time_ms", 100, 10000)}
	}
	return nil
}

func validateVoice(v *VoiceConfig) ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]int)

	for i, cmd := range v.Commands {
		field := fmt.Sprintf("voice.commands[%d]", i)
		phrase := voice.Normalize(cmd.Phrase)
		if phrase == "" {
			errs = append(errs, *RequiredFieldError(field + ".phrase"))
		} else if prev, dup := seen[phrase]; dup {
			errs = append(errs, ValidationError{
				Field:   field + ".phrase",
				Message: fmt.Sprintf("phrase %q duplicates voice.commands[%d]", phrase, prev),
			})
		} else {
			seen[phrase] = i
		}
		if strings.TrimSpace(cmd.Action) == "" {
			errs = append(errs, *RequiredFieldError(field + ".action"))
		}
	}

	return errs
}

func validateFeedback(f *FeedbackConfig) ValidationErrors {
	var errs ValidationErrors

	if _, err := feedback.ParseSink(f.Sink); err != nil {
		errs = append(errs, ValidationError{
			Field:   "feedback.sink",
			Message: fmt.Sprintf("invalid sink: %s (valid: log, dbus, none)", f.Sink),
		})
	}
	if f.MaxPulsesPerSecond < 0 {
		errs = append(errs, ValidationError{
			Field:   "feedback.max_pulses_per_second",
			Message: "pulse rate cannot be negative",
		})
	}
	if f.Burst < 0 {
		errs = append(errs, ValidationError{
			Field:   "feedback.burst",
			Message: "burst cannot be negative",
		})
	}
	if !f.Audio && !f.Haptic {
		errs = append(errs, ValidationError{
			Field:   "feedback.audio",
			Message: "audio and haptic feedback are both disabled",
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	if _, err := logging.ParseLevel(l.Level); err != nil {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}
	if _, err := logging.ParseFormat(l.Format); err != nil {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr", "discard":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	case "":
		errs = append(errs, *RequiredFieldError("logging.output"))
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both, discard)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	return errs
}

var metricNamespace = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validateMetrics(m *MetricsConfig) ValidationErrors {
	if m.Enabled && !metricNamespace.MatchString(m.Namespace) {
		return ValidationErrors{{
			Field:   "metrics.namespace",
			Message: fmt.Sprintf("invalid metric namespace: %q", m.Namespace),
		}}
	}
	return nil
}
