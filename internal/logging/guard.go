package logging

import (
	"fmt"
	"runtime/debug"
)

// PanicError is returned by Guard when the guarded function panicked.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Guard runs fn and converts a panic into a *PanicError. Gesture handlers,
// voice actions and element activations all run under Guard.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return fn()
}

// GuardFunc is Guard for callbacks without an error result.
func GuardFunc(fn func()) error {
	return Guard(func() error {
		fn()
		return nil
	})
}

// CallbackFailed logs a failed consumer callback at error level. Panics are
// logged with their stack at debug level as well.
func (l *Logger) CallbackFailed(what string, err error, args ...any) {
	attrs := append([]any{"callback", what, "error", err}, args...)
	l.Error("callback failed", attrs...)
	if pe, ok := err.(*PanicError); ok {
		l.Debug("callback panic stack", "callback", what, "stack", pe.Stack)
	}
}
