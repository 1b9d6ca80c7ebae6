package jam

import (
	"errors"
	"fmt"
)

// Domain errors for pipeline construction and control.
var (
	// ErrInvalidConfig indicates a construction parameter outside its valid range.
	ErrInvalidConfig = errors.New("jam: invalid configuration")

	// ErrUnknownEngine indicates an unsupported sound engine variant name.
	ErrUnknownEngine = errors.New("jam: unknown engine variant")

	// ErrUnknownShaper indicates an unsupported feature shaper mode.
	ErrUnknownShaper = errors.New("jam: unknown shaper mode")

	// ErrUnknownSource indicates an unsupported control source kind.
	ErrUnknownSource = errors.New("jam: unknown control source")

	// ErrIllegalTransition indicates a cycle state change that is not allowed.
	ErrIllegalTransition = errors.New("jam: illegal cycle transition")

	// ErrModelUnavailable indicates an optional weight file could not be used.
	ErrModelUnavailable = errors.New("jam: model unavailable")

	// ErrDimensionMismatch indicates vectors or weights of incompatible shapes.
	ErrDimensionMismatch = errors.New("jam: dimension mismatch")

	// ErrSessionNotFound indicates a recorded session id that does not exist.
	ErrSessionNotFound = errors.New("jam: session not found")
)

// ConfigError describes one invalid configuration field. It always matches
// ErrInvalidConfig through errors.Is.
type ConfigError struct {
	Field   string
	Value   any
	Reason  string
	Wrapped error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() []error {
	if e.Wrapped != nil {
		return []error{ErrInvalidConfig, e.Wrapped}
	}
	return []error{ErrInvalidConfig}
}

// NewConfigError builds a ConfigError for field.
func NewConfigError(field string, value any, reason string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}

// TransitionError reports a rejected cycle state change.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cycle %s -> %s not allowed", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}
