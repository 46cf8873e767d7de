package core

import (
	"errors"
	"fmt"
)

// Predefined errors. Typed errors below unwrap to them, so callers can match
// with errors.Is.
var (
	// ErrNoRows is returned by First when the relation yields nothing.
	ErrNoRows = errors.New("no rows in result set")
	// ErrUnsupportedDialect is returned when no dialect is registered for a driver name.
	ErrUnsupportedDialect = errors.New("unsupported database dialect")
	// ErrConfiguration marks relation configurations that can never execute.
	ErrConfiguration = errors.New("invalid relation configuration")
	// ErrUnsupportedOperation marks operations the selected backend cannot express.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrCycleDetected is returned under CycleStrict when traversal revisits a key.
	ErrCycleDetected = errors.New("cycle detected in hierarchy")
)

// ConfigurationError reports a relation that was configured inconsistently.
// It is raised before any statement reaches the backend.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "adjacency: " + e.Msg
}

// Unwrap returns ErrConfiguration.
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// UnsupportedOperationError reports a combination the selected dialect
// cannot express.
type UnsupportedOperationError struct {
	Dialect   string
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("adjacency: %s is not supported by the %s dialect", e.Operation, e.Dialect)
}

// Unwrap returns ErrUnsupportedOperation.
func (e *UnsupportedOperationError) Unwrap() error {
	return ErrUnsupportedOperation
}

// IsConfigurationError reports whether err is a relation configuration error.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsUnsupportedOperation reports whether err is a dialect capability error.
func IsUnsupportedOperation(err error) bool {
	return errors.Is(err, ErrUnsupportedOperation)
}

// WrapError wraps an error with additional context message.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
