package statuslight

import (
	"errors"
	"fmt"
)

// ErrDeviceTimeout is returned (wrapped in a DeviceError) when the strip does
// not finish a flush in time.
var ErrDeviceTimeout = errors.New("device did not respond in time")

// ValidationError describes a configuration field that is out of range or
// malformed. It is returned before anything is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Message
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// UnknownSegmentError is returned when a segment name is not in the
// configuration.
type UnknownSegmentError struct {
	Segment string
}

func (e *UnknownSegmentError) Error() string {
	return fmt.Sprintf("unknown segment %q", e.Segment)
}

// DeviceError is returned when the LED strip cannot be allocated or written.
type DeviceError struct {
	Op  string // "open", "flush" or "close"
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("led strip %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// PersistenceError is returned when the configuration store cannot be read or
// written.
type PersistenceError struct {
	Op   string // "load" or "save"
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s config %q: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
