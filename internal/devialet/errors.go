package devialet

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every typed error below matches exactly one of these
// with errors.Is.
var (
	// ErrConnection means the device could not be reached or timed out.
	ErrConnection = errors.New("devialet: device unreachable")

	// ErrDevice means the device answered with a failure or an unreadable body.
	ErrDevice = errors.New("devialet: device error")

	// ErrValidation means a caller-supplied value is outside its contract.
	ErrValidation = errors.New("devialet: invalid value")

	// ErrUnsupportedFeature means the firmware or feature list gates the operation off.
	ErrUnsupportedFeature = errors.New("devialet: feature not supported")
)

// ConnectionError reports a transport-level failure talking to the device.
type ConnectionError struct {
	Method string
	Path   string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("devialet: %s %s: device unreachable: %v", e.Method, e.Path, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause, so
// errors.Is(err, context.DeadlineExceeded) also works.
func (e *ConnectionError) Unwrap() []error {
	return []error{ErrConnection, e.Err}
}

// DeviceError reports a non-2xx response, an error object in a 2xx body,
// or a body that is not valid JSON.
type DeviceError struct {
	Path       string
	StatusCode int
	Code       string
	Message    string
}

func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("devialet: %s: status %d", e.Path, e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *DeviceError) Is(target error) bool {
	return target == ErrDevice
}

// ValidationError reports an argument rejected before any request was sent.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("devialet: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UnsupportedFeatureError reports an operation the device cannot perform.
type UnsupportedFeatureError struct {
	Feature  Feature
	Firmware string
}

func (e *UnsupportedFeatureError) Error() string {
	if e.Firmware == "" {
		return fmt.Sprintf("devialet: %s not supported by this device", e.Feature)
	}
	return fmt.Sprintf("devialet: %s not supported by this device (firmware %s)", e.Feature, e.Firmware)
}

func (e *UnsupportedFeatureError) Is(target error) bool {
	return target == ErrUnsupportedFeature
}

func invalid(field string, value any, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}
