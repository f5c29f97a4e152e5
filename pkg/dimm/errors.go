package dimm

import (
	"errors"
	"strings"
)

// DeviceError is a failure scoped to a single device or user-supplied
// identifier. The batch combinators treat it as recoverable under the
// continue policy; every other error kind aborts a batch outright.
type DeviceError struct {
	// Device is the endpoint name, rank path, or identifier the failure
	// is scoped to. May be empty when no single device is implicated.
	Device string
	// Step names the logical step that failed (e.g. "erase",
	// "enter-dfu"). Empty for identifier errors.
	Step string
	// Msg is the human-readable reason.
	Msg string
	// Err is the underlying cause, if any.
	Err error
}

func (e *DeviceError) Error() string {
	var b strings.Builder
	if e.Device != "" {
		b.WriteString(e.Device)
		b.WriteString(": ")
	}
	if e.Step != "" {
		b.WriteString(e.Step)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString("device error")
	}
	return b.String()
}

func (e *DeviceError) Unwrap() error { return e.Err }

// IsDeviceError reports whether err is (or wraps) a device-scoped error.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}
