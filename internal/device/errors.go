package device

import (
	"errors"
	"fmt"

	"bioreader/internal/sdk"
)

// Kind classifies device failures for remediation and outward status.
type Kind string

const (
	KindDriverMissing        Kind = "driver_missing"
	KindDeviceNotFound       Kind = "device_not_found"
	KindBusyOrNotInitialized Kind = "device_busy_or_not_initialized"
	KindCaptureEmptyResult   Kind = "capture_empty_result"
	KindComparisonFailed     Kind = "comparison_failed"
	KindGeneric              Kind = "generic_device_error"
)

var (
	ErrDriverMissing              = errors.New("biometric driver is not installed")
	ErrDeviceNotFound             = errors.New("driver installed but no reader responded")
	ErrDeviceBusyOrNotInitialized = errors.New("reader busy or not initialized")
	ErrCaptureEmptyResult         = errors.New("capture returned an empty template")
	ErrComparisonFailed           = errors.New("template comparison failed")
	ErrGenericDevice              = errors.New("device error")
	ErrWorkerStopped              = errors.New("device worker stopped")
	ErrDeviceLocked               = errors.New("reader is owned by another bioreader process")
)

var kindSentinels = map[Kind]error{
	KindDriverMissing:        ErrDriverMissing,
	KindDeviceNotFound:       ErrDeviceNotFound,
	KindBusyOrNotInitialized: ErrDeviceBusyOrNotInitialized,
	KindCaptureEmptyResult:   ErrCaptureEmptyResult,
	KindComparisonFailed:     ErrComparisonFailed,
	KindGeneric:              ErrGenericDevice,
}

// Error is a classified device failure. It matches its Kind sentinel with
// errors.Is and carries the raw SDK code when one exists.
type Error struct {
	Kind Kind
	Op   string
	Code sdk.Code
	Port string
	Err  error
}

// NewError builds a classified error for op.
func NewError(kind Kind, op string, code sdk.Code, err error) *Error {
	return &Error{Kind: kind, Op: op, Code: code, Err: err}
}

func (e *Error) Error() string {
	msg := kindSentinels[e.Kind].Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Code != sdk.Success {
		msg = fmt.Sprintf("%s (code %d %s)", msg, int32(e.Code), e.Code)
	}
	if e.Port != "" {
		msg += " on " + e.Port
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := []error{kindSentinels[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ErrorKind implements the classifier interface used by the API layer.
func (e *Error) ErrorKind() string { return string(e.Kind) }

// KindOf returns the kind of a device error, or "" if err is not one.
func KindOf(err error) Kind {
	var devErr *Error
	if errors.As(err, &devErr) {
		return devErr.Kind
	}
	return ""
}

// CodeOf returns the raw SDK code carried by err.
func CodeOf(err error) (sdk.Code, bool) {
	var devErr *Error
	if errors.As(err, &devErr) && devErr.Code != sdk.Success {
		return devErr.Code, true
	}
	return sdk.Success, false
}

// Remediation returns operator-facing guidance for a device error.
func Remediation(err error) string {
	switch KindOf(err) {
	case KindDriverMissing:
		return "Install the iDBio driver, restart the machine, reconnect the reader and try again."
	case KindDeviceNotFound:
		return "The driver is installed but the reader did not respond. Unplug it, wait ten seconds, reconnect it to another USB port (preferably USB 2.0) and try again. Reinstall the driver if the problem persists."
	case KindBusyOrNotInitialized:
		return "The reader stayed uninitialized after an automatic restart. Reinitialize the device or reconnect it, then retry."
	case KindCaptureEmptyResult:
		return "The reader returned no template. Place the finger flat on the sensor and try again."
	case KindComparisonFailed:
		return "A stored template could not be compared. It may be corrupt or from an incompatible reader."
	case KindGeneric:
		if code, ok := CodeOf(err); ok {
			return fmt.Sprintf("The reader reported %s (%s). Check the connection and try again.", code, code.Message())
		}
		return "The reader reported an unexpected error. Check the connection and try again."
	default:
		return ""
	}
}

// Sentinel returns the errors.Is target for kind, or nil for an unknown
// kind. It lets remote callers rebuild a classified error from a wire kind.
func Sentinel(kind Kind) error {
	return kindSentinels[kind]
}
