package sdk

import "fmt"

// Code is a raw libcidbio return code. Positive values are warnings, zero is
// success and negative values are errors.
type Code int32

const (
	WarningOverwritingTemplate Code = 3
	WarningNoIDsOnDevice       Code = 2
	WarningAlreadyInit         Code = 1
	Success                    Code = 0
	ErrorUnknown               Code = -1
	ErrorNoDevice              Code = -2
	ErrorNullArgument          Code = -3
	ErrorInvalidArgument       Code = -4
	ErrorCapture               Code = -5
	ErrorCaptureTimeout        Code = -6
	ErrorCommUSB               Code = -7
	ErrorIOOnHost              Code = -8
	ErrorTemplateAlreadyEnroll Code = -9
	ErrorMerging               Code = -10
	ErrorMatching              Code = -11
	ErrorInvalidFirmwareFile   Code = -12
	ErrorNoSpaceLeftOnDevice   Code = -13
	ErrorNoTemplateWithID      Code = -14
	ErrorInvalidErrno          Code = -15
	ErrorUnavailableFeature    Code = -16
	ErrorPreviousFirmware      Code = -17
	ErrorNotIdentified         Code = -18
	ErrorBusy                  Code = -19
	ErrorCaptureCanceled       Code = -20
	ErrorNoFingerDetected      Code = -21
	ErrorInvalidTemplate       Code = -22
)

// ErrorNotInitialized is the code the SDK reports when an operation runs
// against a session that was never initialized or has gone stale.
const ErrorNotInitialized = ErrorUnknown

var codeNames = map[Code]string{
	WarningOverwritingTemplate: "WARNING_OVERWRITING_TEMPLATE",
	WarningNoIDsOnDevice:       "WARNING_NO_IDS_ON_DEVICE",
	WarningAlreadyInit:         "WARNING_ALREADY_INIT",
	Success:                    "SUCCESS",
	ErrorUnknown:               "ERROR_UNKNOWN",
	ErrorNoDevice:              "ERROR_NO_DEVICE",
	ErrorNullArgument:          "ERROR_NULL_ARGUMENT",
	ErrorInvalidArgument:       "ERROR_INVALID_ARGUMENT",
	ErrorCapture:               "ERROR_CAPTURE",
	ErrorCaptureTimeout:        "ERROR_CAPTURE_TIMEOUT",
	ErrorCommUSB:               "ERROR_COMM_USB",
	ErrorIOOnHost:              "ERROR_IO_ON_HOST",
	ErrorTemplateAlreadyEnroll: "ERROR_TEMPLATE_ALREADY_ENROLLED",
	ErrorMerging:               "ERROR_MERGING",
	ErrorMatching:              "ERROR_MATCHING",
	ErrorInvalidFirmwareFile:   "ERROR_INVALID_FW_FILE",
	ErrorNoSpaceLeftOnDevice:   "ERROR_NO_SPACE_LEFT_ON_DEVICE",
	ErrorNoTemplateWithID:      "ERROR_NO_TEMPLATE_WITH_ID",
	ErrorInvalidErrno:          "ERROR_INVALID_ERRNO",
	ErrorUnavailableFeature:    "ERROR_UNAVAILABLE_FEATURE",
	ErrorPreviousFirmware:      "ERROR_PREVIOUS_FW_VERSION",
	ErrorNotIdentified:         "ERROR_NOT_IDENTIFIED",
	ErrorBusy:                  "ERROR_BUSY",
	ErrorCaptureCanceled:       "ERROR_CAPTURE_CANCELED",
	ErrorNoFingerDetected:      "ERROR_NO_FINGER_DETECTED",
	ErrorInvalidTemplate:       "ERROR_INVALID_TEMPLATE",
}

var codeMessages = map[Code]string{
	WarningOverwritingTemplate: "template overwritten on device",
	WarningNoIDsOnDevice:       "no templates stored on device",
	WarningAlreadyInit:         "device already initialized",
	Success:                    "success",
	ErrorUnknown:               "device not initialized or unknown error",
	ErrorNoDevice:              "no device detected",
	ErrorNullArgument:          "null argument",
	ErrorInvalidArgument:       "invalid argument",
	ErrorCapture:               "capture failed",
	ErrorCaptureTimeout:        "capture timed out",
	ErrorCommUSB:               "usb communication error",
	ErrorIOOnHost:              "host i/o error",
	ErrorTemplateAlreadyEnroll: "template already enrolled",
	ErrorMerging:               "template merge failed",
	ErrorMatching:              "template matching failed",
	ErrorInvalidFirmwareFile:   "invalid firmware file",
	ErrorNoSpaceLeftOnDevice:   "no space left on device",
	ErrorNoTemplateWithID:      "no template with the given id",
	ErrorInvalidErrno:          "invalid error number",
	ErrorUnavailableFeature:    "feature unavailable on this device",
	ErrorPreviousFirmware:      "firmware version is older than the installed one",
	ErrorNotIdentified:         "finger not identified",
	ErrorBusy:                  "device busy",
	ErrorCaptureCanceled:       "capture canceled",
	ErrorNoFingerDetected:      "no finger detected",
	ErrorInvalidTemplate:       "invalid template",
}

// String returns the SDK constant name for the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE(%d)", int32(c))
}

// Message returns a short human readable description of the code.
func (c Code) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return fmt.Sprintf("unrecognized device code %d", int32(c))
}

// IsWarning reports whether the code is a non-fatal SDK warning.
func (c Code) IsWarning() bool { return c > 0 }

// IsError reports whether the code signals a failed call.
func (c Code) IsError() bool { return c < 0 }

// Ready reports whether an init call left the device usable.
func (c Code) Ready() bool { return c == Success || c == WarningAlreadyInit }
