package api

import (
	"context"
	"errors"
	"net/http"

	"bioreader/internal/device"
	"bioreader/internal/services"
)

// Service error kinds reported on the wire alongside device kinds.
const (
	KindValidation      = "validation"
	KindConfiguration   = "configuration"
	KindNotFound        = "not_found"
	KindTimeout         = "timeout"
	KindExternalService = "external_service"
	KindDeviceLocked    = "device_locked"
	KindUnavailable     = "unavailable"
	KindInternal        = "internal"
)

var serviceMarkers = map[string]error{
	KindValidation:      services.ErrValidation,
	KindConfiguration:   services.ErrConfiguration,
	KindNotFound:        services.ErrNotFound,
	KindTimeout:         services.ErrTimeout,
	KindExternalService: services.ErrExternalService,
	KindDeviceLocked:    device.ErrDeviceLocked,
	KindUnavailable:     device.ErrWorkerStopped,
}

// Describe maps err to an HTTP status and response body.
func Describe(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Error: err.Error()}
	if kind := device.KindOf(err); kind != "" {
		resp.Kind = string(kind)
		resp.Remediation = device.Remediation(err)
		if code, ok := device.CodeOf(err); ok {
			v := int(code)
			resp.Code = &v
		}
		return deviceStatus(kind), resp
	}

	switch {
	case errors.Is(err, device.ErrDeviceLocked):
		resp.Kind = KindDeviceLocked
		return http.StatusLocked, resp
	case errors.Is(err, device.ErrWorkerStopped):
		resp.Kind = KindUnavailable
		return http.StatusServiceUnavailable, resp
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, services.ErrTimeout):
		resp.Kind = KindTimeout
		return http.StatusGatewayTimeout, resp
	case errors.Is(err, services.ErrValidation):
		resp.Kind = KindValidation
	case errors.Is(err, services.ErrConfiguration):
		resp.Kind = KindConfiguration
	case errors.Is(err, services.ErrNotFound):
		resp.Kind = KindNotFound
	case errors.Is(err, services.ErrExternalService):
		resp.Kind = KindExternalService
	default:
		resp.Kind = KindInternal
	}
	return services.HTTPStatus(err), resp
}

func deviceStatus(kind device.Kind) int {
	switch kind {
	case device.KindDriverMissing, device.KindDeviceNotFound:
		return http.StatusServiceUnavailable
	case device.KindBusyOrNotInitialized:
		return http.StatusConflict
	case device.KindCaptureEmptyResult, device.KindComparisonFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// RemoteError is an error response received by Client. It matches the
// device or service sentinel for its kind with errors.Is.
type RemoteError struct {
	Status   int
	Response ErrorResponse
}

func (e *RemoteError) Error() string {
	if e.Response.Error == "" {
		return http.StatusText(e.Status)
	}
	return e.Response.Error
}

func (e *RemoteError) Unwrap() error {
	if sentinel := device.Sentinel(device.Kind(e.Response.Kind)); sentinel != nil {
		return sentinel
	}
	return serviceMarkers[e.Response.Kind]
}

// ErrorKind reports the wire kind.
func (e *RemoteError) ErrorKind() string { return e.Response.Kind }

// Remediation returns operator guidance sent by the daemon.
func (e *RemoteError) Remediation() string { return e.Response.Remediation }
