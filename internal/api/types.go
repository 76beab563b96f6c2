package api

import (
	"bioreader/internal/device"
	"bioreader/internal/notifications"
	"bioreader/internal/preflight"
)

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Version   string            `json:"version,omitempty"`
	PID       int               `json:"pid"`
	Session   device.Status     `json:"session"`
	Busy      bool              `json:"busy"`
	Preflight *preflight.Status `json:"preflight,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error       string `json:"error"`
	Kind        string `json:"kind,omitempty"`
	Code        *int   `json:"code,omitempty"`
	Remediation string `json:"remediation,omitempty"`
}

// PortRequest selects a serial port for a device route. Empty uses the
// configured port.
type PortRequest struct {
	Port string `json:"port,omitempty"`
}

// EventsResponse is returned by GET /api/events.
type EventsResponse struct {
	Events []notifications.Event `json:"events"`
	Next   uint64                `json:"next"`
}
