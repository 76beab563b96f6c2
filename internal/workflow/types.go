package workflow

import (
	"time"

	"bioreader/internal/capture"
	"bioreader/internal/config"
)

// Outcome is the single result of a validate-or-enroll invocation. Unset
// pointers marshal as null.
type Outcome struct {
	Success  bool   `json:"success"`
	Reason   string `json:"reason"`
	Score    *int   `json:"score"`
	Percent  *int   `json:"percent"`
	Quality  *int   `json:"quality"`
	Enrolled bool   `json:"enrolled"`
}

// Request identifies the user to validate.
type Request struct {
	UserID string `json:"user_id"`
	// MinPercent is the verification threshold. Nil uses the configured
	// default; an explicit 0 accepts any match.
	MinPercent *int `json:"min_percent"`
	// Finger labels a new enrollment. Empty uses the configured default.
	Finger string `json:"finger,omitempty"`
	// Port overrides the configured serial port for this invocation.
	Port string `json:"port,omitempty"`
}

// Options configures enrollment and verification policy.
type Options struct {
	Attempts          int
	MinQuality        int
	DefaultMinPercent int
	DefaultFinger     string
	Capture           capture.Options
	// TestSettle is the wait between init and the capture in TestConnection.
	TestSettle time.Duration
}

// OptionsFromConfig maps configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Attempts:          cfg.Enrollment.Attempts,
		MinQuality:        cfg.Enrollment.MinQuality,
		DefaultMinPercent: cfg.Verification.MinPercent,
		DefaultFinger:     cfg.Enrollment.DefaultFinger,
		Capture: capture.Options{
			PlaceDelay:    config.Millis(cfg.Enrollment.PlaceDelayMillis),
			RemoveDelay:   config.Millis(cfg.Enrollment.RemoveDelayMillis),
			DetectTimeout: cfg.CaptureTimeout(),
		},
		TestSettle: time.Second,
	}
}

// ConnectionReport is the result of TestConnection.
type ConnectionReport struct {
	Success bool   `json:"success"`
	Port    string `json:"port"`
	Quality int    `json:"quality"`
	Message string `json:"message"`
}

func intPtr(v int) *int { return &v }
