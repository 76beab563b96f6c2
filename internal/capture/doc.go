// Package capture drives fingerprint captures on a ready device session.
//
// CaptureOne absorbs a single "not initialized" response per orchestrator by
// reinitializing the session and retrying once. CaptureBestOf runs several
// sequential captures with operator prompts and keeps the highest quality
// sample.
package capture
