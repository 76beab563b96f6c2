// Package daemon coordinates the long-running bioreader process.
//
// It starts the device worker (which takes the host-wide reader lock so only
// one process drives the SDK), the hotplug monitor and the local HTTP API as
// one lifecycle. Stopping the daemon terminates the SDK session before the
// lock is released.
//
// Keep orchestration logic here: capture, matching and enrollment live in
// their own packages while the daemon focuses on startup, shutdown and status.
package daemon
