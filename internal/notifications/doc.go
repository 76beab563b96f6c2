// Package notifications carries operator-facing progress messages ("place
// finger", "remove finger") out of the capture path.
//
// Sinks are fire-and-forget: Instruction never blocks on a slow consumer and
// never fails the caller. Hub buffers recent events with sequence numbers so
// HTTP clients can long-poll for them; NewLogHandler mirrors log records into
// the same hub.
package notifications
