// Package logging assembles structured slog loggers and formatting helpers used
// across bioreader.
//
// It owns the console and JSON handlers, routes file output through a daily
// rotating sink, and exposes context-aware helpers so workflow code tags log
// lines with correlation, user, and operation fields. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
