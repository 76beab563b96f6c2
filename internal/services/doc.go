// Package services defines shared utilities consumed by the workflow engine,
// the template stores, and the API layer.
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers, user identifiers,
//     and operation names for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent outward statuses.
package services
