// Package workflow runs the enroll-or-verify decision for a user.
//
// Engine.ValidateOrEnroll fetches the user's stored templates, then hands
// all hardware work to the device worker: with no stored templates it
// captures several samples, applies the quality gate, and persists the best;
// otherwise it captures once and matches against every stored template.
// Insufficient quality and a below-minimum match are returned as negative
// Outcomes, not errors. Device and store failures are returned as errors.
//
// Every invocation is tagged with a fresh correlation id that flows into
// logs and progress events. Engine also exposes the device commands used
// by the API and CLI (initialize, reinitialize, connection test, port
// listing).
package workflow
