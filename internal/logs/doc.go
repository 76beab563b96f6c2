// Package logs backs "bioreader logs". It streams buffered events from the
// daemon API with client-side filters and falls back to tailing the
// rotating log file when no daemon answers.
package logs
