// Package api serves the local HTTP interface of the bioreader daemon and
// ships the matching client used by the CLI.
//
// The server is a fiber app. Every hardware route is forwarded to the
// workflow engine, which serializes it on the device worker, so concurrent
// HTTP requests queue rather than overlap on the reader. Device failures are
// returned as {error, kind, code, remediation} so a UI can tell a missing
// driver from an unplugged reader.
package api
