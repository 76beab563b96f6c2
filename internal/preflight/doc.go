// Package preflight reports whether this host can drive the fingerprint
// reader: the vendor SDK library is present, the vendor driver is installed,
// the state and log directories are usable and a template store is
// configured.
//
// The daemon logs the result at startup and serves it from /api/status; the
// CLI "bioreader status" command renders it as a table.
package preflight
