// Package driver reports whether the fingerprint reader's vendor driver is
// installed on the host and locates the vendor SDK library.
//
// The driver check is only consulted after init reports no device, to tell a
// missing driver apart from an unplugged reader.
package driver
