// Package discovery locates the serial port a fingerprint reader is attached
// to.
//
// Ports are enumerated from the operating system and labeled with the best
// human readable name available (Windows registry friendly names, sysfs USB
// strings on Linux). A port whose label contains one of the configured
// keywords wins. When no label matches, Finder falls back to active probing:
// each port is handed to the SDK and initialized in turn. Probing is
// destructive to any open session, so it must run on the device worker.
package discovery
