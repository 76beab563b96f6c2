//go:build !windows && !linux

package discovery

// SystemEnumerator lists ports through go.bug.st/serial.
func SystemEnumerator() Enumerator {
	return usbEnumerator{}
}
