// Package device owns the fingerprint reader session.
//
// Session is the state machine around an sdk.Binding: idempotent init and
// terminate, one settle-and-retry reinitialize path, and translation of raw
// SDK codes into the Error taxonomy. Worker is the single goroutine that owns
// a Session; every hardware call in the process goes through Worker.Do so no
// two SDK primitives are ever in flight together. Worker also holds a host
// file lock so a second process cannot open the reader concurrently.
package device
