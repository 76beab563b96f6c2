// Package sdk isolates the vendor libcidbio boundary behind the Binding
// interface.
//
// Native bindings load the vendor library (LazyDLL on Windows, cgo behind the
// cidbio build tag on Linux) and copy every SDK-owned buffer into Go memory
// before releasing it back to the SDK, on every return path. Builds without a
// native binding get Unavailable, and tests drive the Simulator instead.
//
// A Binding is not safe for concurrent use. Callers hand it to a single
// device worker which serializes every call.
package sdk
