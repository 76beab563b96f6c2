//go:build !windows && !(linux && cgo && cidbio)

package sdk

func openNative(string) (Binding, error) {
	return Unavailable{Reason: "built without native libcidbio support"}, nil
}
