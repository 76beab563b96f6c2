package sdk

import (
	"fmt"
	"strings"
)

// LibraryName is the vendor shared library the native bindings load.
const LibraryName = "libcidbio"

// Param identifies a CIDBIO_SetParameter configuration slot.
type Param int32

const (
	ParamMinVar              Param = 1
	ParamSimilarityThreshold Param = 2
	ParamBuzzerOn            Param = 5
	ParamTemplateFormat      Param = 6
	ParamDetectTimeout       Param = 7
)

// Capture is a template read copied out of SDK-owned memory.
type Capture struct {
	Template []byte
	Quality  int
	Width    int
	Height   int
}

// DeviceInfo describes the attached reader.
type DeviceInfo struct {
	Version      string `json:"version"`
	SerialNumber string `json:"serial_number"`
	Model        string `json:"model"`
}

// Binding exposes the libcidbio primitives. Every call is a synchronous,
// blocking round trip to the reader.
type Binding interface {
	SetSerialCommPort(port string) Code
	Init() Code
	Terminate() Code
	// CaptureImageAndTemplate blocks until a finger is read. A nil Template
	// with a Success code means the SDK returned a null template pointer.
	CaptureImageAndTemplate() (Capture, Code)
	MatchTemplates(stored, live []byte) (int, Code)
	SetParameter(param Param, value string) Code
	DeviceInfo() (DeviceInfo, Code)
	Name() string
}

// Open returns the binding selected by driver: "native" loads the vendor
// library, "simulated" returns a Simulator that always reads a good sample.
func Open(driver, library string) (Binding, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "native":
		return openNative(library)
	case "simulated", "simulator":
		return NewSimulator(), nil
	default:
		return nil, fmt.Errorf("sdk driver: unsupported value %q", driver)
	}
}
