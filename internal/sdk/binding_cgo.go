//go:build linux && cgo && cidbio

package sdk

/*
#cgo LDFLAGS: -lcidbio
#include <stdlib.h>

int CIDBIO_SetSerialCommPort(const char* port);
int CIDBIO_Init(void);
int CIDBIO_Terminate(void);
int CIDBIO_CaptureImageAndTemplate(char** t, unsigned char** imageBuf, unsigned int* width, unsigned int* height, int* quality);
int CIDBIO_MatchTemplates(const char* t1, const char* t2, int* score);
int CIDBIO_SetParameter(int config, const char* value);
int CIDBIO_GetDeviceInfo(char** version, char** serialNumber, char** model);
int CIDBIO_FreeByteArray(unsigned char* array);
int CIDBIO_FreeString(char* array);
*/
import "C"

import "unsafe"

type nativeBinding struct{}

// openNative ignores the library path: the linker resolves libcidbio.
func openNative(string) (Binding, error) {
	return nativeBinding{}, nil
}

func (nativeBinding) Name() string { return LibraryName + ".so" }

func (nativeBinding) SetSerialCommPort(port string) Code {
	cport := C.CString(port)
	defer C.free(unsafe.Pointer(cport))
	return Code(C.CIDBIO_SetSerialCommPort(cport))
}

func (nativeBinding) Init() Code { return Code(C.CIDBIO_Init()) }

func (nativeBinding) Terminate() Code { return Code(C.CIDBIO_Terminate()) }

func (nativeBinding) CaptureImageAndTemplate() (Capture, Code) {
	var (
		tmpl    *C.char
		image   *C.uchar
		width   C.uint
		height  C.uint
		quality C.int
	)
	code := Code(C.CIDBIO_CaptureImageAndTemplate(&tmpl, &image, &width, &height, &quality))
	defer func() {
		if tmpl != nil {
			C.CIDBIO_FreeString(tmpl)
		}
		if image != nil {
			C.CIDBIO_FreeByteArray(image)
		}
	}()
	if code != Success {
		return Capture{}, code
	}
	capture := Capture{Quality: int(quality), Width: int(width), Height: int(height)}
	if tmpl != nil {
		capture.Template = []byte(C.GoString(tmpl))
	}
	return capture, code
}

func (nativeBinding) MatchTemplates(stored, live []byte) (int, Code) {
	cs := C.CString(string(stored))
	defer C.free(unsafe.Pointer(cs))
	cl := C.CString(string(live))
	defer C.free(unsafe.Pointer(cl))
	var score C.int
	code := Code(C.CIDBIO_MatchTemplates(cs, cl, &score))
	return int(score), code
}

func (nativeBinding) SetParameter(param Param, value string) Code {
	cv := C.CString(value)
	defer C.free(unsafe.Pointer(cv))
	return Code(C.CIDBIO_SetParameter(C.int(param), cv))
}

func (nativeBinding) DeviceInfo() (DeviceInfo, Code) {
	var version, serial, model *C.char
	code := Code(C.CIDBIO_GetDeviceInfo(&version, &serial, &model))
	defer func() {
		for _, p := range []*C.char{version, serial, model} {
			if p != nil {
				C.CIDBIO_FreeString(p)
			}
		}
	}()
	if code != Success {
		return DeviceInfo{}, code
	}
	return DeviceInfo{
		Version:      goString(version),
		SerialNumber: goString(serial),
		Model:        goString(model),
	}, code
}

func goString(p *C.char) string {
	if p == nil {
		return ""
	}
	return C.GoString(p)
}
