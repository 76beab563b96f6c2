//go:build windows

package sdk

import (
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

type nativeBinding struct {
	dll *windows.LazyDLL

	setSerialCommPort *windows.LazyProc
	init              *windows.LazyProc
	terminate         *windows.LazyProc
	capture           *windows.LazyProc
	match             *windows.LazyProc
	setParameter      *windows.LazyProc
	getDeviceInfo     *windows.LazyProc
	freeString        *windows.LazyProc
	freeByteArray     *windows.LazyProc
}

func openNative(library string) (Binding, error) {
	name := strings.TrimSpace(library)
	if name == "" {
		name = LibraryName + ".dll"
	}
	dll := windows.NewLazyDLL(name)
	if err := dll.Load(); err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	b := &nativeBinding{
		dll:               dll,
		setSerialCommPort: dll.NewProc("CIDBIO_SetSerialCommPort"),
		init:              dll.NewProc("CIDBIO_Init"),
		terminate:         dll.NewProc("CIDBIO_Terminate"),
		capture:           dll.NewProc("CIDBIO_CaptureImageAndTemplate"),
		match:             dll.NewProc("CIDBIO_MatchTemplates"),
		setParameter:      dll.NewProc("CIDBIO_SetParameter"),
		getDeviceInfo:     dll.NewProc("CIDBIO_GetDeviceInfo"),
		freeString:        dll.NewProc("CIDBIO_FreeString"),
		freeByteArray:     dll.NewProc("CIDBIO_FreeByteArray"),
	}
	for _, proc := range []*windows.LazyProc{b.setSerialCommPort, b.init, b.terminate, b.capture, b.match, b.freeString, b.freeByteArray} {
		if err := proc.Find(); err != nil {
			return nil, fmt.Errorf("resolve %s in %s: %w", proc.Name, name, err)
		}
	}
	return b, nil
}

func (b *nativeBinding) Name() string { return b.dll.Name }

func (b *nativeBinding) SetSerialCommPort(port string) Code {
	p, err := windows.BytePtrFromString(port)
	if err != nil {
		return ErrorInvalidArgument
	}
	r, _, _ := b.setSerialCommPort.Call(uintptr(unsafe.Pointer(p)))
	return Code(int32(r))
}

func (b *nativeBinding) Init() Code {
	r, _, _ := b.init.Call()
	return Code(int32(r))
}

func (b *nativeBinding) Terminate() Code {
	r, _, _ := b.terminate.Call()
	return Code(int32(r))
}

func (b *nativeBinding) CaptureImageAndTemplate() (Capture, Code) {
	var (
		tmpl    *byte
		image   *byte
		width   uint32
		height  uint32
		quality int32
	)
	r, _, _ := b.capture.Call(
		uintptr(unsafe.Pointer(&tmpl)),
		uintptr(unsafe.Pointer(&image)),
		uintptr(unsafe.Pointer(&width)),
		uintptr(unsafe.Pointer(&height)),
		uintptr(unsafe.Pointer(&quality)),
	)
	defer b.release(tmpl, image)

	code := Code(int32(r))
	if code != Success {
		return Capture{}, code
	}
	capture := Capture{Quality: int(quality), Width: int(width), Height: int(height)}
	if tmpl != nil {
		capture.Template = []byte(windows.BytePtrToString(tmpl))
	}
	return capture, code
}

func (b *nativeBinding) release(tmpl, image *byte) {
	if tmpl != nil {
		b.freeString.Call(uintptr(unsafe.Pointer(tmpl)))
	}
	if image != nil {
		b.freeByteArray.Call(uintptr(unsafe.Pointer(image)))
	}
}

func (b *nativeBinding) MatchTemplates(stored, live []byte) (int, Code) {
	s, err := windows.BytePtrFromString(string(stored))
	if err != nil {
		return 0, ErrorInvalidTemplate
	}
	l, err := windows.BytePtrFromString(string(live))
	if err != nil {
		return 0, ErrorInvalidTemplate
	}
	var score int32
	r, _, _ := b.match.Call(
		uintptr(unsafe.Pointer(s)),
		uintptr(unsafe.Pointer(l)),
		uintptr(unsafe.Pointer(&score)),
	)
	return int(score), Code(int32(r))
}

func (b *nativeBinding) SetParameter(param Param, value string) Code {
	if b.setParameter.Find() != nil {
		return ErrorUnavailableFeature
	}
	v, err := windows.BytePtrFromString(value)
	if err != nil {
		return ErrorInvalidArgument
	}
	r, _, _ := b.setParameter.Call(uintptr(param), uintptr(unsafe.Pointer(v)))
	return Code(int32(r))
}

func (b *nativeBinding) DeviceInfo() (DeviceInfo, Code) {
	if b.getDeviceInfo.Find() != nil {
		return DeviceInfo{}, ErrorUnavailableFeature
	}
	var version, serial, model *byte
	r, _, _ := b.getDeviceInfo.Call(
		uintptr(unsafe.Pointer(&version)),
		uintptr(unsafe.Pointer(&serial)),
		uintptr(unsafe.Pointer(&model)),
	)
	defer func() {
		for _, p := range []*byte{version, serial, model} {
			if p != nil {
				b.freeString.Call(uintptr(unsafe.Pointer(p)))
			}
		}
	}()
	code := Code(int32(r))
	if code != Success {
		return DeviceInfo{}, code
	}
	info := DeviceInfo{}
	if version != nil {
		info.Version = windows.BytePtrToString(version)
	}
	if serial != nil {
		info.SerialNumber = windows.BytePtrToString(serial)
	}
	if model != nil {
		info.Model = windows.BytePtrToString(model)
	}
	return info, code
}
