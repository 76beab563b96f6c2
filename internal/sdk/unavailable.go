package sdk

// Unavailable stands in for the vendor library on builds without a native
// binding. Every call reports ErrorNoDevice.
type Unavailable struct {
	Reason string
}

func (u Unavailable) SetSerialCommPort(string) Code { return ErrorNoDevice }

func (u Unavailable) Init() Code { return ErrorNoDevice }

func (u Unavailable) Terminate() Code { return Success }

func (u Unavailable) CaptureImageAndTemplate() (Capture, Code) { return Capture{}, ErrorNoDevice }

func (u Unavailable) MatchTemplates([]byte, []byte) (int, Code) { return 0, ErrorNoDevice }

func (u Unavailable) SetParameter(Param, string) Code { return ErrorNoDevice }

func (u Unavailable) DeviceInfo() (DeviceInfo, Code) { return DeviceInfo{}, ErrorNoDevice }

func (u Unavailable) Name() string {
	if u.Reason == "" {
		return "unavailable"
	}
	return "unavailable: " + u.Reason
}
