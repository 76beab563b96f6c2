package sdk

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
)

// SimulatedTemplate is the template a Simulator reads when no capture is
// scripted, so an enrolled simulated user verifies at a perfect score.
const SimulatedTemplate = "SIMULATED-CIDBIO-TEMPLATE"

// CaptureStep scripts one CaptureImageAndTemplate result.
type CaptureStep struct {
	Code     Code
	Quality  int
	Template string
	// NullTemplate returns a Success code with no template.
	NullTemplate bool
}

// MatchStep scripts one MatchTemplates result.
type MatchStep struct {
	Code  Code
	Score int
}

// Simulator is an in-memory Binding. Scripted results are consumed in order;
// once a queue is empty the simulator behaves like a healthy reader.
type Simulator struct {
	mu          sync.Mutex
	initialized bool
	port        string
	initCodes   []Code
	captures    []CaptureStep
	matches     []MatchStep
	scores      map[string]int
	portCodes   map[string]Code
	calls       []string

	inFlight atomic.Int32
	overlaps atomic.Int32

	DefaultQuality int
}

// NewSimulator returns a simulator that reads quality 95 samples.
func NewSimulator() *Simulator {
	return &Simulator{DefaultQuality: 95, scores: map[string]int{}, portCodes: map[string]Code{}}
}

// QueueInit scripts the next Init results.
func (s *Simulator) QueueInit(codes ...Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initCodes = append(s.initCodes, codes...)
}

// QueueCaptures scripts the next capture results.
func (s *Simulator) QueueCaptures(steps ...CaptureStep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures = append(s.captures, steps...)
}

// QueueQualities scripts successful captures with the given qualities. Each
// template is named after its position so callers can tell samples apart.
func (s *Simulator) QueueQualities(qualities ...int) {
	steps := make([]CaptureStep, 0, len(qualities))
	for i, q := range qualities {
		steps = append(steps, CaptureStep{Quality: q, Template: fmt.Sprintf("template-%d-q%d", i+1, q)})
	}
	s.QueueCaptures(steps...)
}

// QueueMatches scripts the next MatchTemplates results.
func (s *Simulator) QueueMatches(steps ...MatchStep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = append(s.matches, steps...)
}

// SetScore fixes the score returned when stored equals template.
func (s *Simulator) SetScore(template string, score int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[template] = score
}

// SetPortResponse makes Init return code while port is selected. Once any
// port response is set, selected ports without one report ErrorNoDevice.
func (s *Simulator) SetPortResponse(port string, code Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portCodes[port] = code
}

// Calls returns the primitive calls made so far, in order.
func (s *Simulator) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Overlaps reports how many calls started while another was in flight.
func (s *Simulator) Overlaps() int { return int(s.overlaps.Load()) }

// Initialized reports the simulated session state.
func (s *Simulator) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Simulator) enter(call string) func() {
	if s.inFlight.Add(1) > 1 {
		s.overlaps.Add(1)
	}
	s.mu.Lock()
	s.calls = append(s.calls, call)
	return func() {
		s.mu.Unlock()
		s.inFlight.Add(-1)
	}
}

func (s *Simulator) Name() string { return "simulator" }

func (s *Simulator) SetSerialCommPort(port string) Code {
	defer s.enter("set_port " + port)()
	s.port = port
	return Success
}

func (s *Simulator) Init() Code {
	defer s.enter("init")()
	var code Code
	switch {
	case len(s.initCodes) > 0:
		code = s.initCodes[0]
		s.initCodes = s.initCodes[1:]
	case len(s.portCodes) > 0 && s.port != "":
		var ok bool
		if code, ok = s.portCodes[s.port]; !ok {
			code = ErrorNoDevice
		}
	case len(s.portCodes) > 0:
		code = ErrorNoDevice
	case s.initialized:
		code = WarningAlreadyInit
	default:
		code = Success
	}
	if code.Ready() {
		s.initialized = true
	}
	return code
}

func (s *Simulator) Terminate() Code {
	defer s.enter("terminate")()
	s.initialized = false
	return Success
}

func (s *Simulator) CaptureImageAndTemplate() (Capture, Code) {
	defer s.enter("capture")()
	if len(s.captures) > 0 {
		step := s.captures[0]
		s.captures = s.captures[1:]
		if step.Code != Success {
			return Capture{}, step.Code
		}
		capture := Capture{Quality: step.Quality, Width: 256, Height: 288}
		if !step.NullTemplate {
			tmpl := step.Template
			if tmpl == "" {
				tmpl = SimulatedTemplate
			}
			capture.Template = []byte(tmpl)
		}
		return capture, Success
	}
	if !s.initialized {
		return Capture{}, ErrorNotInitialized
	}
	return Capture{Template: []byte(SimulatedTemplate), Quality: s.DefaultQuality, Width: 256, Height: 288}, Success
}

func (s *Simulator) MatchTemplates(stored, live []byte) (int, Code) {
	defer s.enter("match")()
	if len(s.matches) > 0 {
		step := s.matches[0]
		s.matches = s.matches[1:]
		return step.Score, step.Code
	}
	if score, ok := s.scores[string(stored)]; ok {
		return score, Success
	}
	if bytes.Equal(stored, live) {
		return 20000, Success
	}
	return 0, Success
}

func (s *Simulator) SetParameter(param Param, value string) Code {
	defer s.enter(fmt.Sprintf("set_parameter %d=%s", param, value))()
	return Success
}

func (s *Simulator) DeviceInfo() (DeviceInfo, Code) {
	defer s.enter("device_info")()
	if !s.initialized {
		return DeviceInfo{}, ErrorNotInitialized
	}
	return DeviceInfo{Version: "sim-1.0", SerialNumber: "SIM0000001", Model: "iDBio (simulated)"}, Success
}
