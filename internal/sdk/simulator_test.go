package sdk

import (
	"reflect"
	"testing"
)

func TestSimulatorInitAndCaptureLifecycle(t *testing.T) {
	sim := NewSimulator()

	if _, code := sim.CaptureImageAndTemplate(); code != ErrorNotInitialized {
		t.Fatalf("capture before init: got %v", code)
	}
	if code := sim.Init(); code != Success {
		t.Fatalf("first init: got %v", code)
	}
	if code := sim.Init(); code != WarningAlreadyInit {
		t.Fatalf("second init: got %v", code)
	}
	capture, code := sim.CaptureImageAndTemplate()
	if code != Success || capture.Quality != 95 || string(capture.Template) != SimulatedTemplate {
		t.Fatalf("unexpected capture %+v code %v", capture, code)
	}
	if score, _ := sim.MatchTemplates(capture.Template, capture.Template); score != 20000 {
		t.Fatalf("identical templates should score 20000, got %d", score)
	}
	sim.Terminate()
	if sim.Initialized() {
		t.Fatal("expected terminated session")
	}

	want := []string{"capture", "init", "init", "capture", "match", "terminate"}
	if got := sim.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

func TestSimulatorScriptedResults(t *testing.T) {
	sim := NewSimulator()
	sim.QueueCaptures(CaptureStep{Code: ErrorCaptureTimeout}, CaptureStep{Quality: 40, NullTemplate: true})
	sim.QueueMatches(MatchStep{Code: ErrorMatching})

	if _, code := sim.CaptureImageAndTemplate(); code != ErrorCaptureTimeout {
		t.Fatalf("expected scripted timeout, got %v", code)
	}
	capture, code := sim.CaptureImageAndTemplate()
	if code != Success || capture.Template != nil {
		t.Fatalf("expected null template with success, got %+v %v", capture, code)
	}
	if _, code := sim.MatchTemplates([]byte("a"), []byte("b")); code != ErrorMatching {
		t.Fatalf("expected scripted match error, got %v", code)
	}
}

func TestSimulatorPortResponses(t *testing.T) {
	sim := NewSimulator()
	sim.SetPortResponse("COM4", Success)

	sim.SetSerialCommPort("COM3")
	if code := sim.Init(); code != ErrorNoDevice {
		t.Fatalf("unlisted port: got %v", code)
	}
	sim.SetSerialCommPort("COM4")
	if code := sim.Init(); code != Success {
		t.Fatalf("listed port: got %v", code)
	}
}
