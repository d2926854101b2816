package assistant

import (
	"testing"

	"voicecmd/pkg/asr"
	"voicecmd/pkg/command"
	"voicecmd/pkg/nlu"
)

func helpRegistry() *command.Registry {
	reg := command.NewRegistry()
	reg.RegisterSimple("show_help", []string{"Show Help", "help", "what can I say"}, command.HandlerFunc(func(ctx *command.Context) command.Result {
		return command.Success
	}))
	return reg
}

func TestGuidedStrategySuccess(t *testing.T) {
	engine := &fakeASR{guided: []asr.GuidedMatchResult{{
		Success:        true,
		BestMatchIndex: 0,
		BestMatch:      "show help",
		BestScore:      0.9,
	}}}

	s := NewGuidedStrategy(engine, helpRegistry())
	result := s.Recognize(nil)

	if !result.Success {
		t.Fatalf("recognize failed: %s", result.Error)
	}
	if result.CommandName != "show_help" {
		t.Errorf("command = %q", result.CommandName)
	}
	if result.Confidence != 0.9 {
		t.Errorf("confidence = %f", result.Confidence)
	}
	if result.RawTranscript != "show help" {
		t.Errorf("transcript = %q", result.RawTranscript)
	}
	if len(result.Params) != 0 {
		t.Errorf("guided recognition produced params: %v", result.Params)
	}
	if result.NLUTimeMs != 0 {
		t.Errorf("nlu time = %d", result.NLUTimeMs)
	}

	// Phrases handed to the engine are lowercased, in registry order.
	want := []string{"show help", "help", "what can i say"}
	if len(engine.lastPhrases) != len(want) {
		t.Fatalf("phrases = %v", engine.lastPhrases)
	}
	for i := range want {
		if engine.lastPhrases[i] != want[i] {
			t.Errorf("phrase[%d] = %q, want %q", i, engine.lastPhrases[i], want[i])
		}
	}
}

func TestGuidedStrategyLowConfidence(t *testing.T) {
	engine := &fakeASR{guided: []asr.GuidedMatchResult{{
		Success:        true,
		BestMatchIndex: 0,
		BestMatch:      "show help",
		BestScore:      0.2,
	}}}

	s := NewGuidedStrategy(engine, helpRegistry())
	result := s.Recognize(nil)
	if result.Success {
		t.Error("expected rejection below threshold")
	}
	if result.Error != "confidence below threshold" {
		t.Errorf("error = %q", result.Error)
	}
}

func TestGuidedStrategyEmptyRegistry(t *testing.T) {
	s := NewGuidedStrategy(&fakeASR{}, command.NewRegistry())
	result := s.Recognize(nil)
	if result.Success {
		t.Error("expected failure with no phrases")
	}
}

func TestGuidedStrategyPicksUpRegistryChanges(t *testing.T) {
	reg := command.NewRegistry()
	engine := &fakeASR{guided: []asr.GuidedMatchResult{{
		Success:   true,
		BestMatch: "lights on",
		BestScore: 0.8,
	}}}

	s := NewGuidedStrategy(engine, reg)

	// Registered after strategy construction.
	reg.RegisterSimple("lights_on", []string{"lights on"}, command.HandlerFunc(func(ctx *command.Context) command.Result {
		return command.Success
	}))

	result := s.Recognize(nil)
	if !result.Success || result.CommandName != "lights_on" {
		t.Errorf("result = %+v", result)
	}
}

func TestNLUStrategySuccess(t *testing.T) {
	reg := command.NewRegistry()
	reg.Register(command.Descriptor{
		Name:           "zoom_to",
		TriggerPhrases: []string{"zoom to"},
		Parameters: []command.ParamDescriptor{
			{Name: "level", Type: command.TypeInteger, Required: true},
		},
	}, command.HandlerFunc(func(ctx *command.Context) command.Result {
		return command.Success
	}))

	engine := &fakeASR{transcripts: []asr.TranscriptionResult{{
		Success:    true,
		Text:       "zoom to 15",
		LogprobMin: -0.1,
		NumTokens:  4,
	}}}

	s := NewNLUStrategy(engine, &fakeNLU{}, reg)
	result := s.Recognize(nil)

	if !result.Success {
		t.Fatalf("recognize failed: %s", result.Error)
	}
	if result.CommandName != "zoom_to" {
		t.Errorf("command = %q", result.CommandName)
	}
	if result.Params["level"] != "15" {
		t.Errorf("params = %v", result.Params)
	}
	if result.RawTranscript != "zoom to 15" {
		t.Errorf("transcript = %q", result.RawTranscript)
	}
}

func TestNLUStrategyTranscriptionFailure(t *testing.T) {
	engine := &fakeASR{transcripts: []asr.TranscriptionResult{{
		Error: "backend unavailable",
	}}}

	s := NewNLUStrategy(engine, &fakeNLU{}, helpRegistry())
	result := s.Recognize(nil)
	if result.Success {
		t.Error("expected failure")
	}
	if result.RawTranscript != "" {
		t.Errorf("transcript = %q", result.RawTranscript)
	}
}

func TestNLUStrategyLowNLUConfidence(t *testing.T) {
	engine := &fakeASR{transcripts: []asr.TranscriptionResult{{
		Success:   true,
		Text:      "mumble mumble",
		NumTokens: 2,
	}}}

	s := NewNLUStrategy(engine, &fakeNLU{result: &nlu.Result{
		Success:     true,
		CommandName: "show_help",
		Confidence:  0.1,
	}}, helpRegistry())

	result := s.Recognize(nil)
	if result.Success {
		t.Error("expected rejection below nlu threshold")
	}
	// The transcript survives so the host can report it.
	if result.RawTranscript != "mumble mumble" {
		t.Errorf("transcript = %q", result.RawTranscript)
	}
}

func TestNLUStrategyEmptyRegistry(t *testing.T) {
	engine := &fakeASR{transcripts: []asr.TranscriptionResult{{
		Success:   true,
		Text:      "anything",
		NumTokens: 1,
	}}}

	s := NewNLUStrategy(engine, &fakeNLU{}, command.NewRegistry())
	result := s.Recognize(nil)
	if result.Success {
		t.Error("expected failure with no schemas")
	}
}
