package assistant

import (
	"fmt"

	"voicecmd/pkg/command"
	"voicecmd/pkg/nlu"
)

// Tester drives the command pipeline from plain text, skipping audio
// and ASR entirely. Useful for developing a command set before any
// microphone is involved.
type Tester struct {
	registry      *command.Registry
	dispatcher    *command.Dispatcher
	engine        nlu.Engine
	minConfidence float32
}

// TestOutcome of processing one transcript.
type TestOutcome struct {
	Recognized      bool
	CommandName     string
	Confidence      float32
	Params          map[string]string
	RawTranscript   string
	ExecutionResult command.Result
	Error           string
}

// NewTester builds a tester around the given NLU engine; nil selects
// the rule-based default.
func NewTester(engine nlu.Engine) (*Tester, error) {
	if engine == nil {
		engine = nlu.NewRuleEngine()
	}
	if err := engine.Init(); err != nil {
		return nil, fmt.Errorf("init nlu engine: %w", err)
	}

	registry := command.NewRegistry()
	return &Tester{
		registry:      registry,
		dispatcher:    command.NewDispatcher(registry),
		engine:        engine,
		minConfidence: nlu.DefaultRuleMinConfidence,
	}, nil
}

func (t *Tester) Registry() *command.Registry {
	return t.registry
}

func (t *Tester) SetMinConfidence(threshold float32) {
	t.minConfidence = threshold
}

// ProcessText runs NLU and dispatch on a transcript as if it had been
// spoken.
func (t *Tester) ProcessText(transcript string) TestOutcome {
	outcome := TestOutcome{RawTranscript: transcript}

	if transcript == "" {
		outcome.Error = "empty transcript"
		return outcome
	}

	schemas := t.registry.AllDescriptors()
	if len(schemas) == 0 {
		outcome.Error = "no commands registered"
		return outcome
	}

	result := t.engine.Process(transcript, schemas)
	if !result.Success {
		outcome.Error = result.ErrorMessage
		return outcome
	}
	if result.Confidence < t.minConfidence {
		outcome.Error = fmt.Sprintf("confidence below threshold: %.2f < %.2f", result.Confidence, t.minConfidence)
		return outcome
	}

	outcome.Recognized = true
	outcome.CommandName = result.CommandName
	outcome.Confidence = result.Confidence
	outcome.Params = result.Params

	ctx := command.NewContext()
	ctx.SetRawTranscript(transcript)
	ctx.SetConfidence(result.Confidence)
	for name, value := range result.Params {
		ctx.SetParam(name, command.NewParamValue(value))
	}

	outcome.ExecutionResult = t.dispatcher.Dispatch(result.CommandName, ctx)
	return outcome
}

func (t *Tester) ProcessBatch(transcripts []string) []TestOutcome {
	outcomes := make([]TestOutcome, 0, len(transcripts))
	for _, transcript := range transcripts {
		outcomes = append(outcomes, t.ProcessText(transcript))
	}
	return outcomes
}
