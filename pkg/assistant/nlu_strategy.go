package assistant

import (
	"math"
	"time"

	"voicecmd/pkg/asr"
	"voicecmd/pkg/command"
	"voicecmd/pkg/nlu"
)

// DefaultNLUMinConfidence is the NLU score below which recognition is
// rejected.
const DefaultNLUMinConfidence = 0.3

// NLUStrategy transcribes the utterance and runs the NLU engine over
// the registry's schemas. Required whenever commands carry
// parameters.
type NLUStrategy struct {
	engine   asr.Engine
	nlu      nlu.Engine
	registry *command.Registry

	minTranscriptionConfidence float32
	minNLUConfidence           float32
}

func NewNLUStrategy(engine asr.Engine, nluEngine nlu.Engine, registry *command.Registry) *NLUStrategy {
	return &NLUStrategy{
		engine:           engine,
		nlu:              nluEngine,
		registry:         registry,
		minNLUConfidence: DefaultNLUMinConfidence,
	}
}

func (s *NLUStrategy) SetMinTranscriptionConfidence(threshold float32) {
	s.minTranscriptionConfidence = threshold
}

func (s *NLUStrategy) SetMinNLUConfidence(threshold float32) {
	s.minNLUConfidence = threshold
}

func (s *NLUStrategy) Name() string { return "nlu" }

func (s *NLUStrategy) Recognize(samples []float32) RecognitionResult {
	totalStart := time.Now()
	var result RecognitionResult

	if s.engine == nil || !s.engine.IsInitialized() {
		result.Error = "asr engine not initialized"
		return result
	}
	if s.nlu == nil {
		result.Error = "nlu engine not available"
		return result
	}

	asrStart := time.Now()
	transcription := s.engine.Transcribe(samples)
	result.ASRTimeMs = time.Since(asrStart).Milliseconds()

	if !transcription.Success {
		result.Error = "transcription failed: " + transcription.Error
		result.TotalTimeMs = time.Since(totalStart).Milliseconds()
		return result
	}
	if transcription.Text == "" {
		result.Error = "empty transcription"
		result.TotalTimeMs = time.Since(totalStart).Milliseconds()
		return result
	}

	// exp(logprob_min) approximates the weakest token's probability.
	var confidence float32
	if transcription.NumTokens > 0 {
		confidence = float32(math.Exp(float64(transcription.LogprobMin)))
	}
	if confidence < s.minTranscriptionConfidence {
		result.Error = "transcription confidence below threshold"
		result.TotalTimeMs = time.Since(totalStart).Milliseconds()
		return result
	}

	result.RawTranscript = transcription.Text

	schemas := s.registry.AllDescriptors()
	if len(schemas) == 0 {
		result.Error = "no commands registered"
		result.TotalTimeMs = time.Since(totalStart).Milliseconds()
		return result
	}

	nluStart := time.Now()
	nluResult := s.nlu.Process(transcription.Text, schemas)
	result.NLUTimeMs = time.Since(nluStart).Milliseconds()

	if !nluResult.Success {
		result.Error = "nlu processing failed: " + nluResult.ErrorMessage
		result.TotalTimeMs = time.Since(totalStart).Milliseconds()
		return result
	}

	if nluResult.Confidence < s.minNLUConfidence {
		result.Error = "nlu confidence below threshold"
		result.TotalTimeMs = time.Since(totalStart).Milliseconds()
		return result
	}

	result.Success = true
	result.CommandName = nluResult.CommandName
	result.Confidence = nluResult.Confidence
	result.Params = nluResult.Params
	result.TotalTimeMs = time.Since(totalStart).Milliseconds()
	return result
}
