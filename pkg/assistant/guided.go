package assistant

import (
	"strings"
	"time"

	"voicecmd/pkg/asr"
	"voicecmd/pkg/command"
)

// DefaultGuidedMinConfidence is the score below which a guided match
// is rejected.
const DefaultGuidedMinConfidence = 0.3

// GuidedStrategy scores audio against every registered trigger phrase
// and maps the winning phrase back to its command. Best for small
// sets of simple commands where latency matters.
type GuidedStrategy struct {
	engine        asr.Engine
	registry      *command.Registry
	minConfidence float32

	phraseToCommand map[string]string
	phrases         []string
}

func NewGuidedStrategy(engine asr.Engine, registry *command.Registry) *GuidedStrategy {
	s := &GuidedStrategy{
		engine:        engine,
		registry:      registry,
		minConfidence: DefaultGuidedMinConfidence,
	}
	s.buildPhraseMap()
	return s
}

func (s *GuidedStrategy) SetMinConfidence(threshold float32) {
	s.minConfidence = threshold
}

func (s *GuidedStrategy) Name() string { return "guided" }

// buildPhraseMap flattens the registry's trigger phrases, lowercased,
// in registry iteration order.
func (s *GuidedStrategy) buildPhraseMap() {
	s.phraseToCommand = make(map[string]string)
	s.phrases = s.phrases[:0]

	for _, descriptor := range s.registry.AllDescriptors() {
		for _, phrase := range descriptor.TriggerPhrases {
			lower := strings.ToLower(phrase)
			s.phraseToCommand[lower] = descriptor.Name
			s.phrases = append(s.phrases, lower)
		}
	}
}

func (s *GuidedStrategy) Recognize(samples []float32) RecognitionResult {
	totalStart := time.Now()
	var result RecognitionResult

	if s.engine == nil || !s.engine.IsInitialized() {
		result.Error = "asr engine not initialized"
		return result
	}

	// Pick up any registry changes since the last utterance.
	s.buildPhraseMap()

	if len(s.phrases) == 0 {
		result.Error = "no trigger phrases registered"
		result.TotalTimeMs = time.Since(totalStart).Milliseconds()
		return result
	}

	asrStart := time.Now()
	match := s.engine.GuidedMatch(samples, s.phrases)
	result.ASRTimeMs = time.Since(asrStart).Milliseconds()

	if !match.Success {
		result.Error = match.Error
		result.TotalTimeMs = time.Since(totalStart).Milliseconds()
		return result
	}

	if match.BestScore < s.minConfidence {
		result.Error = "confidence below threshold"
		result.TotalTimeMs = time.Since(totalStart).Milliseconds()
		return result
	}

	name, ok := s.phraseToCommand[strings.ToLower(match.BestMatch)]
	if !ok {
		result.Error = "matched phrase not found in mapping"
		result.TotalTimeMs = time.Since(totalStart).Milliseconds()
		return result
	}

	result.Success = true
	result.CommandName = name
	result.Confidence = match.BestScore
	result.RawTranscript = match.BestMatch
	result.TotalTimeMs = time.Since(totalStart).Milliseconds()
	return result
}
