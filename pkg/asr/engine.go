// Package asr abstracts speech-to-text backends. Engines consume mono
// float32 PCM at 16 kHz, the rate whisper-family models expect.
package asr

import (
	"strings"

	"voicecmd/pkg/nlu"
)

// SampleRate every engine consumes, in Hz.
const SampleRate = 16000

// TranscriptionResult of a free-form speech-to-text run.
type TranscriptionResult struct {
	Success bool

	// Text is the transcribed text, trimmed.
	Text string

	// LogprobMin is the minimum token log probability, a cheap
	// confidence signal. Zero when the backend reports no tokens.
	LogprobMin float32
	LogprobSum float32
	NumTokens  int

	ProcessingTimeMs int64
	Error            string
}

// GuidedMatchResult scores audio against a fixed list of phrases.
type GuidedMatchResult struct {
	Success bool

	// BestMatchIndex into the input phrase list, -1 when nothing
	// matched.
	BestMatchIndex int
	BestMatch      string

	// BestScore in [0, 1].
	BestScore float32

	// AllScores in input order.
	AllScores []float32

	ProcessingTimeMs int64
	Error            string
}

// Engine is a speech-to-text backend. A single engine instance is not
// safe for concurrent inference unless documented otherwise.
type Engine interface {
	// Transcribe runs general speech-to-text.
	Transcribe(samples []float32) TranscriptionResult

	// GuidedMatch scores how well the audio matches each phrase.
	// Backends without a native guided mode synthesize the result by
	// transcribing and scoring each phrase against the transcript.
	GuidedMatch(samples []float32, phrases []string) GuidedMatchResult

	IsInitialized() bool
	Shutdown()
	Name() string
}

// guidedFromTranscript synthesizes a guided match by scoring the
// transcript against each phrase with the same edit-distance
// similarity the NLU intent matcher uses.
func guidedFromTranscript(text string, phrases []string) GuidedMatchResult {
	result := GuidedMatchResult{
		BestMatchIndex: -1,
		AllScores:      make([]float32, len(phrases)),
	}

	if len(phrases) == 0 {
		result.Error = "no phrases provided"
		return result
	}

	normalized := nlu.Normalize(text)
	for i, phrase := range phrases {
		score := nlu.Similarity(normalized, strings.ToLower(strings.TrimSpace(phrase)))
		result.AllScores[i] = score
		if result.BestMatchIndex < 0 || score > result.BestScore {
			result.BestMatchIndex = i
			result.BestMatch = phrase
			result.BestScore = score
		}
	}

	result.Success = true
	return result
}
