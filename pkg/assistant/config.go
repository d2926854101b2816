package assistant

import "voicecmd/pkg/audio"

// ListeningMode selects how the assistant decides an utterance is
// ready for recognition.
type ListeningMode int

const (
	// ModeContinuous runs the VAD on every poll and captures whenever
	// speech ends.
	ModeContinuous ListeningMode = iota

	// ModeWakeWord requires the wake phrase before a command window
	// opens.
	ModeWakeWord

	// ModePushToTalk captures only between StartCapture and
	// StopCapture.
	ModePushToTalk
)

func (m ListeningMode) String() string {
	switch m {
	case ModeContinuous:
		return "continuous"
	case ModeWakeWord:
		return "wake_word"
	case ModePushToTalk:
		return "push_to_talk"
	}
	return "unknown"
}

// State of the listening state machine.
type State int

const (
	StateIdle State = iota
	StateListening
	StateWakeWordActive
	StateCapturing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateWakeWordActive:
		return "wake_word_active"
	case StateCapturing:
		return "capturing"
	}
	return "unknown"
}

// Config for the assistant. DefaultConfig is the intended base; zero
// durations and depths are replaced with the defaults at New.
type Config struct {
	// VADCheckDurationMs of audio pulled for each VAD poll.
	VADCheckDurationMs int

	// CommandCaptureDurationMs of audio pulled once speech ended.
	CommandCaptureDurationMs int

	// PollIntervalMs between capture polls.
	PollIntervalMs int

	// MaxQueueDepth bounds the utterance queue; overflow drops the
	// newest buffer with a warning.
	MaxQueueDepth int

	// AutoSelectStrategy picks NLU when any parameterized command is
	// registered, guided otherwise.
	AutoSelectStrategy bool

	// ForceNLUStrategy selects NLU even for simple commands, as long
	// as an NLU engine is present.
	ForceNLUStrategy bool

	ListeningMode ListeningMode

	// WakeWord phrase; required in ModeWakeWord.
	WakeWord string

	// WakeWordTimeoutMs to wait for a command after the wake word.
	WakeWordTimeoutMs int

	// WakeWordConfidence is the minimum guided-match score for the
	// wake phrase.
	WakeWordConfidence float32

	VAD audio.VADConfig

	GuidedMinConfidence        float32
	NLUMinConfidence           float32
	MinTranscriptionConfidence float32
}

func DefaultConfig() Config {
	return Config{
		VADCheckDurationMs:       2000,
		CommandCaptureDurationMs: 8000,
		PollIntervalMs:           100,
		MaxQueueDepth:            10,
		AutoSelectStrategy:       true,
		ListeningMode:            ModeContinuous,
		WakeWordTimeoutMs:        5000,
		WakeWordConfidence:       0.5,
		VAD:                      audio.DefaultVADConfig(),
		GuidedMinConfidence:      DefaultGuidedMinConfidence,
		NLUMinConfidence:         DefaultNLUMinConfidence,
	}
}

func (c *Config) applyDefaults() {
	if c.VADCheckDurationMs <= 0 {
		c.VADCheckDurationMs = 2000
	}
	if c.CommandCaptureDurationMs <= 0 {
		c.CommandCaptureDurationMs = 8000
	}
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = 100
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = 10
	}
	if c.WakeWordTimeoutMs <= 0 {
		c.WakeWordTimeoutMs = 5000
	}
	if c.WakeWordConfidence <= 0 {
		c.WakeWordConfidence = 0.5
	}
	if c.VAD.SampleRate <= 0 {
		c.VAD = audio.DefaultVADConfig()
	}
	if c.GuidedMinConfidence <= 0 {
		c.GuidedMinConfidence = DefaultGuidedMinConfidence
	}
	if c.NLUMinConfidence <= 0 {
		c.NLUMinConfidence = DefaultNLUMinConfidence
	}
}
