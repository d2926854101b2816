package assistant

import "voicecmd/pkg/command"

// Events carries the observable callbacks. Any field may be nil.
// Callbacks run on the assistant's goroutines and are invoked outside
// all internal locks, so a handler may re-enter the library, e.g. to
// register another command.
type Events struct {
	// SpeechDetected fires when the VAD reports an utterance ended,
	// before recognition runs.
	SpeechDetected func()

	// WakeWordDetected fires when the wake phrase was matched.
	WakeWordDetected func()

	// CaptureStarted / CaptureEnded frame a push-to-talk capture.
	CaptureStarted func()
	CaptureEnded   func()

	ListeningStateChanged func(oldState, newState State)

	// CommandExecuted fires after dispatch, whatever the result.
	CommandExecuted func(name string, result command.Result, ctx *command.Context)

	// Unrecognized fires when speech produced a transcript that
	// matched no command.
	Unrecognized func(transcript string)

	// Error fires for recognition failures without a transcript.
	Error func(message string)
}
