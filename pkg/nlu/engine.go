// Package nlu maps free-form transcripts onto registered command
// schemas: intent classification plus raw parameter extraction.
package nlu

import "voicecmd/pkg/command"

// Result of processing one transcript.
type Result struct {
	Success     bool
	CommandName string
	Confidence  float32

	// Params carries extracted values as raw strings; typing and
	// validation happen at dispatch.
	Params map[string]string

	ErrorMessage string
}

// Engine classifies a transcript against command schemas.
type Engine interface {
	Init() error
	Process(transcript string, schemas []command.Descriptor) Result
	Name() string
}
