package asr

import (
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"strings"
	"time"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperOptions tune local inference. Zero values mean whisper
// defaults.
type WhisperOptions struct {
	Language      string // "auto", "en", ... ; empty means auto
	TranslateToEn bool
	Threads       int // <=0 uses NumCPU
	InitialPrompt string
	BeamSize      int // >0 enables beam search
}

// WhisperEngine runs whisper.cpp locally through the Go bindings.
// Guided matching is synthesized from a transcription pass, since the
// bindings expose no logit-level scoring.
type WhisperEngine struct {
	model whisper.Model
	opts  WhisperOptions
}

func NewWhisperEngine(modelPath string, opts WhisperOptions) (*WhisperEngine, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	if opts.Language == "" {
		opts.Language = "auto"
	}

	return &WhisperEngine{model: model, opts: opts}, nil
}

func (e *WhisperEngine) Name() string { return "whisper_local" }

func (e *WhisperEngine) IsInitialized() bool { return e.model != nil }

func (e *WhisperEngine) Shutdown() {
	if e.model != nil {
		e.model.Close()
		e.model = nil
	}
}

func (e *WhisperEngine) Transcribe(samples []float32) TranscriptionResult {
	start := time.Now()
	var result TranscriptionResult

	if e.model == nil {
		result.Error = "engine not initialized"
		return result
	}
	if len(samples) == 0 {
		result.Error = "no audio samples provided"
		return result
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		result.Error = fmt.Sprintf("new context: %v", err)
		return result
	}

	if err := wctx.SetLanguage(e.opts.Language); err != nil {
		result.Error = fmt.Sprintf("set language: %v", err)
		return result
	}
	wctx.SetTranslate(e.opts.TranslateToEn)

	threads := e.opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if e.opts.InitialPrompt != "" {
		wctx.SetInitialPrompt(e.opts.InitialPrompt)
	}
	if e.opts.BeamSize > 0 {
		wctx.SetBeamSize(e.opts.BeamSize)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		result.Error = fmt.Sprintf("process: %v", err)
		result.ProcessingTimeMs = time.Since(start).Milliseconds()
		return result
	}

	var text strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Error = fmt.Sprintf("next segment: %v", err)
			result.ProcessingTimeMs = time.Since(start).Milliseconds()
			return result
		}

		for _, token := range segment.Tokens {
			p := float64(token.P)
			if p < 1e-10 {
				p = 1e-10
			}
			lp := float32(math.Log(p))
			if result.NumTokens == 0 || lp < result.LogprobMin {
				result.LogprobMin = lp
			}
			result.LogprobSum += lp
			result.NumTokens++
		}

		if text.Len() > 0 {
			text.WriteString(" ")
		}
		text.WriteString(strings.TrimSpace(segment.Text))
	}

	result.Success = true
	result.Text = strings.TrimSpace(text.String())
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result
}

func (e *WhisperEngine) GuidedMatch(samples []float32, phrases []string) GuidedMatchResult {
	start := time.Now()

	transcription := e.Transcribe(samples)
	if !transcription.Success {
		return GuidedMatchResult{
			BestMatchIndex:   -1,
			Error:            transcription.Error,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		}
	}

	result := guidedFromTranscript(transcription.Text, phrases)
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result
}
