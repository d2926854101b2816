// Package assistant couples an audio capture backend to the command
// recognition pipeline: schema registry, recognition strategy,
// dispatcher, and the listening state machine that decides when an
// utterance is ready.
package assistant

import (
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"voicecmd/pkg/asr"
	"voicecmd/pkg/audio"
	"voicecmd/pkg/command"
	"voicecmd/pkg/nlu"
)

// Assistant is the orchestrator. A ticker goroutine polls the capture
// backend and runs the listening state machine; finished utterances go
// through a bounded queue to a consumer goroutine that recognizes,
// dispatches, and emits events.
//
// All public methods are safe to call from any goroutine. Events and
// command handlers run on the consumer goroutine.
type Assistant struct {
	cfg Config

	capture audio.Capture
	asr     asr.Engine
	nlu     nlu.Engine // nil means guided recognition only
	vad     *audio.VAD

	registry   *command.Registry
	dispatcher *command.Dispatcher

	strategyMu sync.Mutex
	strategy   Strategy

	queueMu   sync.Mutex
	queueCond *sync.Cond
	queue     [][]float32

	running atomic.Bool
	state   atomic.Int32

	// ctrlMu serializes Start/Stop and the push-to-talk transitions.
	ctrlMu       sync.Mutex
	captureStart time.Time
	stopTicker   chan struct{}
	wg           sync.WaitGroup

	// wakeDeadline is touched only by the ticker goroutine.
	wakeDeadline time.Time

	eventsMu sync.Mutex
	events   Events
}

// New wires the assistant. The capture backend and the ASR engine are
// injected and must outlive the assistant; the NLU engine may be nil
// when only guided recognition is wanted. The NLU engine is
// initialized here.
func New(capture audio.Capture, asrEngine asr.Engine, nluEngine nlu.Engine, cfg Config) (*Assistant, error) {
	if capture == nil {
		return nil, errors.New("no capture backend")
	}
	if asrEngine == nil {
		return nil, errors.New("no asr engine")
	}

	cfg.applyDefaults()

	if nluEngine != nil {
		if err := nluEngine.Init(); err != nil {
			return nil, fmt.Errorf("init nlu engine: %w", err)
		}
	}

	registry := command.NewRegistry()

	a := &Assistant{
		cfg:        cfg,
		capture:    capture,
		asr:        asrEngine,
		nlu:        nluEngine,
		vad:        audio.NewVAD(cfg.VAD),
		registry:   registry,
		dispatcher: command.NewDispatcher(registry),
	}
	a.queueCond = sync.NewCond(&a.queueMu)
	a.state.Store(int32(StateIdle))
	return a, nil
}

// Registry for command registration. Commands may be registered any
// time between New and Start; unregistration is allowed while
// running.
func (a *Assistant) Registry() *command.Registry {
	return a.registry
}

func (a *Assistant) SetEvents(events Events) {
	a.eventsMu.Lock()
	a.events = events
	a.eventsMu.Unlock()
}

func (a *Assistant) Config() Config { return a.cfg }

func (a *Assistant) State() State {
	return State(a.state.Load())
}

func (a *Assistant) IsRunning() bool {
	return a.running.Load()
}

// Start selects the recognition strategy, starts the capture backend,
// and launches the ticker and consumer goroutines.
func (a *Assistant) Start() error {
	a.ctrlMu.Lock()
	defer a.ctrlMu.Unlock()

	if a.running.Load() {
		return errors.New("already running")
	}

	if a.cfg.ListeningMode == ModeWakeWord && strings.TrimSpace(a.cfg.WakeWord) == "" {
		return errors.New("wake word mode requires a wake word")
	}

	a.selectStrategy()

	if err := a.capture.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	a.running.Store(true)

	if a.cfg.ListeningMode == ModePushToTalk {
		a.setState(StateIdle)
	} else {
		a.setState(StateListening)
	}

	a.stopTicker = make(chan struct{})
	a.wg.Add(2)
	go a.tickerLoop()
	go a.consumerLoop()

	log.Info("assistant started",
		"mode", a.cfg.ListeningMode.String(),
		"strategy", a.currentStrategy().Name())
	return nil
}

// Stop shuts the pipeline down: the ticker stops, the consumer is
// woken and joined, capture stops, and queued-but-unprocessed
// utterances are discarded without dispatching. In-flight ASR/NLU
// calls are not interrupted; Stop waits for them. After Stop returns
// no further events are emitted.
func (a *Assistant) Stop() {
	a.ctrlMu.Lock()
	defer a.ctrlMu.Unlock()

	if !a.running.Load() {
		return
	}

	a.running.Store(false)
	close(a.stopTicker)
	a.queueCond.Broadcast()
	a.wg.Wait()

	if err := a.capture.Stop(); err != nil {
		log.Warn("stop capture failed", "err", err)
	}

	a.queueMu.Lock()
	dropped := len(a.queue)
	a.queue = nil
	a.queueMu.Unlock()
	if dropped > 0 {
		log.Debug("discarded queued utterances on stop", "count", dropped)
	}

	a.setState(StateIdle)
	log.Info("assistant stopped")
}

// StartCapture begins a push-to-talk capture. Valid only while
// running in ModePushToTalk from StateIdle; otherwise returns false
// with no side effects.
func (a *Assistant) StartCapture() bool {
	a.ctrlMu.Lock()
	defer a.ctrlMu.Unlock()

	if !a.running.Load() || a.cfg.ListeningMode != ModePushToTalk {
		return false
	}
	if State(a.state.Load()) != StateIdle {
		return false
	}

	a.capture.ClearBuffer()
	a.captureStart = time.Now()
	a.setState(StateCapturing)
	a.emitCaptureStarted()
	return true
}

// StopCapture ends a push-to-talk capture and queues the captured
// audio. Valid only from StateCapturing; otherwise returns false with
// no side effects.
func (a *Assistant) StopCapture() bool {
	a.ctrlMu.Lock()
	defer a.ctrlMu.Unlock()

	if !a.running.Load() || a.cfg.ListeningMode != ModePushToTalk {
		return false
	}
	if State(a.state.Load()) != StateCapturing {
		return false
	}

	durationMs := int(time.Since(a.captureStart).Milliseconds())
	if durationMs > 0 {
		a.enqueue(a.capture.GetAudio(durationMs))
	}
	a.capture.ClearBuffer()
	a.setState(StateIdle)
	a.emitCaptureEnded()
	return true
}

func (a *Assistant) IsCapturing() bool {
	return State(a.state.Load()) == StateCapturing
}

// SetForceNLUStrategy flips the strategy override and reselects
// immediately when running.
func (a *Assistant) SetForceNLUStrategy(force bool) {
	a.ctrlMu.Lock()
	a.cfg.ForceNLUStrategy = force
	running := a.running.Load()
	a.ctrlMu.Unlock()

	if running {
		a.selectStrategy()
	}
}

// selectStrategy applies the selection rule: forced NLU wins when an
// NLU engine exists; otherwise auto-selection picks NLU exactly when
// the registry holds a parameterized command; otherwise guided.
func (a *Assistant) selectStrategy() {
	useNLU := a.cfg.ForceNLUStrategy
	if !useNLU && a.cfg.AutoSelectStrategy {
		useNLU = a.registry.HasParameterizedCommands()
	}

	var strategy Strategy
	if useNLU && a.nlu != nil {
		s := NewNLUStrategy(a.asr, a.nlu, a.registry)
		s.SetMinNLUConfidence(a.cfg.NLUMinConfidence)
		s.SetMinTranscriptionConfidence(a.cfg.MinTranscriptionConfidence)
		strategy = s
	} else {
		s := NewGuidedStrategy(a.asr, a.registry)
		s.SetMinConfidence(a.cfg.GuidedMinConfidence)
		strategy = s
	}

	a.strategyMu.Lock()
	a.strategy = strategy
	a.strategyMu.Unlock()
	log.Debug("strategy selected", "strategy", strategy.Name())
}

func (a *Assistant) currentStrategy() Strategy {
	a.strategyMu.Lock()
	defer a.strategyMu.Unlock()
	return a.strategy
}

func (a *Assistant) tickerLoop() {
	defer a.wg.Done()

	// Let the device settle before the first poll.
	a.capture.ClearBuffer()

	ticker := time.NewTicker(time.Duration(a.cfg.PollIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopTicker:
			return
		case <-ticker.C:
		}
		if !a.running.Load() {
			return
		}

		switch a.cfg.ListeningMode {
		case ModeContinuous:
			a.tickContinuous()
		case ModeWakeWord:
			a.tickWakeWord()
		case ModePushToTalk:
			// Host-driven via StartCapture/StopCapture.
		}
	}
}

func (a *Assistant) tickContinuous() {
	samples := a.capture.GetAudio(a.cfg.VADCheckDurationMs)
	if !a.vad.Detect(samples).SpeechEnded {
		return
	}

	a.emitSpeechDetected()
	a.enqueue(a.capture.GetAudio(a.cfg.CommandCaptureDurationMs))
	a.capture.ClearBuffer()
}

func (a *Assistant) tickWakeWord() {
	switch State(a.state.Load()) {
	case StateListening:
		samples := a.capture.GetAudio(a.cfg.VADCheckDurationMs)
		if !a.vad.Detect(samples).SpeechEnded {
			return
		}

		utterance := a.capture.GetAudio(a.cfg.CommandCaptureDurationMs)
		a.capture.ClearBuffer()

		match := a.asr.GuidedMatch(utterance, []string{a.cfg.WakeWord})
		if !match.Success || match.BestScore < a.cfg.WakeWordConfidence {
			return
		}

		a.wakeDeadline = time.Now().Add(time.Duration(a.cfg.WakeWordTimeoutMs) * time.Millisecond)
		a.setState(StateWakeWordActive)
		a.emitWakeWordDetected()

	case StateWakeWordActive:
		if time.Now().After(a.wakeDeadline) {
			a.setState(StateListening)
			return
		}

		samples := a.capture.GetAudio(a.cfg.VADCheckDurationMs)
		if !a.vad.Detect(samples).SpeechEnded {
			return
		}

		a.emitSpeechDetected()
		a.enqueue(a.capture.GetAudio(a.cfg.CommandCaptureDurationMs))
		a.capture.ClearBuffer()
		a.setState(StateListening)
	}
}

// enqueue pushes an utterance unless the queue is at MaxQueueDepth,
// in which case the newest buffer is dropped with a warning and the
// producer does not block.
func (a *Assistant) enqueue(samples []float32) {
	if len(samples) == 0 {
		return
	}

	a.queueMu.Lock()
	if len(a.queue) >= a.cfg.MaxQueueDepth {
		a.queueMu.Unlock()
		log.Warn("audio queue full, dropping utterance", "depth", a.cfg.MaxQueueDepth)
		return
	}
	a.queue = append(a.queue, samples)
	a.queueMu.Unlock()
	a.queueCond.Signal()
}

func (a *Assistant) consumerLoop() {
	defer a.wg.Done()

	for {
		a.queueMu.Lock()
		for len(a.queue) == 0 && a.running.Load() {
			a.queueCond.Wait()
		}
		if !a.running.Load() {
			a.queueMu.Unlock()
			return
		}
		samples := a.queue[0]
		a.queue = a.queue[1:]
		a.queueMu.Unlock()

		a.processUtterance(samples)
	}
}

// processUtterance runs the strategy and emits exactly one of
// CommandExecuted, Unrecognized, or Error.
func (a *Assistant) processUtterance(samples []float32) {
	strategy := a.currentStrategy()
	if strategy == nil {
		a.emitError("no recognition strategy")
		return
	}

	recognition := strategy.Recognize(samples)

	if !recognition.Success {
		switch {
		case recognition.RawTranscript != "":
			log.Debug("unrecognized speech", "transcript", recognition.RawTranscript)
			a.emitUnrecognized(recognition.RawTranscript)
		case recognition.Error != "":
			log.Debug("recognition error", "err", recognition.Error)
			a.emitError(recognition.Error)
		default:
			a.emitError("recognition failed")
		}
		return
	}

	log.Debug("recognized",
		"command", recognition.CommandName,
		"confidence", recognition.Confidence,
		"asr_ms", recognition.ASRTimeMs,
		"nlu_ms", recognition.NLUTimeMs)

	ctx := command.NewContext()
	ctx.SetRawTranscript(recognition.RawTranscript)
	ctx.SetConfidence(recognition.Confidence)
	for name, value := range recognition.Params {
		ctx.SetParam(name, command.NewParamValue(value))
	}

	result := a.dispatcher.Dispatch(recognition.CommandName, ctx)
	a.emitCommandExecuted(recognition.CommandName, result, ctx)
}

func (a *Assistant) setState(next State) {
	old := State(a.state.Swap(int32(next)))
	if old == next {
		return
	}

	a.eventsMu.Lock()
	f := a.events.ListeningStateChanged
	a.eventsMu.Unlock()
	if f != nil {
		f(old, next)
	}
}

func (a *Assistant) emitSpeechDetected() {
	a.eventsMu.Lock()
	f := a.events.SpeechDetected
	a.eventsMu.Unlock()
	if f != nil {
		f()
	}
}

func (a *Assistant) emitWakeWordDetected() {
	a.eventsMu.Lock()
	f := a.events.WakeWordDetected
	a.eventsMu.Unlock()
	if f != nil {
		f()
	}
}

func (a *Assistant) emitCaptureStarted() {
	a.eventsMu.Lock()
	f := a.events.CaptureStarted
	a.eventsMu.Unlock()
	if f != nil {
		f()
	}
}

func (a *Assistant) emitCaptureEnded() {
	a.eventsMu.Lock()
	f := a.events.CaptureEnded
	a.eventsMu.Unlock()
	if f != nil {
		f()
	}
}

func (a *Assistant) emitCommandExecuted(name string, result command.Result, ctx *command.Context) {
	a.eventsMu.Lock()
	f := a.events.CommandExecuted
	a.eventsMu.Unlock()
	if f != nil {
		f(name, result, ctx)
	}
}

func (a *Assistant) emitUnrecognized(transcript string) {
	a.eventsMu.Lock()
	f := a.events.Unrecognized
	a.eventsMu.Unlock()
	if f != nil {
		f(transcript)
	}
}

func (a *Assistant) emitError(message string) {
	a.eventsMu.Lock()
	f := a.events.Error
	a.eventsMu.Unlock()
	if f != nil {
		f(message)
	}
}
