package assistant

import (
	"strings"
	"sync"
	"sync/atomic"

	"voicecmd/pkg/asr"
	"voicecmd/pkg/audio"
	"voicecmd/pkg/command"
	"voicecmd/pkg/nlu"
)

// fakeASR scripts transcription and guided-match replies.
type fakeASR struct {
	mu sync.Mutex

	transcripts []asr.TranscriptionResult
	guided      []asr.GuidedMatchResult

	transcribeCalls int
	guidedCalls     int
	lastPhrases     []string
}

func (f *fakeASR) Transcribe(samples []float32) asr.TranscriptionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcribeCalls++
	if len(f.transcripts) == 0 {
		return asr.TranscriptionResult{Error: "no scripted transcription"}
	}
	result := f.transcripts[0]
	if len(f.transcripts) > 1 {
		f.transcripts = f.transcripts[1:]
	}
	return result
}

func (f *fakeASR) GuidedMatch(samples []float32, phrases []string) asr.GuidedMatchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guidedCalls++
	f.lastPhrases = append([]string(nil), phrases...)
	if len(f.guided) == 0 {
		return asr.GuidedMatchResult{BestMatchIndex: -1, Error: "no scripted match"}
	}
	result := f.guided[0]
	if len(f.guided) > 1 {
		f.guided = f.guided[1:]
	}
	return result
}

func (f *fakeASR) IsInitialized() bool { return true }
func (f *fakeASR) Shutdown()           {}
func (f *fakeASR) Name() string        { return "fake_asr" }

// blockingASR parks guided matches until release is closed, to stall
// the consumer in backpressure tests.
type blockingASR struct {
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingASR) Transcribe(samples []float32) asr.TranscriptionResult {
	return asr.TranscriptionResult{Error: "not scripted"}
}

func (b *blockingASR) GuidedMatch(samples []float32, phrases []string) asr.GuidedMatchResult {
	b.calls.Add(1)
	<-b.release
	return asr.GuidedMatchResult{
		Success:        true,
		BestMatchIndex: 0,
		BestMatch:      "show help",
		BestScore:      0.9,
	}
}

func (b *blockingASR) IsInitialized() bool { return true }
func (b *blockingASR) Shutdown()           {}
func (b *blockingASR) Name() string        { return "blocking_asr" }

// fakeNLU returns a fixed result or delegates to the rule engine.
type fakeNLU struct {
	result *nlu.Result
	rule   *nlu.RuleEngine
}

func (f *fakeNLU) Init() error { return nil }

func (f *fakeNLU) Process(transcript string, schemas []command.Descriptor) nlu.Result {
	if f.result != nil {
		return *f.result
	}
	if f.rule == nil {
		f.rule = nlu.NewRuleEngine()
	}
	return f.rule.Process(transcript, schemas)
}

func (f *fakeNLU) Name() string { return "fake_nlu" }

// fakeCapture serves scripted clips. ClearBuffer advances to the next
// clip, mirroring how the real backend discards consumed audio.
type fakeCapture struct {
	mu      sync.Mutex
	clips   [][]float32
	cur     []float32
	running bool
}

func newFakeCapture(clips ...[]float32) *fakeCapture {
	return &fakeCapture{clips: clips}
}

func (c *fakeCapture) Init(cfg audio.CaptureConfig) error { return nil }

func (c *fakeCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	return nil
}

func (c *fakeCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *fakeCapture) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *fakeCapture) GetAudio(durationMs int) []float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.cur)
	if durationMs > 0 {
		if want := 16000 * durationMs / 1000; want < n {
			n = want
		}
	}
	return append([]float32(nil), c.cur[len(c.cur)-n:]...)
}

func (c *fakeCapture) ClearBuffer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.clips) > 0 {
		c.cur = c.clips[0]
		c.clips = c.clips[1:]
	} else {
		c.cur = nil
	}
	return nil
}

func (c *fakeCapture) SampleRate() int       { return 16000 }
func (c *fakeCapture) BufferDurationMs() int { return 30000 }
func (c *fakeCapture) Shutdown()             {}

// endedSpeech produces a 3s buffer whose tail is silent, so the VAD
// reports end of speech.
func endedSpeech() []float32 {
	samples := make([]float32, 48000)
	for i := 0; i < 32000; i++ {
		samples[i] = 0.5
	}
	for i := 32000; i < len(samples); i++ {
		samples[i] = 0.0001
	}
	return samples
}

// eventLog collects emitted events thread-safely.
type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(entry string) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func (l *eventLog) contains(prefix string) bool {
	for _, e := range l.snapshot() {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}

func (l *eventLog) count(prefix string) int {
	n := 0
	for _, e := range l.snapshot() {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}
