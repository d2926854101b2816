package audio

import (
	"errors"
	"sync/atomic"
	"time"

	"voicecmd/pkg/audioconv"
)

// ReplayCapture feeds a prerecorded clip through the Capture contract.
// It makes pipeline runs reproducible without a microphone: point it
// at a wav/mp3/ogg file (decoded via audioconv) or hand it samples
// directly in tests. With Realtime set, the clip streams into the
// ring in 20ms slices on a wall-clock schedule; otherwise Start
// pushes the whole clip at once.
type ReplayCapture struct {
	cfg      CaptureConfig
	buf      *ring
	pcm      []float32
	realtime bool

	running     atomic.Bool
	done        chan struct{}
	initialized bool
}

func NewReplayCapture(path string, realtime bool) (*ReplayCapture, error) {
	pcm, err := audioconv.DecodeFile(path, audioconv.Options{})
	if err != nil {
		return nil, err
	}
	return &ReplayCapture{pcm: pcm, realtime: realtime}, nil
}

// NewReplayCaptureFromSamples wraps raw 16kHz mono PCM.
func NewReplayCaptureFromSamples(pcm []float32) *ReplayCapture {
	return &ReplayCapture{pcm: pcm}
}

func (c *ReplayCapture) Init(cfg CaptureConfig) error {
	if c.initialized {
		return errors.New("already initialized")
	}
	cfg.applyDefaults()
	c.cfg = cfg
	c.buf = newRing(cfg.SampleRate * cfg.BufferDurationMs / 1000)
	c.initialized = true
	return nil
}

func (c *ReplayCapture) Start() error {
	if !c.initialized {
		return errors.New("not initialized")
	}
	if c.running.Load() {
		return errors.New("already running")
	}

	c.running.Store(true)
	c.done = make(chan struct{})

	if !c.realtime {
		c.buf.push(c.pcm)
		close(c.done)
		return nil
	}

	go c.feedLoop()
	return nil
}

func (c *ReplayCapture) feedLoop() {
	defer close(c.done)

	slice := c.cfg.SampleRate / 50 // 20ms
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for pos := 0; pos < len(c.pcm) && c.running.Load(); pos += slice {
		<-ticker.C
		end := pos + slice
		if end > len(c.pcm) {
			end = len(c.pcm)
		}
		c.buf.push(c.pcm[pos:end])
	}
}

func (c *ReplayCapture) Stop() error {
	if !c.running.Load() {
		return nil
	}
	c.running.Store(false)
	<-c.done
	return nil
}

func (c *ReplayCapture) IsRunning() bool { return c.running.Load() }

func (c *ReplayCapture) GetAudio(durationMs int) []float32 {
	if c.buf == nil {
		return nil
	}
	n := 0
	if durationMs > 0 {
		n = c.cfg.SampleRate * durationMs / 1000
	}
	return c.buf.tail(n)
}

func (c *ReplayCapture) ClearBuffer() error {
	if c.buf == nil {
		return errors.New("not initialized")
	}
	c.buf.clear()
	return nil
}

func (c *ReplayCapture) SampleRate() int { return c.cfg.SampleRate }

func (c *ReplayCapture) BufferDurationMs() int { return c.cfg.BufferDurationMs }

func (c *ReplayCapture) Shutdown() {
	c.Stop()
	c.initialized = false
}
