package audio

import (
	"errors"
	"fmt"
	log "log/slog"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// 20ms frames at 16kHz.
const captureFrameSize = 320

// PortAudioCapture records from an input device into the ring buffer
// using a blocking-read stream on a dedicated goroutine.
type PortAudioCapture struct {
	cfg    CaptureConfig
	buf    *ring
	stream *portaudio.Stream
	frame  []float32

	running     atomic.Bool
	done        chan struct{}
	initialized bool
}

func NewPortAudioCapture() *PortAudioCapture {
	return &PortAudioCapture{}
}

func (c *PortAudioCapture) Init(cfg CaptureConfig) error {
	if c.initialized {
		return errors.New("already initialized")
	}

	cfg.applyDefaults()
	if cfg.Channels != 1 {
		return fmt.Errorf("mono capture only, got %d channels", cfg.Channels)
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}

	c.frame = make([]float32, captureFrameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(cfg.SampleRate), len(c.frame), c.frame)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open stream: %w", err)
	}

	c.cfg = cfg
	c.stream = stream
	c.buf = newRing(cfg.SampleRate * cfg.BufferDurationMs / 1000)
	c.initialized = true
	return nil
}

func (c *PortAudioCapture) Start() error {
	if !c.initialized {
		return errors.New("not initialized")
	}
	if c.running.Load() {
		return errors.New("already running")
	}

	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}

	c.running.Store(true)
	c.done = make(chan struct{})
	go c.readLoop()
	return nil
}

func (c *PortAudioCapture) readLoop() {
	defer close(c.done)

	for c.running.Load() {
		if err := c.stream.Read(); err != nil {
			if c.running.Load() {
				log.Warn("capture read failed", "err", err)
			}
			return
		}
		c.buf.push(c.frame)
	}
}

func (c *PortAudioCapture) Stop() error {
	if !c.running.Load() {
		return nil
	}

	c.running.Store(false)
	err := c.stream.Stop()
	<-c.done

	if err != nil {
		return fmt.Errorf("stop stream: %w", err)
	}
	return nil
}

func (c *PortAudioCapture) IsRunning() bool {
	return c.running.Load()
}

func (c *PortAudioCapture) GetAudio(durationMs int) []float32 {
	if c.buf == nil {
		return nil
	}
	n := 0
	if durationMs > 0 {
		n = c.cfg.SampleRate * durationMs / 1000
	}
	return c.buf.tail(n)
}

func (c *PortAudioCapture) ClearBuffer() error {
	if c.buf == nil {
		return errors.New("not initialized")
	}
	c.buf.clear()
	return nil
}

func (c *PortAudioCapture) SampleRate() int { return c.cfg.SampleRate }

func (c *PortAudioCapture) BufferDurationMs() int { return c.cfg.BufferDurationMs }

func (c *PortAudioCapture) Shutdown() {
	if !c.initialized {
		return
	}

	c.Stop()
	c.stream.Close()
	portaudio.Terminate()
	c.initialized = false
}
