package audio

import "math"

// VADConfig configures the energy-ratio end-of-speech detector.
type VADConfig struct {
	// WindowMs is the trailing window compared against the whole
	// buffer.
	WindowMs int

	// EnergyThreshold is the ratio below which speech counts as
	// ended: tail energy <= threshold * total energy.
	EnergyThreshold float32

	// FreqThresholdHz is the high-pass cutoff; 0 disables the filter.
	FreqThresholdHz float32

	SampleRate int
}

func DefaultVADConfig() VADConfig {
	return VADConfig{
		WindowMs:        1000,
		EnergyThreshold: 0.6,
		FreqThresholdHz: 100,
		SampleRate:      16000,
	}
}

// VADResult carries the decision plus both energy readings for
// diagnostics.
type VADResult struct {
	SpeechEnded bool
	EnergyAll   float32
	EnergyLast  float32
}

// VAD decides whether an utterance has ended: the mean absolute
// amplitude of the trailing window is compared against the whole
// buffer's. Stateless between calls; the input buffer is never
// modified.
type VAD struct {
	cfg VADConfig
}

func NewVAD(cfg VADConfig) *VAD {
	return &VAD{cfg: cfg}
}

func (v *VAD) Config() VADConfig { return v.cfg }

func (v *VAD) SetConfig(cfg VADConfig) { v.cfg = cfg }

func (v *VAD) Detect(samples []float32) VADResult {
	var result VADResult

	n := len(samples)
	nLast := v.cfg.SampleRate * v.cfg.WindowMs / 1000
	if nLast >= n {
		// Buffer no longer than the window: undecided.
		return result
	}

	work := samples
	if v.cfg.FreqThresholdHz > 0 {
		work = append([]float32(nil), samples...)
		highPass(work, v.cfg.FreqThresholdHz, float32(v.cfg.SampleRate))
	}

	var all, last float64
	for i, s := range work {
		a := math.Abs(float64(s))
		all += a
		if i >= n-nLast {
			last += a
		}
	}

	result.EnergyAll = float32(all / float64(n))
	result.EnergyLast = float32(last / float64(nLast))
	result.SpeechEnded = result.EnergyLast <= v.cfg.EnergyThreshold*result.EnergyAll
	return result
}

// highPass is a first-order IIR filter with alpha = dt / (RC + dt),
// RC = 1 / (2*pi*cutoff). Operates in place.
func highPass(data []float32, cutoff, sampleRate float32) {
	if len(data) == 0 {
		return
	}

	rc := 1 / (2 * float32(math.Pi) * cutoff)
	dt := 1 / sampleRate
	alpha := dt / (rc + dt)

	y := data[0]
	for i := 1; i < len(data); i++ {
		y = alpha * (y + data[i] - data[i-1])
		data[i] = y
	}
}
