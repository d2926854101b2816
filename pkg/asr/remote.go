package asr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// RemoteConfig configures the whisper-server HTTP client.
type RemoteConfig struct {
	// ServerURL of the whisper.cpp server, e.g. "http://127.0.0.1:8080".
	ServerURL string

	// InferencePath defaults to "/inference".
	InferencePath string

	Language    string // defaults to "auto"
	Temperature float64
	Translate   bool

	// Timeout per request. Defaults to 10s. Timeouts surface as
	// transcription failures, the pipeline keeps running.
	Timeout time.Duration

	// HTTPClient overrides the default client, e.g. to route through
	// a proxy. The configured Timeout still applies when it is zero
	// on the provided client.
	HTTPClient *http.Client
}

// RemoteEngine talks to a whisper.cpp server over HTTP. Audio goes
// out as 16-bit WAV in a multipart form; guided matching is
// synthesized from the transcription because the server has no guided
// endpoint.
type RemoteEngine struct {
	cfg         RemoteConfig
	client      *http.Client
	initialized bool
}

func NewRemoteEngine(cfg RemoteConfig) (*RemoteEngine, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("empty server url")
	}
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", cfg.ServerURL)
	}

	if cfg.InferencePath == "" {
		cfg.InferencePath = "/inference"
	}
	if cfg.Language == "" {
		cfg.Language = "auto"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = cfg.Timeout
	}

	return &RemoteEngine{cfg: cfg, client: client, initialized: true}, nil
}

func (e *RemoteEngine) Name() string { return "whisper_remote" }

func (e *RemoteEngine) IsInitialized() bool { return e.initialized }

func (e *RemoteEngine) Shutdown() {
	e.initialized = false
	e.client.CloseIdleConnections()
}

func (e *RemoteEngine) Transcribe(samples []float32) TranscriptionResult {
	start := time.Now()
	var result TranscriptionResult

	if !e.initialized {
		result.Error = "engine not initialized"
		return result
	}
	if len(samples) == 0 {
		result.Error = "empty audio samples"
		return result
	}

	wavData, err := encodeWAV(samples)
	if err != nil {
		result.Error = fmt.Sprintf("encode wav: %v", err)
		return result
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	part, err := form.CreateFormFile("file", "audio.wav")
	if err == nil {
		_, err = part.Write(wavData)
	}
	if err == nil {
		err = form.WriteField("response_format", "json")
	}
	if err == nil {
		err = form.WriteField("language", e.cfg.Language)
	}
	if err == nil {
		err = form.WriteField("temperature", strconv.FormatFloat(e.cfg.Temperature, 'f', -1, 64))
	}
	if err == nil && e.cfg.Translate {
		err = form.WriteField("translate", "true")
	}
	if err == nil {
		err = form.Close()
	}
	if err != nil {
		result.Error = fmt.Sprintf("build multipart form: %v", err)
		return result
	}

	endpoint := strings.TrimRight(e.cfg.ServerURL, "/") + e.cfg.InferencePath
	resp, err := e.client.Post(endpoint, form.FormDataContentType(), body)

	result.ProcessingTimeMs = time.Since(start).Milliseconds()

	if err != nil {
		result.Error = fmt.Sprintf("http request: %v", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Sprintf("http status %d", resp.StatusCode)
		return result
	}

	var reply struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		result.Error = fmt.Sprintf("decode response: %v", err)
		return result
	}
	if reply.Error != "" {
		result.Error = "server: " + reply.Error
		return result
	}

	// The server reports no token probabilities; the logprob fields
	// stay zero and NumTokens stays zero.
	result.Success = true
	result.Text = strings.TrimSpace(reply.Text)
	return result
}

func (e *RemoteEngine) GuidedMatch(samples []float32, phrases []string) GuidedMatchResult {
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

// encodeWAV renders float32 PCM as a 16-bit mono WAV file in memory.
func encodeWAV(samples []float32) ([]byte, error) {
	ints := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		ints[i] = int(s * 32767)
	}

	buf := &seekBuffer{}
	enc := wav.NewEncoder(buf, SampleRate, 16, 1, 1)

	err := enc.Write(&gaudio.IntBuffer{
		Data:           ints,
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: SampleRate},
		SourceBitDepth: 16,
	})
	if err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	return buf.data, nil
}

// seekBuffer is the in-memory WriteSeeker the wav encoder needs to
// patch chunk sizes into the header on Close.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		if need > cap(b.data) {
			grown := make([]byte, need, need*2)
			copy(grown, b.data)
			b.data = grown
		} else {
			b.data = b.data[:need]
		}
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int
	switch whence {
	case io.SeekStart:
		next = int(offset)
	case io.SeekCurrent:
		next = b.pos + int(offset)
	case io.SeekEnd:
		next = len(b.data) + int(offset)
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if next < 0 {
		return 0, errors.New("negative seek position")
	}
	b.pos = next
	return int64(next), nil
}
