package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mjibson/go-dsp/wav"
)

const (
	wavChunk     = 4096
	wavFormatPCM = 1
)

// FileCapturer replays a decoded recording as if it were a live stream.
// Every GetBuffer call advances the read position by hop samples and returns
// the bufferSize samples ending there; io.EOF is returned once the recording
// is exhausted.
type FileCapturer struct {
	mu          sync.Mutex
	isCapturing bool
	samples     []float32
	sampleRate  int
	bufferSize  int
	hop         int
	cursor      int
}

// NewFileCapturer wraps already decoded mono samples.
func NewFileCapturer(samples []float32, sampleRate, bufferSize, hop int) *FileCapturer {
	if hop < 1 {
		hop = 1
	}
	return &FileCapturer{
		samples:    samples,
		sampleRate: sampleRate,
		bufferSize: bufferSize,
		hop:        hop,
	}
}

// OpenWAV decodes a WAV file into a FileCapturer. Multi-channel files are
// averaged to mono. hopPerFrame is derived from fps: sampleRate/fps.
func OpenWAV(path string, bufferSize, fps int) (*FileCapturer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	samples, sampleRate, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if fps < 1 {
		fps = 60
	}
	return NewFileCapturer(samples, sampleRate, bufferSize, sampleRate/fps), nil
}

// DecodeWAV reads an entire WAV stream as mono float samples in [-1, 1].
func DecodeWAV(r io.Reader) ([]float32, int, error) {
	w, err := wav.New(r)
	if err != nil {
		return nil, 0, err
	}
	channels := int(w.NumChannels)
	if channels < 1 {
		return nil, 0, errors.New("wav has no channels")
	}

	// the decoder needs exact counts; a short final read loses the tail
	interleaved := make([]float32, 0, w.Samples)
	for remaining := w.Samples; remaining > 0; {
		n := min(remaining, wavChunk)
		chunk, err := w.ReadFloats(n)
		if err != nil {
			return nil, 0, err
		}
		interleaved = append(interleaved, chunk...)
		remaining -= n
	}

	// PCM is decoded to [0, 1]; recenter it
	if w.AudioFormat == wavFormatPCM {
		for i, v := range interleaved {
			interleaved[i] = v*2 - 1
		}
	}
	return downmix(interleaved, channels, 1), int(w.SampleRate), nil
}

// Start begins audio capture
func (c *FileCapturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isCapturing {
		return ErrAlreadyCapturing
	}
	c.isCapturing = true
	c.cursor = 0
	return nil
}

// Stop ends audio capture
func (c *FileCapturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isCapturing {
		return ErrNotCapturing
	}
	c.isCapturing = false
	return nil
}

// GetBuffer returns the next window of the recording
func (c *FileCapturer) GetBuffer() (*AudioBuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isCapturing {
		return nil, ErrNotCapturing
	}
	if c.cursor >= len(c.samples) {
		return nil, io.EOF
	}

	c.cursor += c.hop
	end := c.cursor
	if end > len(c.samples) {
		end = len(c.samples)
	}
	out := &AudioBuffer{Samples: make([]float32, c.bufferSize), SampleRate: c.sampleRate}
	start := end - c.bufferSize
	if start < 0 {
		// left-pad the first frames with silence
		copy(out.Samples[-start:], c.samples[:end])
	} else {
		copy(out.Samples, c.samples[start:end])
	}
	return out, nil
}

// Position returns the replay position in seconds.
func (c *FileCapturer) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sampleRate == 0 {
		return 0
	}
	return float64(c.cursor) / float64(c.sampleRate)
}

// IsCapturing returns true if currently capturing audio
func (c *FileCapturer) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isCapturing
}
