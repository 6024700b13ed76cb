package audio

import (
	"errors"
	"math"
	"sync"
)

// Errors
var (
	ErrAlreadyCapturing = errors.New("audio capture already started")
	ErrNotCapturing     = errors.New("audio capture not started")
)

// AudioBuffer represents a buffer of audio samples
type AudioBuffer struct {
	Samples    []float32
	SampleRate int
}

// Capturer defines the interface for audio capture
type Capturer interface {
	// Start begins audio capture
	Start() error

	// Stop ends audio capture and releases the device
	Stop() error

	// GetBuffer returns the most recent window of samples
	GetBuffer() (*AudioBuffer, error)

	// IsCapturing returns true if currently capturing audio
	IsCapturing() bool
}

// SynthCapturer produces a steady sine tone instead of reading a device.
// A zero frequency yields silence.
type SynthCapturer struct {
	mu          sync.Mutex
	isCapturing bool
	frequency   float64
	amplitude   float64
	bufferSize  int
	sampleRate  int
	phase       float64
	hop         int
}

// NewSynthCapturer creates a tone generator that advances by hop samples per
// GetBuffer call.
func NewSynthCapturer(frequency, amplitude float64, bufferSize, sampleRate, hop int) *SynthCapturer {
	return &SynthCapturer{
		frequency:  frequency,
		amplitude:  amplitude,
		bufferSize: bufferSize,
		sampleRate: sampleRate,
		hop:        hop,
	}
}

// Start begins audio capture
func (c *SynthCapturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isCapturing {
		return ErrAlreadyCapturing
	}
	c.isCapturing = true
	return nil
}

// Stop ends audio capture
func (c *SynthCapturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isCapturing {
		return ErrNotCapturing
	}
	c.isCapturing = false
	return nil
}

// SetFrequency changes the generated tone.
func (c *SynthCapturer) SetFrequency(frequency float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frequency = frequency
}

// GetBuffer returns the next window of the generated tone
func (c *SynthCapturer) GetBuffer() (*AudioBuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isCapturing {
		return nil, ErrNotCapturing
	}

	buf := &AudioBuffer{
		Samples:    make([]float32, c.bufferSize),
		SampleRate: c.sampleRate,
	}
	if c.frequency > 0 {
		step := 2 * math.Pi * c.frequency / float64(c.sampleRate)
		for i := range buf.Samples {
			buf.Samples[i] = float32(c.amplitude * math.Sin(c.phase+step*float64(i)))
		}
		c.phase = math.Mod(c.phase+step*float64(c.hop), 2*math.Pi)
	}
	return buf, nil
}

// IsCapturing returns true if currently capturing audio
func (c *SynthCapturer) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isCapturing
}
