package audio

import (
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioCapturer implements audio capture using PortAudio
type PortAudioCapturer struct {
	isCapturing   bool
	stream        *portaudio.Stream
	buffer        *AudioBuffer
	bufferSize    int
	sampleRate    int
	channels      int
	bufferMutex   sync.Mutex
	amplification float32 // Audio signal amplification factor
}

// NewPortAudioCapturer creates a new audio capturer using PortAudio. The
// device is not opened until Start.
func NewPortAudioCapturer(bufferSize, sampleRate, channels int) *PortAudioCapturer {
	return &PortAudioCapturer{
		buffer: &AudioBuffer{
			Samples:    make([]float32, bufferSize),
			SampleRate: sampleRate,
		},
		bufferSize:    bufferSize,
		sampleRate:    sampleRate,
		channels:      channels,
		amplification: 1.0,
	}
}

// Start initializes PortAudio and opens the default input stream. On any
// failure everything acquired so far is released again.
func (c *PortAudioCapturer) Start() (err error) {
	c.bufferMutex.Lock()
	defer c.bufferMutex.Unlock()

	if c.isCapturing {
		return ErrAlreadyCapturing
	}

	if err = portaudio.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			portaudio.Terminate()
		}
	}()

	c.stream, err = portaudio.OpenDefaultStream(
		c.channels, // input channels
		0,          // output channels (we don't need output)
		float64(c.sampleRate),
		c.bufferSize, // frames per buffer
		c.processAudio,
	)
	if err != nil {
		return err
	}

	if err = c.stream.Start(); err != nil {
		c.stream.Close()
		return err
	}

	c.isCapturing = true
	return nil
}

// Stop ends audio capture, closes the stream and terminates PortAudio. All
// three steps run even if an earlier one fails; the first error is returned.
func (c *PortAudioCapturer) Stop() error {
	c.bufferMutex.Lock()
	if !c.isCapturing {
		c.bufferMutex.Unlock()
		return ErrNotCapturing
	}
	c.isCapturing = false
	stream := c.stream
	c.stream = nil
	c.bufferMutex.Unlock()

	// Stop waits for the callback to return, so the mutex must not be held.
	firstErr := stream.Stop()
	if err := stream.Close(); firstErr == nil {
		firstErr = err
	}
	if err := portaudio.Terminate(); firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// processAudio is the callback function for audio processing
func (c *PortAudioCapturer) processAudio(in []float32) {
	c.bufferMutex.Lock()
	defer c.bufferMutex.Unlock()
	c.buffer.Samples = downmix(in, c.channels, c.amplification)
}

// GetBuffer returns a copy of the latest callback buffer
func (c *PortAudioCapturer) GetBuffer() (*AudioBuffer, error) {
	c.bufferMutex.Lock()
	defer c.bufferMutex.Unlock()

	if !c.isCapturing {
		return nil, ErrNotCapturing
	}

	bufferCopy := &AudioBuffer{
		Samples:    make([]float32, len(c.buffer.Samples)),
		SampleRate: c.buffer.SampleRate,
	}
	copy(bufferCopy.Samples, c.buffer.Samples)

	return bufferCopy, nil
}

// IsCapturing returns true if currently capturing audio
func (c *PortAudioCapturer) IsCapturing() bool {
	c.bufferMutex.Lock()
	defer c.bufferMutex.Unlock()
	return c.isCapturing
}

// SetAmplification sets the audio amplification factor
func (c *PortAudioCapturer) SetAmplification(factor float32) {
	c.bufferMutex.Lock()
	defer c.bufferMutex.Unlock()
	c.amplification = clampAmplification(factor)
}

// downmix averages interleaved channels into a new mono slice and applies
// amplification.
func downmix(in []float32, channels int, amplification float32) []float32 {
	if channels < 1 {
		channels = 1
	}
	mono := make([]float32, len(in)/channels)
	for i := range mono {
		sum := float32(0)
		for ch := 0; ch < channels; ch++ {
			sum += in[i*channels+ch]
		}
		mono[i] = (sum / float32(channels)) * amplification
	}
	return mono
}

func clampAmplification(factor float32) float32 {
	if factor < 0.1 {
		return 0.1
	}
	return factor
}
