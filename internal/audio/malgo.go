package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoCapturer captures the default input device through miniaudio. It
// keeps a rolling window of the last bufferSize mono samples.
type MalgoCapturer struct {
	mu            sync.Mutex
	isCapturing   bool
	ctx           *malgo.AllocatedContext
	device        *malgo.Device
	window        []float32
	bufferSize    int
	sampleRate    int
	channels      int
	amplification float32
	logger        *slog.Logger
}

// NewMalgoCapturer creates a capturer; the device is opened by Start.
func NewMalgoCapturer(bufferSize, sampleRate, channels int, logger *slog.Logger) *MalgoCapturer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MalgoCapturer{
		window:        make([]float32, bufferSize),
		bufferSize:    bufferSize,
		sampleRate:    sampleRate,
		channels:      channels,
		amplification: 1.0,
		logger:        logger,
	}
}

// Start begins audio capture
func (c *MalgoCapturer) Start() (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isCapturing {
		return ErrAlreadyCapturing
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		c.logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return fmt.Errorf("malgo init: %w", err)
	}
	defer func() {
		if err != nil {
			_ = ctx.Uninit()
			ctx.Free()
		}
	}()

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.Capture.Format = malgo.FormatF32
	config.Capture.Channels = uint32(c.channels)
	config.SampleRate = uint32(c.sampleRate)
	config.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(ctx.Context, config, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			c.push(input)
		},
	})
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}
	if err = device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start device: %w", err)
	}

	c.ctx = ctx
	c.device = device
	c.isCapturing = true
	return nil
}

// Stop ends audio capture
func (c *MalgoCapturer) Stop() error {
	c.mu.Lock()
	if !c.isCapturing {
		c.mu.Unlock()
		return ErrNotCapturing
	}
	c.isCapturing = false
	device, ctx := c.device, c.ctx
	c.device, c.ctx = nil, nil
	c.mu.Unlock()

	stopErr := device.Stop()
	device.Uninit()
	uninitErr := ctx.Uninit()
	ctx.Free()
	if stopErr != nil {
		return stopErr
	}
	return uninitErr
}

func (c *MalgoCapturer) push(input []byte) {
	if len(input) == 0 {
		return
	}
	interleaved := make([]float32, len(input)/4)
	for i := range interleaved {
		interleaved[i] = math.Float32frombits(binary.LittleEndian.Uint32(input[i*4:]))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	mono := downmix(interleaved, c.channels, c.amplification)
	if len(mono) >= len(c.window) {
		copy(c.window, mono[len(mono)-len(c.window):])
		return
	}
	copy(c.window, c.window[len(mono):])
	copy(c.window[len(c.window)-len(mono):], mono)
}

// GetBuffer returns a copy of the rolling window
func (c *MalgoCapturer) GetBuffer() (*AudioBuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isCapturing {
		return nil, ErrNotCapturing
	}
	out := &AudioBuffer{Samples: make([]float32, len(c.window)), SampleRate: c.sampleRate}
	copy(out.Samples, c.window)
	return out, nil
}

// IsCapturing returns true if currently capturing audio
func (c *MalgoCapturer) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isCapturing
}

// SetAmplification sets the audio amplification factor
func (c *MalgoCapturer) SetAmplification(factor float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.amplification = clampAmplification(factor)
}
