// Package config holds the runtime settings shared by all commands.
package config

import (
	"fmt"

	"github.com/allpedroza/karaoke/internal/lane"
	"github.com/spf13/pflag"
)

// Capture backends
const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
	BackendSynth     = "synth"
)

// Detectors
const (
	DetectorAutocorrelation = "autocorrelation"
	DetectorFFT             = "fft"
)

// Config is the full set of tunables.
type Config struct {
	// Audio settings
	SampleRate    int
	BufferSize    int
	Channels      int
	Amplification float64
	Backend       string
	SynthFreq     float64

	// Analysis
	Detector string
	FPS      int

	// Melody reference
	DBPath    string
	MelodyURL string
	CacheSize int

	// Lane
	LookAhead      float64
	LookBehind     float64
	HistorySeconds float64
	OffsetStep     float64
	LaneHeight     float64

	// Logging
	Debug   bool
	LogFile string
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		SampleRate:     44100,
		BufferSize:     2048,
		Channels:       1,
		Amplification:  1.0,
		Backend:        BackendPortAudio,
		SynthFreq:      440,
		Detector:       DetectorAutocorrelation,
		FPS:            60,
		DBPath:         "./data/karaoke.db",
		CacheSize:      32,
		LookAhead:      6,
		LookBehind:     1,
		HistorySeconds: 8,
		OffsetStep:     0.5,
		LaneHeight:     200,
		LogFile:        "karaoke.log",
	}
}

// BindFlags registers every field on fs, using the receiver's current values
// as defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.IntVar(&c.SampleRate, "sample-rate", c.SampleRate, "audio sample rate (Hz)")
	fs.IntVar(&c.BufferSize, "buffer-size", c.BufferSize, "analysis window in samples (lag search covers half)")
	fs.IntVar(&c.Channels, "channels", c.Channels, "input channels, averaged to mono")
	fs.Float64Var(&c.Amplification, "amplify", c.Amplification, "input gain")
	fs.StringVar(&c.Backend, "backend", c.Backend, "capture backend: portaudio, malgo or synth")
	fs.Float64Var(&c.SynthFreq, "synth-freq", c.SynthFreq, "tone of the synth backend (Hz)")
	fs.StringVar(&c.Detector, "detector", c.Detector, "pitch detector: autocorrelation or fft")
	fs.IntVar(&c.FPS, "fps", c.FPS, "analysis and render frames per second")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "melody database path")
	fs.StringVar(&c.MelodyURL, "melody-url", c.MelodyURL, "backend base URL; when set melodies are fetched over HTTP")
	fs.IntVar(&c.CacheSize, "cache-size", c.CacheSize, "melodies kept in memory")
	fs.Float64Var(&c.LookAhead, "look-ahead", c.LookAhead, "seconds of melody shown ahead of now")
	fs.Float64Var(&c.LookBehind, "look-behind", c.LookBehind, "seconds of melody kept behind now")
	fs.Float64Var(&c.HistorySeconds, "history", c.HistorySeconds, "seconds of freestyle trail")
	fs.Float64Var(&c.OffsetStep, "offset-step", c.OffsetStep, "sync offset step (s)")
	fs.Float64Var(&c.LaneHeight, "lane-height", c.LaneHeight, "initial lane height (px, 120-500)")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "debug logging")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "log file for interactive commands (empty: stderr)")
}

// Validate checks ranges and names.
func (c Config) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("invalid sample rate: %d (must be between 8000 and 192000)", c.SampleRate)
	}
	if c.BufferSize < 256 || c.BufferSize&(c.BufferSize-1) != 0 {
		return fmt.Errorf("invalid buffer size: %d (must be a power of two >= 256)", c.BufferSize)
	}
	if c.Channels < 1 {
		return fmt.Errorf("invalid channel count: %d", c.Channels)
	}
	if c.FPS < 1 || c.FPS > 240 {
		return fmt.Errorf("invalid fps: %d (must be between 1 and 240)", c.FPS)
	}
	switch c.Backend {
	case BackendPortAudio, BackendMalgo, BackendSynth:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	switch c.Detector {
	case DetectorAutocorrelation, DetectorFFT:
	default:
		return fmt.Errorf("unknown detector %q", c.Detector)
	}
	if c.LookAhead <= 0 || c.LookBehind < 0 || c.HistorySeconds <= 0 {
		return fmt.Errorf("lane windows must be positive")
	}
	if c.OffsetStep <= 0 {
		return fmt.Errorf("invalid offset step: %g", c.OffsetStep)
	}
	return nil
}

// LaneOptions converts the lane settings.
func (c Config) LaneOptions() lane.Options {
	opts := lane.DefaultOptions()
	opts.LookAhead = c.LookAhead
	opts.LookBehind = c.LookBehind
	opts.HistorySeconds = c.HistorySeconds
	opts.OffsetStep = c.OffsetStep
	opts.Height = c.LaneHeight
	return opts
}

// Hop returns the samples that pass between two frames.
func (c Config) Hop() int {
	return c.SampleRate / c.FPS
}
