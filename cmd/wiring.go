package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/allpedroza/karaoke/internal/audio"
	"github.com/allpedroza/karaoke/internal/config"
	"github.com/allpedroza/karaoke/internal/melody"
	"github.com/allpedroza/karaoke/internal/pitch"
)

const httpTimeout = 10 * time.Second

// newCapturer returns the live input selected by cfg.Backend.
func newCapturer(cfg config.Config, log *slog.Logger) audio.Capturer {
	switch cfg.Backend {
	case config.BackendMalgo:
		c := audio.NewMalgoCapturer(cfg.BufferSize, cfg.SampleRate, cfg.Channels, log)
		c.SetAmplification(float32(cfg.Amplification))
		return c
	case config.BackendSynth:
		return audio.NewSynthCapturer(cfg.SynthFreq, 0.5, cfg.BufferSize, cfg.SampleRate, cfg.Hop())
	default:
		c := audio.NewPortAudioCapturer(cfg.BufferSize, cfg.SampleRate, cfg.Channels)
		c.SetAmplification(float32(cfg.Amplification))
		return c
	}
}

func newDetector(cfg config.Config) pitch.Detector {
	if cfg.Detector == config.DetectorFFT {
		return pitch.NewFFTDetector()
	}
	return pitch.NewAutocorrelationDetector()
}

// melodySource is a Provider plus whatever must be released afterwards.
type melodySource struct {
	melody.Provider
	store *melody.Store
}

func (m melodySource) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}

// openProvider returns the HTTP backend when cfg.MelodyURL is set and the
// local database otherwise, behind an in-memory cache.
func openProvider(cfg config.Config) (melodySource, error) {
	var (
		upstream melody.Provider
		store    *melody.Store
	)
	if cfg.MelodyURL != "" {
		upstream = melody.NewHTTPProvider(cfg.MelodyURL, &http.Client{Timeout: httpTimeout})
	} else {
		s, err := melody.OpenStore(cfg.DBPath)
		if err != nil {
			return melodySource{}, err
		}
		upstream, store = s, s
	}

	cache, err := melody.NewCache(upstream, cfg.CacheSize)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return melodySource{}, fmt.Errorf("melody cache: %w", err)
	}
	return melodySource{Provider: cache, store: store}, nil
}
