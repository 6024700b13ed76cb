// Package session owns one recording: it acquires the audio input, runs the
// pitch detector once per frame and turns the collected observations into
// Stats when the recording stops.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/allpedroza/karaoke/internal/audio"
	"github.com/allpedroza/karaoke/internal/frame"
	"github.com/allpedroza/karaoke/internal/pitch"
	"github.com/google/uuid"
)

// ErrNotRunning is returned by Step when the session has not been started.
var ErrNotRunning = errors.New("session not running")

// Options configures an AnalysisSession.
type Options struct {
	FPS    int
	Logger *slog.Logger

	// Now supplies observation timestamps; defaults to time.Now.
	Now func() time.Time

	// OnObservation is called from the detection loop for every frame.
	OnObservation func(Observation)
}

// AnalysisSession is a single recording from Start to Stop.
type AnalysisSession struct {
	ID uuid.UUID

	capturer audio.Capturer
	detector pitch.Detector
	agg      *Aggregator
	loop     *frame.Loop
	logger   *slog.Logger
	now      func() time.Time
	notify   func(Observation)

	mu      sync.Mutex
	running bool
	live    bool
	latest  Observation
	current *Observation
	final   *Stats
}

// New creates a session; nothing is acquired until Start.
func New(capturer audio.Capturer, detector pitch.Detector, opts Options) *AnalysisSession {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	id := uuid.New()
	return &AnalysisSession{
		ID:       id,
		capturer: capturer,
		detector: detector,
		agg:      NewAggregator(),
		loop:     frame.NewLoop(opts.FPS),
		logger:   opts.Logger.With("session", id.String()),
		now:      opts.Now,
		notify:   opts.OnObservation,
	}
}

// Aggregator exposes the history for callers that need custom heuristics.
func (s *AnalysisSession) Aggregator() *Aggregator {
	return s.agg
}

// Start acquires the audio input and, when live is true, starts the per-frame
// detection loop. With live false the caller drives frames through Step.
// An audio failure is fatal for the session and returned as is.
func (s *AnalysisSession) Start(ctx context.Context, live bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("session %s already running", s.ID)
	}
	if err := s.capturer.Start(); err != nil {
		s.logger.Error("audio input failed", "err", err)
		return fmt.Errorf("start audio input: %w", err)
	}

	s.agg.Reset()
	if live {
		if err := s.loop.Start(ctx, s.tick); err != nil {
			s.release()
			return err
		}
	}

	s.running = true
	s.live = live
	s.final = nil
	s.current = nil
	s.latest = Observation{}
	s.logger.Info("session started", "live", live, "fps", int(time.Second/s.loop.Interval()))
	return nil
}

// Step processes exactly one frame synchronously. It returns frame.ErrDone
// once a finite source is exhausted.
func (s *AnalysisSession) Step() error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return ErrNotRunning
	}
	return s.tick(s.now())
}

func (s *AnalysisSession) tick(now time.Time) error {
	buffer, err := s.capturer.GetBuffer()
	if errors.Is(err, io.EOF) {
		return frame.ErrDone
	}
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}

	result, err := s.detector.DetectPitch(buffer)
	if errors.Is(err, pitch.ErrEmptyBuffer) {
		// device has not delivered samples yet
		return nil
	}
	if err != nil {
		return err
	}

	obs := NewObservation(result, now)
	s.agg.Add(obs)

	s.mu.Lock()
	s.latest = obs
	if obs.Valid() {
		o := obs
		s.current = &o
	}
	s.mu.Unlock()

	if s.notify != nil {
		s.notify(obs)
	}
	return nil
}

// Wait blocks until the live loop ends by itself and returns its error, if
// any. It returns immediately for sessions driven by Step.
func (s *AnalysisSession) Wait() error {
	return s.loop.Wait()
}

// Done reports whether a live loop has ended by itself.
func (s *AnalysisSession) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.live && !s.loop.Running()
}

// Stop halts detection, releases the audio input and returns the final
// stats. Calling Stop again returns the same stats.
func (s *AnalysisSession) Stop() (Stats, error) {
	s.loop.Stop()
	loopErr := s.loop.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		if s.final != nil {
			return *s.final, nil
		}
		return s.agg.Stats(), nil
	}
	s.running = false

	releaseErr := s.release()
	stats := s.agg.Stats()
	s.final = &stats
	s.current = nil

	s.logger.Info("session stopped",
		"total", stats.TotalSamples,
		"valid", stats.ValidSamples,
		"stability", stats.Stability,
		"accuracy", stats.Accuracy,
	)

	if loopErr != nil {
		return stats, loopErr
	}
	return stats, releaseErr
}

func (s *AnalysisSession) release() error {
	if !s.capturer.IsCapturing() {
		return nil
	}
	if err := s.capturer.Stop(); err != nil {
		s.logger.Warn("release audio input", "err", err)
		return fmt.Errorf("release audio input: %w", err)
	}
	return nil
}

// Drain runs Step until the source is exhausted or ctx is cancelled, then
// stops the session. Use it for recorded input that needs no pacing.
func (s *AnalysisSession) Drain(ctx context.Context) (Stats, error) {
	var stepErr error
	for stepErr == nil {
		if err := ctx.Err(); err != nil {
			stepErr = err
			break
		}
		stepErr = s.Step()
	}
	stats, err := s.Stop()
	if errors.Is(stepErr, frame.ErrDone) {
		return stats, err
	}
	return stats, stepErr
}

// Running reports whether the session holds the audio input.
func (s *AnalysisSession) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Latest returns the most recent observation, voiced or not.
func (s *AnalysisSession) Latest() Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Current returns the most recent valid observation.
func (s *AnalysisSession) Current() (Observation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Observation{}, false
	}
	return *s.current, true
}

// Stats computes statistics on demand; after Stop it returns the final ones.
func (s *AnalysisSession) Stats() Stats {
	s.mu.Lock()
	final := s.final
	s.mu.Unlock()
	if final != nil {
		return *final
	}
	return s.agg.Stats()
}

// Observations returns a copy of the recorded history.
func (s *AnalysisSession) Observations() []Observation {
	return s.agg.History()
}

// Reset clears the history and any finalized stats.
func (s *AnalysisSession) Reset() {
	s.agg.Reset()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.final = nil
	s.current = nil
	s.latest = Observation{}
}
