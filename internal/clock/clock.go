// Package clock models the video playback position that drives the lane.
package clock

import (
	"sync"
	"time"
)

// Clock reports the playback position in seconds. Positions may jump
// backwards on seek.
type Clock interface {
	Position() float64
}

// Playback is a wall-clock driven position with pause, resume and seek, used
// when no video player supplies the time.
type Playback struct {
	mu      sync.Mutex
	now     func() time.Time
	base    float64   // position at anchor
	anchor  time.Time // wall time of base; zero while paused
	playing bool
}

// NewPlayback creates a paused clock at position 0.
func NewPlayback() *Playback {
	return &Playback{now: time.Now}
}

// NewPlaybackWithSource uses now instead of time.Now.
func NewPlaybackWithSource(now func() time.Time) *Playback {
	return &Playback{now: now}
}

// Position implements Clock.
func (p *Playback) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position()
}

func (p *Playback) position() float64 {
	if !p.playing {
		return p.base
	}
	return p.base + p.now().Sub(p.anchor).Seconds()
}

// Play resumes the clock; playing an already running clock is a no-op.
func (p *Playback) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return
	}
	p.anchor = p.now()
	p.playing = true
}

// Pause freezes the position.
func (p *Playback) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return
	}
	p.base = p.position()
	p.playing = false
}

// Toggle switches between playing and paused.
func (p *Playback) Toggle() {
	if p.Playing() {
		p.Pause()
	} else {
		p.Play()
	}
}

// Playing reports whether the clock advances.
func (p *Playback) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Seek jumps to sec, never before 0.
func (p *Playback) Seek(sec float64) {
	if sec < 0 {
		sec = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = sec
	p.anchor = p.now()
}

// SeekBy moves the position by delta seconds.
func (p *Playback) SeekBy(delta float64) {
	p.Seek(p.Position() + delta)
}
