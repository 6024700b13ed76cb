package lane

import "math"

// Point is one voiced sample of the freestyle trail.
type Point struct {
	Time float64 // seconds on the video clock
	Midi float64
}

// HistoryWindow keeps the samples of the last window seconds. Eviction is by
// time, not count.
type HistoryWindow struct {
	window float64
	points []Point
}

// NewHistoryWindow creates a window of the given length in seconds.
func NewHistoryWindow(seconds float64) *HistoryWindow {
	return &HistoryWindow{window: seconds}
}

// Seconds returns the window length.
func (h *HistoryWindow) Seconds() float64 {
	return h.window
}

// Add appends a sample at time t and evicts everything outside the window
// ending at t. A sample at the same time as the newest one replaces it, so a
// paused clock keeps a single point.
func (h *HistoryWindow) Add(t, midi float64) {
	h.Evict(t)
	if n := len(h.points); n > 0 && h.points[n-1].Time == t {
		h.points[n-1].Midi = midi
		return
	}
	h.points = append(h.points, Point{Time: t, Midi: midi})
}

// Evict drops samples older than now-window, and samples later than now
// which appear after a backwards seek.
func (h *HistoryWindow) Evict(now float64) {
	cutoff := now - h.window

	start := 0
	for start < len(h.points) && h.points[start].Time < cutoff {
		start++
	}
	end := len(h.points)
	for end > start && h.points[end-1].Time > now {
		end--
	}
	if start == 0 && end == len(h.points) {
		return
	}
	h.points = append(h.points[:0], h.points[start:end]...)
}

// Points returns the retained samples, oldest first. The slice is shared;
// callers must not modify it.
func (h *HistoryWindow) Points() []Point {
	return h.points
}

// Len returns the number of retained samples.
func (h *HistoryWindow) Len() int {
	return len(h.points)
}

// Bounds returns the lowest and highest retained MIDI values.
func (h *HistoryWindow) Bounds() (lo, hi float64, ok bool) {
	if len(h.points) == 0 {
		return 0, 0, false
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range h.points {
		lo = math.Min(lo, p.Midi)
		hi = math.Max(hi, p.Midi)
	}
	return lo, hi, true
}

// Clear drops every sample.
func (h *HistoryWindow) Clear() {
	h.points = h.points[:0]
}
