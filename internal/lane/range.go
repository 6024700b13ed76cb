package lane

import (
	"math"

	"github.com/allpedroza/karaoke/internal/melody"
)

const (
	// Absolute MIDI bounds of any lane (C2..C7).
	AbsoluteLow  = 36.0
	AbsoluteHigh = 96.0

	rangePadding = 3.0  // semitones added above and below the observed extremes
	minSpan      = 12.0 // the lane always shows at least an octave

	freestyleCenter = 60.0
)

// Range is the vertical MIDI range of the lane.
type Range struct {
	Low  float64
	High float64
}

// Span returns High-Low.
func (r Range) Span() float64 {
	return r.High - r.Low
}

// Clamp limits midi to the range.
func (r Range) Clamp(midi float64) float64 {
	return math.Max(r.Low, math.Min(r.High, midi))
}

// Y maps midi to a vertical position in a lane of the given height, higher
// pitch nearer the top.
func (r Range) Y(midi, height float64) float64 {
	span := r.Span()
	if span <= 0 {
		return height / 2
	}
	return height - (r.Clamp(midi)-r.Low)/span*height
}

// MelodyRange derives the fixed lane range of a melody from its lowest and
// highest notes. It is computed once per melody load.
func MelodyRange(notes []melody.ReferenceNote) Range {
	if len(notes) == 0 {
		return defaultFreestyleRange()
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, n := range notes {
		m := float64(n.Midi)
		lo = math.Min(lo, m)
		hi = math.Max(hi, m)
	}
	return fit(lo-rangePadding, hi+rangePadding)
}

// fit widens [lo, hi] to the minimum span around its centre and keeps it
// inside the absolute bounds, shifting rather than shrinking where possible.
func fit(lo, hi float64) Range {
	if hi-lo < minSpan {
		mid := (lo + hi) / 2
		lo, hi = mid-minSpan/2, mid+minSpan/2
	}
	if lo < AbsoluteLow {
		hi += AbsoluteLow - lo
		lo = AbsoluteLow
	}
	if hi > AbsoluteHigh {
		lo -= hi - AbsoluteHigh
		hi = AbsoluteHigh
	}
	if lo < AbsoluteLow {
		lo = AbsoluteLow
	}
	return Range{Low: lo, High: hi}
}

func defaultFreestyleRange() Range {
	return Range{Low: freestyleCenter - minSpan/2, High: freestyleCenter + minSpan/2}
}

// AdaptiveRange is the freestyle lane range. It starts around middle C and
// only ever grows, so the lane does not jump while the singer moves around.
type AdaptiveRange struct {
	r Range
}

// NewAdaptiveRange starts at MIDI 60±6.
func NewAdaptiveRange() *AdaptiveRange {
	return &AdaptiveRange{r: defaultFreestyleRange()}
}

// Cover expands the range to include [lo, hi] plus padding and returns it.
func (a *AdaptiveRange) Cover(lo, hi float64) Range {
	a.r.Low = math.Max(AbsoluteLow, math.Min(a.r.Low, lo-rangePadding))
	a.r.High = math.Min(AbsoluteHigh, math.Max(a.r.High, hi+rangePadding))
	return a.r
}

// Range returns the current bounds.
func (a *AdaptiveRange) Range() Range {
	return a.r
}

// Reset returns to the starting range, for a new session.
func (a *AdaptiveRange) Reset() {
	a.r = defaultFreestyleRange()
}
