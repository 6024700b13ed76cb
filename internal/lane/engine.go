// Package lane computes the scrolling pitch lane: the reference melody
// against the singer's live pitch, or the singer's own trail when no melody
// is available. Render produces a Frame of positioned primitives that any
// drawing surface can paint.
package lane

import (
	"math"
	"sort"
	"sync"

	"github.com/allpedroza/karaoke/internal/melody"
	"github.com/allpedroza/karaoke/internal/pitch"
)

// Mode selects what the lane shows.
type Mode int

const (
	// ModeFreestyle shows the singer's recent pitch trail.
	ModeFreestyle Mode = iota
	// ModeMelody scrolls the reference melody past a fixed now line.
	ModeMelody
)

func (m Mode) String() string {
	if m == ModeMelody {
		return "melody"
	}
	return "freestyle"
}

// Options tunes the engine.
type Options struct {
	LookAhead        float64 // seconds shown after the now line (melody mode)
	LookBehind       float64 // seconds kept before the now line (melody mode)
	HistorySeconds   float64 // trail length (freestyle mode)
	MelodyNowX       float64 // now line as a fraction of width
	FreestyleNowX    float64
	OnPitchTolerance float64 // semitones
	OffsetStep       float64 // seconds per AdjustOffset step
	Height           float64 // px
	MinHeight        float64
	MaxHeight        float64
}

// DefaultOptions returns the stock lane layout.
func DefaultOptions() Options {
	return Options{
		LookAhead:        6,
		LookBehind:       1,
		HistorySeconds:   8,
		MelodyNowX:       0.15,
		FreestyleNowX:    0.85,
		OnPitchTolerance: 1.5,
		OffsetStep:       0.5,
		Height:           200,
		MinHeight:        120,
		MaxHeight:        500,
	}
}

// Voice is the singer's pitch for one frame.
type Voice struct {
	Voiced bool
	Midi   float64 // continuous
	Note   string
}

// VoiceFromFrequency classifies a frequency; non-positive input is silence.
func VoiceFromFrequency(freq float64) Voice {
	if freq <= 0 {
		return Voice{}
	}
	note, _ := pitch.FrequencyToNote(freq)
	return Voice{Voiced: true, Midi: pitch.FrequencyToMidi(freq), Note: note}
}

// NoteBox is a reference note placed on the lane.
type NoteBox struct {
	Note   melody.ReferenceNote
	X      float64
	Y      float64 // centre line
	Width  float64
	Height float64
	Active bool
	Color  string
}

// Marker is the singer's current pitch at the now line.
type Marker struct {
	X       float64
	Y       float64
	Midi    float64
	Note    string
	OnPitch bool
	Color   string
}

// TrailPoint is one segment end of the freestyle trail.
type TrailPoint struct {
	X       float64
	Y       float64
	Opacity float64
	Color   string
}

// GridLine marks a C on the lane.
type GridLine struct {
	Y     float64
	Midi  int
	Label string
}

// Frame is everything needed to paint one lane frame.
type Frame struct {
	Mode        Mode
	Time        float64 // adjusted time t' (video + offset) in melody mode
	Offset      float64
	Width       float64
	Height      float64
	NowX        float64
	Range       Range
	Grid        []GridLine
	Notes       []NoteBox
	Active      *melody.ReferenceNote
	User        *Marker
	Trail       []TrailPoint
	CurrentNote string
	OnPitch     bool
}

// Engine holds lane state across frames.
type Engine struct {
	opts Options

	mu         sync.Mutex
	ref        melody.Reference
	hasRef     bool
	fixed      Range
	adaptive   *AdaptiveRange
	history    *HistoryWindow
	baseOffset float64
	steps      int
	height     float64
}

// NewEngine creates an engine in freestyle mode.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		opts:     opts,
		adaptive: NewAdaptiveRange(),
		history:  NewHistoryWindow(opts.HistorySeconds),
	}
	e.height = e.clampHeight(opts.Height)
	return e
}

// SetReference installs a fetched melody. A ready melody switches the engine
// to melody mode, fixes the lane range for the whole song and adopts the
// saved sync offset as the base for any steps already taken; anything else
// leaves it in freestyle mode.
func (e *Engine) SetReference(ref melody.Reference) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !ref.Ready() {
		return
	}
	notes := make([]melody.ReferenceNote, len(ref.Notes))
	copy(notes, ref.Notes)
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].Onset < notes[j].Onset })
	ref.Notes = notes

	e.ref = ref
	e.hasRef = true
	e.fixed = MelodyRange(notes)
	e.baseOffset = ref.SyncOffset
}

// Mode returns the current mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hasRef {
		return ModeMelody
	}
	return ModeFreestyle
}

// MelodyRange returns the fixed range of the loaded melody.
func (e *Engine) MelodyRange() (Range, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fixed, e.hasRef
}

// Offset returns the sync offset in seconds.
func (e *Engine) Offset() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.offset()
}

func (e *Engine) offset() float64 {
	return e.baseOffset + float64(e.steps)*e.opts.OffsetStep
}

// AdjustOffset moves the offset by n steps and returns the new value. Steps
// are counted, so +n followed by -n restores the exact previous offset.
func (e *Engine) AdjustOffset(n int) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.steps += n
	return e.offset()
}

// SetOffset replaces the offset.
func (e *Engine) SetOffset(sec float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.baseOffset = sec
	e.steps = 0
}

// Height returns the lane height in px.
func (e *Engine) Height() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.height
}

// SetHeight sets the lane height, clamped to the configured bounds.
func (e *Engine) SetHeight(px float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.height = e.clampHeight(px)
	return e.height
}

// ResizeBy changes the height by delta px (a drag).
func (e *Engine) ResizeBy(delta float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.height = e.clampHeight(e.height + delta)
	return e.height
}

func (e *Engine) clampHeight(px float64) float64 {
	return math.Max(e.opts.MinHeight, math.Min(e.opts.MaxHeight, px))
}

// Reset clears the freestyle trail and range for a new session. The loaded
// melody and offset are kept.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history.Clear()
	e.adaptive.Reset()
}

// FreestyleRange returns the current adaptive range.
func (e *Engine) FreestyleRange() Range {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.adaptive.Range()
}

// Render computes the frame for video time videoSec, the singer's voice and
// a lane width in px. An unvoiced voice adds nothing for this frame.
func (e *Engine) Render(videoSec float64, voice Voice, width float64) Frame {
	e.mu.Lock()
	defer e.mu.Unlock()

	if voice.Voiced && (math.IsNaN(voice.Midi) || math.IsInf(voice.Midi, 0)) {
		voice = Voice{}
	}
	if e.hasRef {
		return e.renderMelody(videoSec, voice, width)
	}
	return e.renderFreestyle(videoSec, voice, width)
}

func (e *Engine) renderMelody(videoSec float64, voice Voice, width float64) Frame {
	t := videoSec + e.offset()
	nowX := width * e.opts.MelodyNowX
	pps := (width - nowX) / e.opts.LookAhead
	rng := e.fixed

	f := Frame{
		Mode:        ModeMelody,
		Time:        t,
		Offset:      e.offset(),
		Width:       width,
		Height:      e.height,
		NowX:        nowX,
		Range:       rng,
		Grid:        grid(rng, e.height),
		CurrentNote: voice.Note,
	}

	boxHeight := math.Max(8, e.height/rng.Span()*1.5)
	for _, n := range VisibleNotes(e.ref.Notes, t, e.opts.LookBehind, e.opts.LookAhead) {
		active := n.Contains(t)
		opacity := inactiveOpacity
		if active {
			opacity = 1
		}
		f.Notes = append(f.Notes, NoteBox{
			Note:   n,
			X:      nowX + (n.Onset-t)*pps,
			Y:      rng.Y(float64(n.Midi), e.height),
			Width:  n.Duration * pps,
			Height: boxHeight,
			Active: active,
			Color:  Fade(noteColor(n.Name), opacity),
		})
	}

	if active, ok := ActiveNote(e.ref.Notes, t); ok {
		f.Active = &active
	}

	if voice.Voiced {
		onPitch := f.Active != nil && math.Abs(voice.Midi-float64(f.Active.Midi)) < e.opts.OnPitchTolerance
		color := offPitchColor
		if onPitch {
			color = onPitchColor
		}
		f.OnPitch = onPitch
		f.User = &Marker{
			X:       nowX,
			Y:       rng.Y(voice.Midi, e.height),
			Midi:    voice.Midi,
			Note:    voice.Note,
			OnPitch: onPitch,
			Color:   color.Hex(),
		}
	}
	return f
}

func (e *Engine) renderFreestyle(videoSec float64, voice Voice, width float64) Frame {
	now := videoSec
	if voice.Voiced {
		e.history.Add(now, voice.Midi)
	} else {
		e.history.Evict(now)
	}

	rng := e.adaptive.Range()
	if lo, hi, ok := e.history.Bounds(); ok {
		rng = e.adaptive.Cover(lo, hi)
	}

	nowX := width * e.opts.FreestyleNowX
	window := e.history.Seconds()
	pps := nowX / window

	f := Frame{
		Mode:        ModeFreestyle,
		Time:        now,
		Offset:      e.offset(),
		Width:       width,
		Height:      e.height,
		NowX:        nowX,
		Range:       rng,
		Grid:        grid(rng, e.height),
		CurrentNote: voice.Note,
	}

	for _, p := range e.history.Points() {
		age := now - p.Time
		opacity := math.Max(0, math.Min(1, 1-age/window))
		f.Trail = append(f.Trail, TrailPoint{
			X:       nowX - age*pps,
			Y:       rng.Y(p.Midi, e.height),
			Opacity: opacity,
			Color:   Fade(trailColor, opacity),
		})
	}

	if voice.Voiced {
		f.User = &Marker{
			X:     nowX,
			Y:     rng.Y(voice.Midi, e.height),
			Midi:  voice.Midi,
			Note:  voice.Note,
			Color: trailColor.Hex(),
		}
	}
	return f
}

// VisibleNotes returns the notes of an onset-ordered melody that intersect
// [t-lookBehind, t+lookAhead].
func VisibleNotes(notes []melody.ReferenceNote, t, lookBehind, lookAhead float64) []melody.ReferenceNote {
	start, end := t-lookBehind, t+lookAhead
	// notes starting after the window cannot be visible
	limit := sort.Search(len(notes), func(i int) bool { return notes[i].Onset > end })

	var out []melody.ReferenceNote
	for _, n := range notes[:limit] {
		if n.Overlaps(start, end) {
			out = append(out, n)
		}
	}
	return out
}

// ActiveNote returns the note sounding at t, preferring the latest onset
// when notes overlap.
func ActiveNote(notes []melody.ReferenceNote, t float64) (melody.ReferenceNote, bool) {
	limit := sort.Search(len(notes), func(i int) bool { return notes[i].Onset > t })
	for i := limit - 1; i >= 0; i-- {
		if notes[i].Contains(t) {
			return notes[i], true
		}
	}
	return melody.ReferenceNote{}, false
}

func grid(rng Range, height float64) []GridLine {
	var lines []GridLine
	first := int(math.Ceil(rng.Low/12)) * 12
	for m := first; float64(m) <= rng.High; m += 12 {
		lines = append(lines, GridLine{
			Y:     rng.Y(float64(m), height),
			Midi:  m,
			Label: pitch.MidiToNoteName(m),
		})
	}
	return lines
}
