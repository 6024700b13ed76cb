package lane

import (
	"math"
	"testing"

	"github.com/allpedroza/karaoke/internal/melody"
	"github.com/allpedroza/karaoke/internal/pitch"
)

func note(onset, duration float64, name string) melody.ReferenceNote {
	m, _ := pitch.NoteToMidi(name)
	return melody.ReferenceNote{Onset: onset, Duration: duration, Name: name, Midi: m, Frequency: pitch.MidiToFrequency(float64(m))}
}

var song = []melody.ReferenceNote{
	note(0, 1, "C4"),
	note(2, 1, "E4"),
	note(5, 1, "G4"),
}

func readyRef(offset float64) melody.Reference {
	return melody.Reference{SongID: "s", Status: melody.StatusReady, Notes: song, SyncOffset: offset}
}

func voiceAt(midi float64) Voice {
	return VoiceFromFrequency(pitch.MidiToFrequency(midi))
}

func TestVisibleNotesWindow(t *testing.T) {
	got := VisibleNotes(song, 2.5, 1, 2)
	if len(got) != 1 || got[0].Name != "E4" {
		t.Fatalf("expected only the [2,3] note, got %+v", got)
	}
	if got := VisibleNotes(song, 2.5, 1, 6); len(got) != 2 {
		t.Fatalf("expected E4 and G4 with a 6 s look-ahead, got %+v", got)
	}
	if got := VisibleNotes(nil, 0, 1, 6); len(got) != 0 {
		t.Fatalf("expected nothing for an empty melody")
	}
}

func TestActiveNote(t *testing.T) {
	n, ok := ActiveNote(song, 2.5)
	if !ok || n.Name != "E4" {
		t.Fatalf("expected E4, got %+v ok=%v", n, ok)
	}
	if _, ok := ActiveNote(song, 4); ok {
		t.Fatalf("expected no note in a gap")
	}
	overlapping := []melody.ReferenceNote{note(0, 4, "C4"), note(1, 1, "D4")}
	if n, _ := ActiveNote(overlapping, 1.5); n.Name != "D4" {
		t.Fatalf("expected the latest onset to win, got %s", n.Name)
	}
}

func TestEngineStartsInFreestyle(t *testing.T) {
	e := NewEngine(DefaultOptions())
	if e.Mode() != ModeFreestyle {
		t.Fatalf("expected freestyle mode")
	}
	e.SetReference(melody.Unavailable("s"))
	e.SetReference(melody.Reference{SongID: "s", Status: melody.StatusProcessing})
	if e.Mode() != ModeFreestyle {
		t.Fatalf("expected freestyle without a ready melody")
	}
	if _, ok := e.MelodyRange(); ok {
		t.Fatalf("expected no melody range")
	}
}

func TestEngineMelodyFrame(t *testing.T) {
	e := NewEngine(DefaultOptions())
	e.SetReference(readyRef(0))
	if e.Mode() != ModeMelody {
		t.Fatalf("expected melody mode")
	}

	f := e.Render(2.5, voiceAt(64.2), 1000)
	if f.NowX != 150 {
		t.Fatalf("expected now line at 15%%, got %.1f", f.NowX)
	}
	if len(f.Notes) != 2 || f.Notes[0].Note.Name != "E4" || f.Notes[1].Note.Name != "G4" {
		t.Fatalf("unexpected visible notes: %+v", f.Notes)
	}
	pps := 850.0 / 6
	if want := 150 - 0.5*pps; math.Abs(f.Notes[0].X-want) > 1e-9 {
		t.Fatalf("expected E4 at x=%.2f, got %.2f", want, f.Notes[0].X)
	}
	if math.Abs(f.Notes[0].Width-pps) > 1e-9 {
		t.Fatalf("expected width of one second, got %.2f", f.Notes[0].Width)
	}
	if !f.Notes[0].Active || f.Notes[1].Active {
		t.Fatalf("expected only E4 active")
	}
	if f.Active == nil || f.Active.Name != "E4" {
		t.Fatalf("expected E4 as active note, got %+v", f.Active)
	}
	if f.User == nil || !f.OnPitch || !f.User.OnPitch {
		t.Fatalf("expected the singer on pitch, got %+v", f.User)
	}
	if f.User.X != f.NowX {
		t.Fatalf("expected the marker on the now line")
	}
	// higher pitch is drawn higher up
	if !(f.Notes[1].Y < f.Notes[0].Y) {
		t.Fatalf("expected G4 above E4: %.1f vs %.1f", f.Notes[1].Y, f.Notes[0].Y)
	}
}

func TestEngineOnPitchTolerance(t *testing.T) {
	e := NewEngine(DefaultOptions())
	e.SetReference(readyRef(0))

	if f := e.Render(2.5, voiceAt(65.4), 1000); !f.OnPitch {
		t.Fatalf("expected 1.4 semitones to count as on pitch")
	}
	if f := e.Render(2.5, voiceAt(66), 1000); f.OnPitch || f.User.Color != offPitchColor.Hex() {
		t.Fatalf("expected 2 semitones to be off pitch")
	}
	// no reference note sounding: never on pitch
	if f := e.Render(4, voiceAt(64), 1000); f.OnPitch || f.Active != nil {
		t.Fatalf("expected off pitch in a gap")
	}
	if f := e.Render(2.5, Voice{}, 1000); f.User != nil || f.OnPitch {
		t.Fatalf("expected no marker while silent")
	}
}

func TestEngineRangeFixedPerMelody(t *testing.T) {
	e := NewEngine(DefaultOptions())
	e.SetReference(readyRef(0))
	want, ok := e.MelodyRange()
	if !ok || want != (Range{Low: 57, High: 70}) {
		t.Fatalf("expected 57..70, got %+v", want)
	}
	for _, ts := range []float64{0, 2.5, 5.5, 30} {
		f := e.Render(ts, voiceAt(90), 800)
		if f.Range != want {
			t.Fatalf("t=%.1f: range changed to %+v", ts, f.Range)
		}
	}
}

func TestEngineOffsetReversible(t *testing.T) {
	e := NewEngine(DefaultOptions())
	e.SetReference(readyRef(0.3))
	if e.Offset() != 0.3 {
		t.Fatalf("expected saved offset adopted, got %v", e.Offset())
	}
	if got := e.AdjustOffset(1); got != 0.8 {
		t.Fatalf("expected 0.8, got %v", got)
	}
	for i := 0; i < 7; i++ {
		e.AdjustOffset(1)
	}
	for i := 0; i < 8; i++ {
		e.AdjustOffset(-1)
	}
	if e.Offset() != 0.3 {
		t.Fatalf("expected exact round trip to 0.3, got %v", e.Offset())
	}
}

func TestEngineOffsetStepsSurviveMelodyLoad(t *testing.T) {
	e := NewEngine(DefaultOptions())
	e.AdjustOffset(1)
	e.AdjustOffset(1)
	e.SetReference(readyRef(0.3))
	if got := e.Offset(); got != 1.3 {
		t.Fatalf("expected saved 0.3 plus two steps, got %v", got)
	}
}

func TestEngineFreestylePausedClock(t *testing.T) {
	e := NewEngine(DefaultOptions())
	var f Frame
	for i := 0; i < 5000; i++ {
		f = e.Render(12, voiceAt(60), 1000)
	}
	if len(f.Trail) != 1 {
		t.Fatalf("expected one trail point while paused, got %d", len(f.Trail))
	}
	f = e.Render(12.1, voiceAt(61), 1000)
	if len(f.Trail) != 2 {
		t.Fatalf("expected the trail to resume, got %d", len(f.Trail))
	}
}

func TestEngineOffsetShiftsTime(t *testing.T) {
	e := NewEngine(DefaultOptions())
	e.SetReference(readyRef(0))
	e.SetOffset(1)
	f := e.Render(1.5, Voice{}, 1000)
	if f.Time != 2.5 || f.Offset != 1 {
		t.Fatalf("expected t'=2.5, got %.2f (offset %.2f)", f.Time, f.Offset)
	}
	if f.Active == nil || f.Active.Name != "E4" {
		t.Fatalf("expected E4 active at t'=2.5")
	}
}

func TestEngineHeightClamp(t *testing.T) {
	e := NewEngine(DefaultOptions())
	if e.Height() != 200 {
		t.Fatalf("expected default 200, got %.0f", e.Height())
	}
	if got := e.SetHeight(50); got != 120 {
		t.Fatalf("expected clamp to 120, got %.0f", got)
	}
	if got := e.SetHeight(900); got != 500 {
		t.Fatalf("expected clamp to 500, got %.0f", got)
	}
	if got := e.ResizeBy(-100); got != 400 {
		t.Fatalf("expected 400, got %.0f", got)
	}
	if got := e.ResizeBy(1000); got != 500 {
		t.Fatalf("expected 500, got %.0f", got)
	}
}

func TestEngineFreestyleTrail(t *testing.T) {
	e := NewEngine(DefaultOptions())
	var f Frame
	for i := 0; i <= 100; i++ {
		f = e.Render(float64(i)/10, voiceAt(60), 1000)
	}
	if f.Mode != ModeFreestyle || f.NowX != 850 {
		t.Fatalf("expected freestyle now line at 85%%, got %.1f", f.NowX)
	}
	// 10 s sung, 8 s window
	for _, p := range f.Trail {
		if p.X < -1e-9 || p.X > f.NowX+1e-9 {
			t.Fatalf("trail point outside the lane: %+v", p)
		}
	}
	if n := len(f.Trail); n < 79 || n > 82 {
		t.Fatalf("expected about 80 trail points, got %d", n)
	}
	newest := f.Trail[len(f.Trail)-1]
	if newest.Opacity != 1 || newest.X != f.NowX {
		t.Fatalf("expected newest point opaque at the now line, got %+v", newest)
	}
	if oldest := f.Trail[0]; oldest.Opacity > 0.05 {
		t.Fatalf("expected oldest point nearly transparent, got %.2f", oldest.Opacity)
	}
}

func TestEngineFreestyleSeekBack(t *testing.T) {
	e := NewEngine(DefaultOptions())
	for i := 0; i <= 50; i++ {
		e.Render(float64(i)/10, voiceAt(60), 1000)
	}
	f := e.Render(2, Voice{}, 1000)
	for _, p := range f.Trail {
		if p.X > f.NowX+1e-9 {
			t.Fatalf("expected points after a backwards seek to be dropped, got %+v", p)
		}
	}
	if len(f.Trail) != 21 {
		t.Fatalf("expected the 0..2 s points, got %d", len(f.Trail))
	}
}

func TestEngineAdaptiveRangeOnlyGrows(t *testing.T) {
	e := NewEngine(DefaultOptions())
	if got := e.FreestyleRange(); got != (Range{Low: 54, High: 66}) {
		t.Fatalf("expected 54..66 start, got %+v", got)
	}
	prev := e.FreestyleRange()
	ts := 0.0
	for _, midi := range []float64{60, 50, 50, 75, 62, 62} {
		for i := 0; i < 30; i++ {
			ts += 0.5
			f := e.Render(ts, voiceAt(midi), 1000)
			if f.Range.Low > prev.Low || f.Range.High < prev.High {
				t.Fatalf("range shrank from %+v to %+v", prev, f.Range)
			}
			prev = f.Range
		}
	}
	if prev.Low > 47+1e-9 || prev.High < 78-1e-9 {
		t.Fatalf("expected range to cover 47..78, got %+v", prev)
	}

	e.Reset()
	if got := e.FreestyleRange(); got != (Range{Low: 54, High: 66}) {
		t.Fatalf("expected reset range, got %+v", got)
	}
}

func TestVoiceFromFrequency(t *testing.T) {
	if v := VoiceFromFrequency(0); v.Voiced {
		t.Fatalf("expected silence")
	}
	v := VoiceFromFrequency(440)
	if !v.Voiced || v.Note != "A4" || math.Abs(v.Midi-69) > 1e-9 {
		t.Fatalf("unexpected voice: %+v", v)
	}
}

func TestGridMarksEveryC(t *testing.T) {
	lines := grid(Range{Low: 47, High: 85}, 200)
	if len(lines) != 4 || lines[0].Label != "C3" || lines[3].Label != "C6" {
		t.Fatalf("unexpected grid: %+v", lines)
	}
}
