// Package midiexport turns sung observations and reference melodies into
// Standard MIDI Files.
package midiexport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/allpedroza/karaoke/internal/melody"
	"github.com/allpedroza/karaoke/internal/pitch"
	"github.com/allpedroza/karaoke/internal/session"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// ErrNoNotes is returned when there is nothing to write.
var ErrNoNotes = errors.New("no notes to export")

const (
	tempoBPM   = 120.0
	resolution = smf.MetricTicks(960)
	channel    = 0
	velocity   = 100
)

// DefaultMinNote drops transcribed notes shorter than this.
const DefaultMinNote = 80 * time.Millisecond

// Transcribe merges consecutive valid observations of the same note into
// notes. Onsets are measured from the first observation. Runs shorter than
// minNote are dropped.
func Transcribe(obs []session.Observation, minNote time.Duration) []melody.ReferenceNote {
	if len(obs) == 0 {
		return nil
	}
	origin := obs[0].Timestamp

	var (
		notes []melody.ReferenceNote
		name  string
		start time.Time
		last  time.Time
	)
	flush := func(end time.Time) {
		if name == "" {
			return
		}
		if d := end.Sub(start); d >= minNote {
			midiNum, _ := pitch.NoteToMidi(name)
			notes = append(notes, melody.ReferenceNote{
				Onset:     start.Sub(origin).Seconds(),
				Duration:  d.Seconds(),
				Name:      name,
				Midi:      midiNum,
				Frequency: pitch.MidiToFrequency(float64(midiNum)),
			})
		}
		name = ""
	}

	for _, o := range obs {
		if !o.Valid() || o.Note == "" {
			flush(o.Timestamp)
			continue
		}
		if o.Note != name {
			flush(o.Timestamp)
			name, start = o.Note, o.Timestamp
		}
		last = o.Timestamp
	}
	if name != "" {
		// the final frame lasts one frame period; approximate with the
		// previous gap when there is one
		end := last
		if n := len(obs); n > 1 {
			end = last.Add(obs[n-1].Timestamp.Sub(obs[n-2].Timestamp))
		}
		flush(end)
	}
	return notes
}

type event struct {
	at  time.Duration
	on  bool
	key uint8
}

// Build renders notes into a single-track SMF named title.
func Build(title string, notes []melody.ReferenceNote) (*smf.SMF, error) {
	if len(notes) == 0 {
		return nil, ErrNoNotes
	}

	events := make([]event, 0, 2*len(notes))
	for _, n := range notes {
		if n.Midi < 0 || n.Midi > 127 || n.Duration <= 0 {
			continue
		}
		on := seconds(n.Onset)
		events = append(events,
			event{at: on, on: true, key: uint8(n.Midi)},
			event{at: on + seconds(n.Duration), on: false, key: uint8(n.Midi)},
		)
	}
	if len(events) == 0 {
		return nil, ErrNoNotes
	}
	// note-offs sort before note-ons at the same instant so repeated keys
	// retrigger cleanly
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].at != events[j].at {
			return events[i].at < events[j].at
		}
		return !events[i].on && events[j].on
	})

	s := smf.New()
	s.TimeFormat = resolution

	var tr smf.Track
	if title != "" {
		tr.Add(0, smf.MetaTrackSequenceName(title))
	}
	tr.Add(0, smf.MetaTempo(tempoBPM))

	var cursor time.Duration
	for _, ev := range events {
		delta := resolution.Ticks(tempoBPM, ev.at-cursor)
		cursor = ev.at
		if ev.on {
			tr.Add(delta, midi.NoteOn(channel, ev.key, velocity))
		} else {
			tr.Add(delta, midi.NoteOff(channel, ev.key))
		}
	}
	tr.Close(0)

	if err := s.Add(tr); err != nil {
		return nil, fmt.Errorf("add track: %w", err)
	}
	return s, nil
}

// Write encodes notes as an SMF to w.
func Write(w io.Writer, title string, notes []melody.ReferenceNote) error {
	s, err := Build(title, notes)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("write midi: %w", err)
	}
	return nil
}

// WriteFile encodes notes to path, creating parent directories.
func WriteFile(path, title string, notes []melody.ReferenceNote) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, title, notes); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
