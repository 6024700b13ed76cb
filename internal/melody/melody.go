// Package melody supplies the reference melody of a song: an ordered list of
// notes extracted offline, its processing status and the user's saved sync
// offset.
package melody

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"

	"github.com/allpedroza/karaoke/internal/pitch"
)

// ErrNotFound is returned when a write targets a song without a ready melody.
var ErrNotFound = errors.New("melody not found")

// Status of a song's reference melody.
type Status string

const (
	StatusReady       Status = "ready"
	StatusProcessing  Status = "processing"
	StatusUnavailable Status = "unavailable"
)

// ReferenceNote is one note of the reference melody.
type ReferenceNote struct {
	Onset     float64 // seconds from the start of the video
	Duration  float64 // seconds
	Name      string  // e.g. "C#4"
	Midi      int
	Frequency float64 // Hz
}

// End returns the note's end time in seconds.
func (n ReferenceNote) End() float64 {
	return n.Onset + n.Duration
}

// Contains reports whether t falls inside the note, both ends inclusive.
func (n ReferenceNote) Contains(t float64) bool {
	return t >= n.Onset && t <= n.End()
}

// Overlaps reports whether the note intersects [start, end].
func (n ReferenceNote) Overlaps(start, end float64) bool {
	return n.End() >= start && n.Onset <= end
}

// Reference is a song's melody as delivered by a Provider.
type Reference struct {
	SongID     string
	Title      string
	Duration   float64
	Notes      []ReferenceNote
	Status     Status
	SyncOffset float64 // seconds added to the video clock
}

// Ready reports whether the melody can drive synchronized rendering.
func (r Reference) Ready() bool {
	return r.Status == StatusReady && len(r.Notes) > 0
}

// Unavailable is the reference returned for songs without a melody.
func Unavailable(songID string) Reference {
	return Reference{SongID: songID, Status: StatusUnavailable}
}

// Provider looks up reference melodies and persists sync calibration.
// Missing melodies are reported through Reference.Status, not as errors.
type Provider interface {
	Melody(ctx context.Context, songID string) (Reference, error)
	SaveSyncOffset(ctx context.Context, songID string, offset float64) error
}

// NoteRecord is the wire form of a reference note. Two shapes are accepted:
// {time, duration, note, midi?, frequency?} and the extraction service's
// {start, end, note, frequency, confidence}.
type NoteRecord struct {
	Time       *float64 `json:"time,omitempty"`
	Duration   *float64 `json:"duration,omitempty"`
	Start      *float64 `json:"start,omitempty"`
	End        *float64 `json:"end,omitempty"`
	Note       string   `json:"note"`
	Midi       *int     `json:"midi,omitempty"`
	Frequency  float64  `json:"frequency,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
}

// Normalize turns a record into a ReferenceNote. Malformed fields are
// repaired rather than rejected: an unknown name falls back to the record's
// MIDI number or frequency and finally to middle C.
func (r NoteRecord) Normalize() ReferenceNote {
	n := ReferenceNote{Name: r.Note}

	switch {
	case r.Time != nil:
		n.Onset = *r.Time
	case r.Start != nil:
		n.Onset = *r.Start
	}
	switch {
	case r.Duration != nil:
		n.Duration = *r.Duration
	case r.End != nil && r.Start != nil:
		n.Duration = *r.End - *r.Start
	}
	if !finite(n.Onset) {
		n.Onset = 0
	}
	if !finite(n.Duration) || n.Duration < 0 {
		n.Duration = 0
	}

	midi, named := pitch.NoteToMidi(r.Note)
	switch {
	case r.Midi != nil && *r.Midi >= 0 && *r.Midi <= 127:
		midi = *r.Midi
	case named:
	case r.Frequency > 0:
		midi = int(math.Round(pitch.FrequencyToMidi(r.Frequency)))
	default:
		midi = pitch.MiddleC
	}
	n.Midi = midi
	if !named {
		n.Name = pitch.MidiToNoteName(midi)
	}

	n.Frequency = r.Frequency
	if n.Frequency <= 0 || !finite(n.Frequency) {
		n.Frequency = pitch.MidiToFrequency(float64(midi))
	}
	return n
}

// Record converts a note back to its wire form.
func (n ReferenceNote) Record() NoteRecord {
	onset, duration, midi := n.Onset, n.Duration, n.Midi
	return NoteRecord{
		Time:      &onset,
		Duration:  &duration,
		Note:      n.Name,
		Midi:      &midi,
		Frequency: n.Frequency,
	}
}

// NormalizeRecords repairs every record and orders the result by onset.
func NormalizeRecords(records []NoteRecord) []ReferenceNote {
	notes := make([]ReferenceNote, 0, len(records))
	for _, r := range records {
		notes = append(notes, r.Normalize())
	}
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].Onset < notes[j].Onset
	})
	return notes
}

// DecodeNotes parses a JSON array of note records. Only invalid JSON is an
// error; individual bad notes are repaired.
func DecodeNotes(data []byte) ([]ReferenceNote, error) {
	var records []NoteRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return NormalizeRecords(records), nil
}

// EncodeNotes renders notes as a JSON array in the {time, duration, note,
// midi, frequency} shape.
func EncodeNotes(notes []ReferenceNote) ([]byte, error) {
	records := make([]NoteRecord, len(notes))
	for i, n := range notes {
		records[i] = n.Record()
	}
	return json.Marshal(records)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
