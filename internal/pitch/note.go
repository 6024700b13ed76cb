package pitch

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// ReferenceA4 is the tuning reference for every conversion in this package.
	ReferenceA4 = 440.0

	// MiddleC is the MIDI number of C4.
	MiddleC = 60

	// Vocal range accepted by FrequencyToNote (Hz)
	minVocalFrequency = 60.0
	maxVocalFrequency = 1100.0

	// Chromatic table bounds (C2..C6)
	tableLowMidi  = 36
	tableHighMidi = 84
)

// All note names in chromatic order
var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var semitoneOffsets = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// Note represents a musical note
type Note struct {
	Name      string  // e.g., "A", "A#", "B"
	Octave    int     // e.g., 4 for middle C (C4)
	Frequency float64 // Frequency in Hz
	Cents     int     // Cents deviation from the table entry (-50 to +50)
}

// String returns the scientific pitch name, e.g. "A4".
func (n Note) String() string {
	if n.Name == "" {
		return ""
	}
	return fmt.Sprintf("%s%d", n.Name, n.Octave)
}

type tableEntry struct {
	name string
	freq float64
}

// noteTable holds the equal-tempered frequencies from C2 to C6.
var noteTable = buildNoteTable()

func buildNoteTable() []tableEntry {
	table := make([]tableEntry, 0, tableHighMidi-tableLowMidi+1)
	for m := tableLowMidi; m <= tableHighMidi; m++ {
		table = append(table, tableEntry{name: MidiToNoteName(m), freq: MidiToFrequency(float64(m))})
	}
	return table
}

// Classify returns the nearest chromatic note to frequency. ok is false when
// the frequency lies outside the vocal range.
func Classify(frequency float64) (note Note, ok bool) {
	if math.IsNaN(frequency) || frequency < minVocalFrequency || frequency > maxVocalFrequency {
		return Note{}, false
	}

	closest := noteTable[0]
	minDiff := math.Inf(1)
	closestMidi := tableLowMidi
	for i, entry := range noteTable {
		diff := math.Abs(frequency - entry.freq)
		if diff < minDiff {
			minDiff = diff
			closest = entry
			closestMidi = tableLowMidi + i
		}
	}

	return Note{
		Name:      noteNames[closestMidi%12],
		Octave:    closestMidi/12 - 1,
		Frequency: frequency,
		Cents:     int(math.Round(1200 * math.Log2(frequency/closest.freq))),
	}, true
}

// FrequencyToNote returns the nearest note name and the deviation from it in
// cents. Frequencies outside roughly 60-1100 Hz yield ("", 0).
func FrequencyToNote(frequency float64) (string, int) {
	note, ok := Classify(frequency)
	if !ok {
		return "", 0
	}
	return note.String(), note.Cents
}

// NoteToMidi parses a scientific pitch name such as "C4", "F#3", "Bb2" or
// "C-1". MIDI 60 is C4.
func NoteToMidi(name string) (int, bool) {
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return 0, false
	}

	base, ok := semitoneOffsets[upper(name[0])]
	if !ok {
		return 0, false
	}

	rest := name[1:]
	switch rest[0] {
	case '#':
		base++
		rest = rest[1:]
	case 'b':
		base--
		rest = rest[1:]
	}

	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}

	midi := (octave+1)*12 + base
	if midi < 0 || midi > 127 {
		return 0, false
	}
	return midi, true
}

// MidiToNoteName returns the sharp-spelled name of a MIDI number.
func MidiToNoteName(midi int) string {
	octave := floorDiv(midi, 12) - 1
	return fmt.Sprintf("%s%d", noteNames[midi-floorDiv(midi, 12)*12], octave)
}

// FrequencyToMidi returns the continuous MIDI value of frequency. Non-positive
// input yields 0.
func FrequencyToMidi(frequency float64) float64 {
	if frequency <= 0 || math.IsNaN(frequency) {
		return 0
	}
	return 69 + 12*math.Log2(frequency/ReferenceA4)
}

// MidiToFrequency is the inverse of FrequencyToMidi.
func MidiToFrequency(midi float64) float64 {
	return ReferenceA4 * math.Pow(2, (midi-69)/12)
}

// NoteToFrequency converts a note name to its equal-tempered frequency.
func NoteToFrequency(name string) (float64, bool) {
	midi, ok := NoteToMidi(name)
	if !ok {
		return 0, false
	}
	return MidiToFrequency(float64(midi)), true
}

// PitchClass strips accidentals and octave: "C#4" -> "C".
func PitchClass(name string) string {
	if name == "" {
		return ""
	}
	c := upper(name[0])
	if _, ok := semitoneOffsets[c]; !ok {
		return ""
	}
	return string(c)
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
