package session

import (
	"math"
	"time"

	"github.com/allpedroza/karaoke/internal/pitch"
)

// validConfidence is the confidence an observation must exceed to count as
// sung pitch in the statistics.
const validConfidence = 0.8

// Observation is one analyzed frame. Frequency is 0 for silent or unpitched
// frames; Note is empty when the frequency is outside the vocal range.
type Observation struct {
	Frequency  float64
	Confidence float64
	RMS        float64
	Timestamp  time.Time
	Note       string
	Cents      int
}

// NewObservation converts a detector result into an observation. Voiced
// results are classified first and then stored rounded to whole hertz;
// weakly voiced results are recorded as silence with their measured
// confidence and level.
func NewObservation(r pitch.Result, at time.Time) Observation {
	if !r.Voiced || r.Confidence <= validConfidence || r.Frequency <= 0 {
		return Observation{Confidence: r.Confidence, RMS: r.RMS, Timestamp: at}
	}
	note, cents := pitch.FrequencyToNote(r.Frequency)
	return Observation{
		Frequency:  math.Round(r.Frequency),
		Confidence: r.Confidence,
		RMS:        r.RMS,
		Timestamp:  at,
		Note:       note,
		Cents:      cents,
	}
}

// Valid reports whether the observation counts towards pitch statistics.
func (o Observation) Valid() bool {
	return o.Confidence > validConfidence && o.Frequency > 0
}

// Midi returns the continuous MIDI value of a valid observation.
func (o Observation) Midi() (float64, bool) {
	if !o.Valid() {
		return 0, false
	}
	return pitch.FrequencyToMidi(o.Frequency), true
}
