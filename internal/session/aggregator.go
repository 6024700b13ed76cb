package session

import (
	"math"
	"sync"
)

// accuracyCentsWeight maps mean absolute cents deviation to accuracy loss:
// a mean deviation of 50 cents (half a semitone) scores 0%.
const accuracyCentsWeight = 2.0

// ChorusHeuristic holds the tunable constants of the crowd/chorus guess. It
// counts loudness spikes; it is a best-effort signal, not a detector with a
// known accuracy.
type ChorusHeuristic struct {
	RMSFactor   float64 // spike threshold as a multiple of mean RMS
	MinPeaks    int     // rising edges needed
	MinPresence float64 // valid/total ratio needed
}

// DefaultChorusHeuristic returns the shipped constants.
func DefaultChorusHeuristic() ChorusHeuristic {
	return ChorusHeuristic{RMSFactor: 1.8, MinPeaks: 3, MinPresence: 0.4}
}

// Stats summarizes a recording for scoring.
type Stats struct {
	AverageFrequency  float64  // Hz
	Stability         float64  // 0..100
	Accuracy          float64  // 0..100
	DistinctNotes     []string // first-seen order
	TotalSamples      int
	ValidSamples      int
	ChorusDetected    bool
	PeakVolumeMoments int
}

// Aggregator keeps the full observation history of one recording.
type Aggregator struct {
	mu      sync.Mutex
	history []Observation
	chorus  ChorusHeuristic
}

// NewAggregator creates an empty aggregator using the default heuristic.
func NewAggregator() *Aggregator {
	return &Aggregator{chorus: DefaultChorusHeuristic()}
}

// WithChorusHeuristic replaces the chorus constants.
func (a *Aggregator) WithChorusHeuristic(h ChorusHeuristic) *Aggregator {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chorus = h
	return a
}

// Add appends an observation.
func (a *Aggregator) Add(o Observation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, o)
}

// Reset drops the history.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}

// Len returns the number of recorded observations.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.history)
}

// History returns a copy of the recorded observations.
func (a *Aggregator) History() []Observation {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Observation, len(a.history))
	copy(out, a.history)
	return out
}

// Stats computes the summary over everything recorded so far.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ComputeStats(a.history, a.chorus)
}

// ComputeStats reduces an observation history to Stats. It never fails:
// with no valid samples every score is 0.
func ComputeStats(history []Observation, chorus ChorusHeuristic) Stats {
	stats := Stats{TotalSamples: len(history), DistinctNotes: []string{}}

	var valid []Observation
	for _, o := range history {
		if o.Valid() {
			valid = append(valid, o)
		}
	}
	stats.ValidSamples = len(valid)
	if len(valid) == 0 {
		return stats
	}

	n := float64(len(valid))
	sum := 0.0
	for _, o := range valid {
		sum += o.Frequency
	}
	avg := sum / n
	stats.AverageFrequency = avg

	variance := 0.0
	for _, o := range valid {
		d := o.Frequency - avg
		variance += d * d
	}
	stdDev := math.Sqrt(variance / n)
	stats.Stability = math.Max(0, 100-(stdDev/avg)*100)

	seen := make(map[string]bool)
	centsSum := 0.0
	for _, o := range valid {
		centsSum += math.Abs(float64(o.Cents))
		if o.Note != "" && !seen[o.Note] {
			seen[o.Note] = true
			stats.DistinctNotes = append(stats.DistinctNotes, o.Note)
		}
	}
	stats.Accuracy = math.Max(0, 100-accuracyCentsWeight*(centsSum/n))

	stats.PeakVolumeMoments = countVolumePeaks(history, chorus.RMSFactor)
	presence := n / math.Max(1, float64(len(history)))
	stats.ChorusDetected = stats.PeakVolumeMoments >= chorus.MinPeaks && presence > chorus.MinPresence

	return stats
}

// countVolumePeaks counts rising edges across factor x mean RMS. Frames with
// zero RMS carry no signal and are left out of the mean.
func countVolumePeaks(history []Observation, factor float64) int {
	sum, count := 0.0, 0
	for _, o := range history {
		if o.RMS > 0 {
			sum += o.RMS
			count++
		}
	}
	if count == 0 {
		return 0
	}
	threshold := (sum / float64(count)) * factor

	peaks := 0
	inPeak := false
	for _, o := range history {
		if o.RMS > threshold {
			if !inPeak {
				peaks++
				inPeak = true
			}
		} else {
			inPeak = false
		}
	}
	return peaks
}
