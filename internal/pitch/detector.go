package pitch

import (
	"errors"
	"math"

	"github.com/allpedroza/karaoke/internal/audio"
)

// Errors
var (
	ErrEmptyBuffer = errors.New("empty audio buffer")
)

const (
	// DefaultSilenceThreshold is the RMS level below which a buffer is
	// treated as silence without running the lag search.
	DefaultSilenceThreshold = 0.01

	// DefaultCorrelationThreshold is the minimum normalized correlation a lag
	// must reach to be accepted as the period.
	DefaultCorrelationThreshold = 0.9

	// Highest fundamental the lag search accepts (Hz)
	maxDetectableFrequency = 1500.0

	// maxSampleDifference is the full-scale magnitude of a float sample,
	// used to normalize the mean absolute difference into [0, 1].
	maxSampleDifference = 1.0
)

// Result is one detector output. When Voiced is false the buffer carried no
// usable pitch and Frequency is zero; RMS and Confidence are still reported.
type Result struct {
	Voiced     bool
	Frequency  float64 // Hz, only meaningful when Voiced
	Confidence float64 // 0..1
	RMS        float64
}

// Voiced builds a pitched result.
func Voiced(frequency, confidence, rms float64) Result {
	return Result{Voiced: true, Frequency: frequency, Confidence: confidence, RMS: rms}
}

// Unvoiced builds a silent or unpitched result.
func Unvoiced(confidence, rms float64) Result {
	return Result{Confidence: confidence, RMS: rms}
}

// Pitch returns the frequency and whether the result is voiced.
func (r Result) Pitch() (float64, bool) {
	return r.Frequency, r.Voiced
}

// Detector defines the interface for pitch detection
type Detector interface {
	// DetectPitch analyzes an audio buffer and returns a pitch estimate.
	// Silence is reported as an unvoiced Result, not an error.
	DetectPitch(buffer *audio.AudioBuffer) (Result, error)
}

// AutocorrelationDetector estimates the fundamental with a normalized
// time-domain autocorrelation and picks the first strong peak.
type AutocorrelationDetector struct {
	silenceThreshold     float64
	correlationThreshold float64
}

// NewAutocorrelationDetector creates a detector with the default thresholds.
func NewAutocorrelationDetector() *AutocorrelationDetector {
	return &AutocorrelationDetector{
		silenceThreshold:     DefaultSilenceThreshold,
		correlationThreshold: DefaultCorrelationThreshold,
	}
}

// WithThresholds overrides the silence and correlation thresholds.
func (d *AutocorrelationDetector) WithThresholds(silence, correlation float64) *AutocorrelationDetector {
	d.silenceThreshold = silence
	d.correlationThreshold = correlation
	return d
}

// DetectPitch analyzes an audio buffer and returns the detected pitch
func (d *AutocorrelationDetector) DetectPitch(buffer *audio.AudioBuffer) (Result, error) {
	if buffer == nil || len(buffer.Samples) == 0 {
		return Result{}, ErrEmptyBuffer
	}
	return d.autoCorrelate(buffer.Samples, float64(buffer.SampleRate)), nil
}

func (d *AutocorrelationDetector) autoCorrelate(samples []float32, sampleRate float64) Result {
	size := len(samples)
	maxLag := size / 2

	rms := RMS(samples)
	if rms < d.silenceThreshold || maxLag < 2 || sampleRate <= 0 {
		return Unvoiced(0, rms)
	}

	minLag := int(sampleRate / maxDetectableFrequency)
	bestOffset := -1
	bestCorrelation := 0.0
	lastCorrelation := 1.0

	for offset := 0; offset < maxLag; offset++ {
		sum := 0.0
		for i := 0; i < maxLag; i++ {
			sum += math.Abs(float64(samples[i]) - float64(samples[i+offset]))
		}
		correlation := 1 - (sum/float64(maxLag))/maxSampleDifference

		if offset >= minLag && correlation > d.correlationThreshold && correlation > lastCorrelation {
			if correlation > bestCorrelation {
				bestCorrelation = correlation
				bestOffset = offset
			}
		} else if bestOffset > 0 && correlation < lastCorrelation {
			// past the first strong peak; later peaks are octave multiples
			break
		}
		lastCorrelation = correlation
	}

	if bestOffset <= 0 || bestCorrelation < d.correlationThreshold {
		return Unvoiced(bestCorrelation, rms)
	}

	return Voiced(sampleRate/float64(bestOffset), bestCorrelation, rms)
}

// RMS returns the root mean square level of samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, s := range samples {
		v := float64(s)
		sumSquares += v * v
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}
