package pitch

import (
	"math"
	"math/cmplx"
	"sort"

	"github.com/allpedroza/karaoke/internal/audio"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// FFTDetector implements pitch detection using FFT peak picking. It is less
// robust against octave errors than the autocorrelation detector and is kept
// as an alternative for noisy rooms where the time-domain search struggles.
type FFTDetector struct {
	minFrequency    float64 // Lowest frequency to detect (Hz)
	maxFrequency    float64 // Highest frequency to detect (Hz)
	peakThreshold   float64 // Minimum peak height as fraction of highest peak
	volumeThreshold float64 // Minimum RMS volume level for note detection
	lobeBins        int     // Bins either side of a harmonic counted as its energy
}

// NewFFTDetector creates a new FFT-based pitch detector
func NewFFTDetector() *FFTDetector {
	return &FFTDetector{
		minFrequency:    minVocalFrequency,
		maxFrequency:    maxVocalFrequency,
		peakThreshold:   0.2,
		volumeThreshold: DefaultSilenceThreshold,
		lobeBins:        2,
	}
}

// Peak represents a peak in the frequency spectrum
type Peak struct {
	Bin       int
	Magnitude float64
	Frequency float64
}

// DetectPitch analyzes an audio buffer and returns the detected pitch. The
// confidence is the share of in-band spectral energy that sits on the
// harmonic series of the chosen peak.
func (d *FFTDetector) DetectPitch(buffer *audio.AudioBuffer) (Result, error) {
	if buffer == nil || len(buffer.Samples) == 0 {
		return Result{}, ErrEmptyBuffer
	}

	rms := RMS(buffer.Samples)
	if rms < d.volumeThreshold {
		return Unvoiced(0, rms), nil
	}

	samples := make([]float64, len(buffer.Samples))
	for i, s := range buffer.Samples {
		samples[i] = float64(s)
	}
	window.Apply(samples, window.Hann)

	spectrum := fft.FFTReal(samples)
	binSizeHz := float64(buffer.SampleRate) / float64(len(spectrum))

	magnitudes, minBin, maxBin := d.bandMagnitudes(spectrum, binSizeHz)
	if maxBin-minBin < 2 {
		return Unvoiced(0, rms), nil
	}

	peak, ok := d.findFundamental(magnitudes, minBin, maxBin, binSizeHz)
	if !ok || peak.Frequency < d.minFrequency || peak.Frequency > d.maxFrequency {
		return Unvoiced(0, rms), nil
	}

	confidence := d.harmonicity(magnitudes, minBin, maxBin, peak.Bin)
	return Voiced(peak.Frequency, confidence, rms), nil
}

func (d *FFTDetector) bandMagnitudes(spectrum []complex128, binSizeHz float64) ([]float64, int, int) {
	// We only need to look at the first half of the spectrum (Nyquist theorem)
	half := spectrum[:len(spectrum)/2]

	minBin := int(d.minFrequency / binSizeHz)
	if minBin < 1 {
		minBin = 1 // Avoid DC component
	}
	maxBin := int(d.maxFrequency / binSizeHz)
	if maxBin >= len(half) {
		maxBin = len(half) - 1
	}

	magnitudes := make([]float64, len(half))
	for i := range half {
		magnitudes[i] = cmplx.Abs(half[i])
	}
	return magnitudes, minBin, maxBin
}

func (d *FFTDetector) findFundamental(mag []float64, minBin, maxBin int, binSizeHz float64) (Peak, bool) {
	maxMagnitude := 0.0
	for i := minBin; i <= maxBin; i++ {
		if mag[i] > maxMagnitude {
			maxMagnitude = mag[i]
		}
	}
	if maxMagnitude == 0 {
		return Peak{}, false
	}

	var peaks []Peak
	for i := minBin + 1; i < maxBin; i++ {
		if mag[i] <= mag[i-1] || mag[i] <= mag[i+1] || mag[i] <= maxMagnitude*d.peakThreshold {
			continue
		}

		// quadratic interpolation of the peak location
		prev, current, next := mag[i-1], mag[i], mag[i+1]
		freq := float64(i) * binSizeHz
		if denom := prev - 2*current + next; denom != 0 {
			freq = (float64(i) + 0.5*(prev-next)/denom) * binSizeHz
		}
		peaks = append(peaks, Peak{Bin: i, Magnitude: current, Frequency: freq})
	}

	if len(peaks) == 0 {
		return Peak{}, false
	}

	sort.Slice(peaks, func(i, j int) bool {
		return peaks[i].Magnitude > peaks[j].Magnitude
	})
	return peaks[0], true
}

func (d *FFTDetector) harmonicity(mag []float64, minBin, maxBin, peakBin int) float64 {
	total := 0.0
	for i := minBin; i <= maxBin; i++ {
		total += mag[i] * mag[i]
	}
	if total == 0 {
		return 0
	}

	harmonic := 0.0
	counted := make(map[int]bool)
	for k := 1; k*peakBin <= maxBin+d.lobeBins; k++ {
		center := k * peakBin
		for b := center - d.lobeBins; b <= center+d.lobeBins; b++ {
			if b < minBin || b > maxBin || counted[b] {
				continue
			}
			counted[b] = true
			harmonic += mag[b] * mag[b]
		}
	}
	return math.Min(1, harmonic/total)
}
