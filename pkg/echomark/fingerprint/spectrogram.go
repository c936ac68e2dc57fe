package fingerprint

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/rudrakapoor/EchoMark/pkg/echomark/audio"
	"github.com/rudrakapoor/EchoMark/pkg/models"
)

// Spectrogram is a time-major magnitude grid: Magnitudes[timeFrame][freqBin].
type Spectrogram struct {
	Magnitudes     [][]float64
	TimeResolution float64 // seconds per frame
	FreqResolution float64 // Hz per bin
}

// TimeFrames returns the number of analysis frames.
func (s *Spectrogram) TimeFrames() int {
	return len(s.Magnitudes)
}

// FrequencyBins returns the number of frequency bins per frame.
func (s *Spectrogram) FrequencyBins() int {
	if len(s.Magnitudes) == 0 {
		return 0
	}
	return len(s.Magnitudes[0])
}

// Transform computes magnitude spectrograms with a planned real-input FFT.
// The plan and its scratch buffers are owned by the instance and reused
// across calls; a mutex serializes concurrent use of that scratch state.
type Transform struct {
	mu         sync.Mutex
	fftSize    int
	sampleRate int
	fft        *fourier.FFT
	frame      []float64    // zero-padded input scratch, len fftSize
	coeffs     []complex128 // output scratch, len fftSize/2+1
	window     []float64    // Hann coefficients for the last window size
}

// NewTransform builds a transform for the given FFT size, which must be a
// positive power of two.
func NewTransform(fftSize, sampleRate int) (*Transform, error) {
	if fftSize <= 0 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("%w: fft size must be a positive power of two, got %d",
			models.ErrInvalidArgument, fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d",
			models.ErrInvalidArgument, sampleRate)
	}

	return &Transform{
		fftSize:    fftSize,
		sampleRate: sampleRate,
		fft:        fourier.NewFFT(fftSize),
		frame:      make([]float64, fftSize),
		coeffs:     make([]complex128, fftSize/2+1),
	}, nil
}

// FFTSize returns the configured FFT size.
func (t *Transform) FFTSize() int {
	return t.fftSize
}

// Compute runs the short-time transform over samples using overlapping
// Hann-windowed frames of windowSize samples spaced hopSize apart. Frames
// are zero-padded to the FFT size; each output row holds fftSize/2+1
// magnitude bins.
func (t *Transform) Compute(samples []float64, windowSize, hopSize int) (*Spectrogram, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: audio data is empty", models.ErrInvalidArgument)
	}
	if windowSize <= 0 || windowSize > t.fftSize {
		return nil, fmt.Errorf("%w: window size %d must be in (0, %d]",
			models.ErrInvalidArgument, windowSize, t.fftSize)
	}
	if hopSize <= 0 || hopSize > windowSize {
		return nil, fmt.Errorf("%w: hop size %d must be in (0, %d]",
			models.ErrInvalidArgument, hopSize, windowSize)
	}
	if len(samples) < windowSize {
		return nil, fmt.Errorf("%w: %d samples is shorter than one %d-sample window",
			models.ErrInvalidArgument, len(samples), windowSize)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.window) != windowSize {
		t.window = audio.HannWindow(windowSize)
	}

	numFrames := (len(samples)-windowSize)/hopSize + 1
	freqBins := t.fftSize/2 + 1

	spec := &Spectrogram{
		Magnitudes:     make([][]float64, numFrames),
		TimeResolution: float64(hopSize) / float64(t.sampleRate),
		FreqResolution: float64(t.sampleRate) / float64(t.fftSize),
	}

	for frameIdx := 0; frameIdx < numFrames; frameIdx++ {
		start := frameIdx * hopSize
		for i := 0; i < windowSize; i++ {
			if start+i < len(samples) {
				t.frame[i] = samples[start+i] * t.window[i]
			} else {
				t.frame[i] = 0 // zero padding past the buffer end
			}
		}
		for i := windowSize; i < t.fftSize; i++ {
			t.frame[i] = 0
		}

		t.fft.Coefficients(t.coeffs, t.frame)

		mags := make([]float64, freqBins)
		for bin, c := range t.coeffs {
			mags[bin] = math.Hypot(real(c), imag(c))
		}
		spec.Magnitudes[frameIdx] = mags
	}

	return spec, nil
}

// FrequencyToBin maps a frequency in Hz to its nearest FFT bin, clamped to
// [0, fftSize/2].
func (t *Transform) FrequencyToBin(freqHz float64) int {
	binWidth := float64(t.sampleRate) / float64(t.fftSize)
	bin := int(math.Round(freqHz / binWidth))
	if bin < 0 {
		bin = 0
	}
	if bin > t.fftSize/2 {
		bin = t.fftSize / 2
	}
	return bin
}

// BinToFrequency maps an FFT bin index back to its center frequency in Hz.
func (t *Transform) BinToFrequency(bin int) float64 {
	if bin < 0 {
		bin = 0
	}
	if bin > t.fftSize/2 {
		bin = t.fftSize / 2
	}
	return float64(bin) * float64(t.sampleRate) / float64(t.fftSize)
}
