package fingerprint

import (
	"fmt"
	"math"
	"sort"

	"github.com/rudrakapoor/EchoMark/pkg/models"
)

// Detector defaults and neighborhood sizes.
const (
	DefaultMinPeakDistance       = 3
	DefaultAdaptiveFactor        = 0.7
	DefaultMinMagnitudeThreshold = 0.01

	DefaultMaxTimeDeltaMs = 2000
	DefaultMaxFreqDeltaHz = 2000.0

	localMaxRegion  = 3  // strict local-maximum check spans +/- 1 cell
	thresholdRegion = 10 // adaptive threshold averages over +/- 5 cells
)

// SpectralPeak is one constellation point: a strict local maximum whose
// magnitude cleared the adaptive threshold at detection time.
type SpectralPeak struct {
	TimeFrame    int
	FrequencyBin int
	Magnitude    float64
	FrequencyHz  float64
	TimeSeconds  float64
}

// LandmarkPair is the atomic unit that gets hashed: an anchor peak and a
// later target peak within bounded time and frequency distance.
type LandmarkPair struct {
	Anchor      SpectralPeak
	Target      SpectralPeak
	TimeDeltaMs int
	FreqDeltaHz float64
}

// NewLandmarkPair derives the deltas from the two peaks.
func NewLandmarkPair(anchor, target SpectralPeak) LandmarkPair {
	return LandmarkPair{
		Anchor:      anchor,
		Target:      target,
		TimeDeltaMs: int((target.TimeSeconds - anchor.TimeSeconds) * 1000.0),
		FreqDeltaHz: target.FrequencyHz - anchor.FrequencyHz,
	}
}

// ConstellationMap is the ordered set of detected peaks for one audio
// buffer, plus the resolution metadata of the spectrogram it came from.
type ConstellationMap struct {
	Peaks          []SpectralPeak
	TimeFrames     int
	FrequencyBins  int
	TimeResolution float64
	FreqResolution float64
}

// Detector extracts sparse spectral peaks and pairs them into landmarks.
type Detector struct {
	minPeakDistance       int
	adaptiveFactor        float64
	minMagnitudeThreshold float64
}

// NewDetector validates and builds a peak detector.
func NewDetector(minPeakDistance int, adaptiveFactor, minMagnitudeThreshold float64) (*Detector, error) {
	d := &Detector{}
	if err := d.SetMinPeakDistance(minPeakDistance); err != nil {
		return nil, err
	}
	if err := d.SetAdaptiveFactor(adaptiveFactor); err != nil {
		return nil, err
	}
	if err := d.SetMinMagnitudeThreshold(minMagnitudeThreshold); err != nil {
		return nil, err
	}
	return d, nil
}

// DefaultDetector returns a detector with the standard parameters.
func DefaultDetector() *Detector {
	return &Detector{
		minPeakDistance:       DefaultMinPeakDistance,
		adaptiveFactor:        DefaultAdaptiveFactor,
		minMagnitudeThreshold: DefaultMinMagnitudeThreshold,
	}
}

// SetMinPeakDistance updates the spatial sparsity constraint, in bins.
func (d *Detector) SetMinPeakDistance(distance int) error {
	if distance <= 0 {
		return fmt.Errorf("%w: minimum peak distance must be positive, got %d",
			models.ErrInvalidArgument, distance)
	}
	d.minPeakDistance = distance
	return nil
}

// SetAdaptiveFactor updates the adaptive threshold factor in [0, 1].
func (d *Detector) SetAdaptiveFactor(factor float64) error {
	if factor < 0 || factor > 1 {
		return fmt.Errorf("%w: adaptive factor must be in [0, 1], got %g",
			models.ErrInvalidArgument, factor)
	}
	d.adaptiveFactor = factor
	return nil
}

// SetMinMagnitudeThreshold updates the absolute magnitude floor.
func (d *Detector) SetMinMagnitudeThreshold(threshold float64) error {
	if threshold < 0 {
		return fmt.Errorf("%w: magnitude threshold must be non-negative, got %g",
			models.ErrInvalidArgument, threshold)
	}
	d.minMagnitudeThreshold = threshold
	return nil
}

// DetectPeaks scans the interior of the spectrogram for strict local maxima
// that clear both the absolute floor and a locally computed adaptive
// threshold, then thins them to the configured minimum distance.
func (d *Detector) DetectPeaks(spec *Spectrogram) (*ConstellationMap, error) {
	if spec == nil || len(spec.Magnitudes) == 0 {
		return nil, fmt.Errorf("%w: spectrogram is empty", models.ErrInvalidArgument)
	}

	frames := spec.TimeFrames()
	bins := spec.FrequencyBins()

	var candidates []SpectralPeak
	for tf := 1; tf < frames-1; tf++ {
		for fb := 1; fb < bins-1; fb++ {
			mag := spec.Magnitudes[tf][fb]
			if mag < d.minMagnitudeThreshold {
				continue
			}
			if !isLocalMaximum(spec, tf, fb) {
				continue
			}
			if mag < d.adaptiveThreshold(spec, tf, fb) {
				continue
			}
			candidates = append(candidates, SpectralPeak{
				TimeFrame:    tf,
				FrequencyBin: fb,
				Magnitude:    mag,
				TimeSeconds:  float64(tf) * spec.TimeResolution,
				FrequencyHz:  float64(fb) * spec.FreqResolution,
			})
		}
	}

	return &ConstellationMap{
		Peaks:          d.filterNearbyPeaks(candidates),
		TimeFrames:     frames,
		FrequencyBins:  bins,
		TimeResolution: spec.TimeResolution,
		FreqResolution: spec.FreqResolution,
	}, nil
}

// isLocalMaximum reports whether the cell strictly dominates every in-bounds
// neighbor of its 3x3 neighborhood.
func isLocalMaximum(spec *Spectrogram, timeFrame, freqBin int) bool {
	center := spec.Magnitudes[timeFrame][freqBin]
	half := localMaxRegion / 2

	for dt := -half; dt <= half; dt++ {
		for df := -half; df <= half; df++ {
			if dt == 0 && df == 0 {
				continue
			}
			tf := timeFrame + dt
			fb := freqBin + df
			if tf < 0 || tf >= spec.TimeFrames() || fb < 0 || fb >= spec.FrequencyBins() {
				continue
			}
			if spec.Magnitudes[tf][fb] >= center {
				return false
			}
		}
	}
	return true
}

// adaptiveThreshold is the mean magnitude over the surrounding region
// scaled by (1 + adaptiveFactor), floored at the absolute threshold. A
// local cutoff tolerates loudness variation across a track.
func (d *Detector) adaptiveThreshold(spec *Spectrogram, timeFrame, freqBin int) float64 {
	half := thresholdRegion / 2
	sum := 0.0
	count := 0

	for dt := -half; dt <= half; dt++ {
		for df := -half; df <= half; df++ {
			tf := timeFrame + dt
			fb := freqBin + df
			if tf < 0 || tf >= spec.TimeFrames() || fb < 0 || fb >= spec.FrequencyBins() {
				continue
			}
			sum += spec.Magnitudes[tf][fb]
			count++
		}
	}

	if count == 0 {
		return d.minMagnitudeThreshold
	}

	threshold := sum / float64(count) * (1.0 + d.adaptiveFactor)
	return math.Max(threshold, d.minMagnitudeThreshold)
}

// filterNearbyPeaks keeps the strongest peaks first and greedily drops any
// candidate within minPeakDistance (Euclidean, in frame/bin space) of an
// already accepted peak. The stable sort keeps the result deterministic.
func (d *Detector) filterNearbyPeaks(candidates []SpectralPeak) []SpectralPeak {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]SpectralPeak, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Magnitude > sorted[j].Magnitude
	})

	minDistSq := d.minPeakDistance * d.minPeakDistance

	var accepted []SpectralPeak
	for _, peak := range sorted {
		tooClose := false
		for _, kept := range accepted {
			dt := peak.TimeFrame - kept.TimeFrame
			df := peak.FrequencyBin - kept.FrequencyBin
			if dt*dt+df*df < minDistSq {
				tooClose = true
				break
			}
		}
		if !tooClose {
			accepted = append(accepted, peak)
		}
	}
	return accepted
}

// PairLandmarks pairs each anchor with every later peak inside the time and
// frequency bounds. Peaks are scanned in time order, so the inner loop can
// stop at the first target past the time bound.
func (d *Detector) PairLandmarks(cm *ConstellationMap, maxTimeDeltaMs int, maxFreqDeltaHz float64) ([]LandmarkPair, error) {
	if cm == nil {
		return nil, fmt.Errorf("%w: constellation map is nil", models.ErrInvalidArgument)
	}
	if maxTimeDeltaMs < 0 || maxFreqDeltaHz < 0 {
		return nil, fmt.Errorf("%w: pairing bounds must be non-negative, got %d ms / %g Hz",
			models.ErrInvalidArgument, maxTimeDeltaMs, maxFreqDeltaHz)
	}
	if len(cm.Peaks) == 0 {
		return nil, nil
	}

	peaks := make([]SpectralPeak, len(cm.Peaks))
	copy(peaks, cm.Peaks)
	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].TimeSeconds < peaks[j].TimeSeconds
	})

	var pairs []LandmarkPair
	for i := range peaks {
		anchor := peaks[i]
		for j := i + 1; j < len(peaks); j++ {
			target := peaks[j]
			deltaMs := (target.TimeSeconds - anchor.TimeSeconds) * 1000.0
			if deltaMs > float64(maxTimeDeltaMs) {
				break // time-sorted: no later candidate can qualify either
			}
			if math.Abs(target.FrequencyHz-anchor.FrequencyHz) <= maxFreqDeltaHz {
				pairs = append(pairs, NewLandmarkPair(anchor, target))
			}
		}
	}
	return pairs, nil
}
