// Package echomark computes compact, content-derived fingerprints from
// short audio clips: canonicalization, spectral transform, adaptive peak
// detection, landmark pairing, and quantized 32-bit hashing. The package
// performs no I/O; it consumes raw PCM float samples and returns
// fingerprint values owned by the caller.
package echomark

import (
	"fmt"
	"time"

	"github.com/rudrakapoor/EchoMark/pkg/echomark/audio"
	"github.com/rudrakapoor/EchoMark/pkg/echomark/fingerprint"
	"github.com/rudrakapoor/EchoMark/pkg/logger"
	"github.com/rudrakapoor/EchoMark/pkg/models"
)

// Engine owns the configured pipeline components, including the spectral
// transform's reusable scratch buffers. An engine is safe for concurrent
// use: calls that touch the scratch state are serialized on the
// transform's mutex. For parallel batch work, use one engine per worker.
type Engine struct {
	cfg       *Config
	transform *fingerprint.Transform
	detector  *fingerprint.Detector
	hasher    *fingerprint.Hasher
	log       Logger
}

// New builds an engine from the default configuration and the given
// options. All parameters are validated here; a misconfigured engine is
// never returned.
func New(opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	transform, err := fingerprint.NewTransform(cfg.FFTSize, cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	detector, err := fingerprint.NewDetector(cfg.MinPeakDistance, cfg.AdaptiveFactor, cfg.MinMagnitudeThreshold)
	if err != nil {
		return nil, err
	}
	hasher, err := fingerprint.NewHasher(cfg.FreqQuantizationHz, cfg.TimeQuantizationMs)
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	return &Engine{
		cfg:       cfg,
		transform: transform,
		detector:  detector,
		hasher:    hasher,
		log:       log,
	}, nil
}

// GenerateFingerprint runs the full pipeline on raw PCM samples and
// returns one fingerprint per landmark pair, ordered by anchor time then
// target time. It fails fast: no partial fingerprint list is returned.
func (e *Engine) GenerateFingerprint(samples []float64, sampleRate, channels int) ([]models.Fingerprint, error) {
	in := audio.Buffer{Samples: samples, SampleRate: sampleRate, Channels: channels}
	canonical, err := audio.Canonicalize(in, e.cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	spec, err := e.transform.Compute(canonical.Samples, e.cfg.WindowSize, e.cfg.HopSize)
	if err != nil {
		return nil, err
	}

	constellation, err := e.detector.DetectPeaks(spec)
	if err != nil {
		return nil, err
	}

	pairs, err := e.detector.PairLandmarks(constellation, e.cfg.MaxTimeDeltaMs, e.cfg.MaxFreqDeltaHz)
	if err != nil {
		return nil, err
	}

	fps := e.hasher.Generate(pairs)
	e.log.Debugf("fingerprinted %.2fs of audio: %d peaks, %d pairs, %d fingerprints",
		canonical.DurationSeconds(), len(constellation.Peaks), len(pairs), len(fps))
	return fps, nil
}

// BatchProcess fingerprints each track independently, timing wall-clock
// duration per track. One malformed track cannot abort the rest: its
// failure is captured in that track's result.
func (e *Engine) BatchProcess(tracks []audio.Buffer, ids []string) ([]models.BatchResult, error) {
	if len(tracks) != len(ids) {
		return nil, fmt.Errorf("%w: got %d tracks and %d ids",
			models.ErrInvalidArgument, len(tracks), len(ids))
	}

	results := make([]models.BatchResult, 0, len(tracks))
	for i, track := range tracks {
		res := models.BatchResult{TrackID: ids[i]}

		start := time.Now()
		fps, err := e.GenerateFingerprint(track.Samples, track.SampleRate, track.Channels)
		res.ProcessingTimeMs = int(time.Since(start).Milliseconds())

		if err != nil {
			failure := fmt.Errorf("%w: track %s: %v", models.ErrProcessingFailure, ids[i], err)
			res.ErrorMessage = failure.Error()
			e.log.Warnf("batch: %v", failure)
		} else {
			res.Fingerprints = fps
			res.DurationMs = track.DurationMs()
			res.Success = true
		}

		results = append(results, res)
	}
	return results, nil
}

// CanonicalizeAudio exposes the preprocessing stage on its own, for
// diagnostics and tests.
func (e *Engine) CanonicalizeAudio(samples []float64, sampleRate, channels int) (audio.Buffer, error) {
	in := audio.Buffer{Samples: samples, SampleRate: sampleRate, Channels: channels}
	return audio.Canonicalize(in, e.cfg.SampleRate)
}

// ComputeSpectrogram exposes the spectral stage on its own. The window
// size equals the FFT size; when fftSize differs from the engine's
// configured size a transform is built for the call.
func (e *Engine) ComputeSpectrogram(samples []float64, fftSize, hopSize int) (*fingerprint.Spectrogram, error) {
	t := e.transform
	if fftSize != e.cfg.FFTSize {
		var err error
		t, err = fingerprint.NewTransform(fftSize, e.cfg.SampleRate)
		if err != nil {
			return nil, err
		}
	}
	return t.Compute(samples, fftSize, hopSize)
}

// Validated runtime setters. The engine is single-writer for configuration
// changes; settle configuration before sharing an engine across goroutines.

func (e *Engine) SetFreqQuantization(quantizationHz float64) error {
	if err := e.hasher.SetFreqQuantization(quantizationHz); err != nil {
		return err
	}
	e.cfg.FreqQuantizationHz = quantizationHz
	return nil
}

func (e *Engine) SetTimeQuantization(quantizationMs int) error {
	if err := e.hasher.SetTimeQuantization(quantizationMs); err != nil {
		return err
	}
	e.cfg.TimeQuantizationMs = quantizationMs
	return nil
}

func (e *Engine) SetMinPeakDistance(distance int) error {
	if err := e.detector.SetMinPeakDistance(distance); err != nil {
		return err
	}
	e.cfg.MinPeakDistance = distance
	return nil
}

func (e *Engine) SetAdaptiveFactor(factor float64) error {
	if err := e.detector.SetAdaptiveFactor(factor); err != nil {
		return err
	}
	e.cfg.AdaptiveFactor = factor
	return nil
}

func (e *Engine) SetMinMagnitudeThreshold(threshold float64) error {
	if err := e.detector.SetMinMagnitudeThreshold(threshold); err != nil {
		return err
	}
	e.cfg.MinMagnitudeThreshold = threshold
	return nil
}

// Serialize encodes fingerprints into the stable little-endian layout.
func Serialize(fps []models.Fingerprint) []byte {
	return fingerprint.Serialize(fps)
}

// Deserialize decodes fingerprints produced by Serialize.
func Deserialize(data []byte) ([]models.Fingerprint, error) {
	return fingerprint.Deserialize(data)
}
