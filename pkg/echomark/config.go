package echomark

import (
	"fmt"

	"github.com/rudrakapoor/EchoMark/pkg/echomark/audio"
	"github.com/rudrakapoor/EchoMark/pkg/echomark/fingerprint"
	"github.com/rudrakapoor/EchoMark/pkg/models"
)

// Logger is the logging surface the engine needs. pkg/logger satisfies it.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Config holds every tunable of the fingerprinting pipeline. Values are
// validated once at engine construction; there is no hidden global state.
type Config struct {
	SampleRate int // canonical rate audio is reduced to
	FFTSize    int // power-of-two transform size
	WindowSize int // analysis window, <= FFTSize
	HopSize    int // samples between frames, in (0, WindowSize]

	MinPeakDistance       int
	AdaptiveFactor        float64
	MinMagnitudeThreshold float64

	MaxTimeDeltaMs int
	MaxFreqDeltaHz float64

	FreqQuantizationHz float64
	TimeQuantizationMs int

	Logger Logger
}

// Option mutates a Config before validation.
type Option func(*Config)

func WithSampleRate(rate int) Option {
	return func(c *Config) { c.SampleRate = rate }
}

func WithFFTSize(size int) Option {
	return func(c *Config) { c.FFTSize = size }
}

func WithWindowSize(size int) Option {
	return func(c *Config) { c.WindowSize = size }
}

func WithHopSize(size int) Option {
	return func(c *Config) { c.HopSize = size }
}

// WithPeakDetection sets the constellation extraction parameters.
func WithPeakDetection(minDistance int, adaptiveFactor, minMagnitude float64) Option {
	return func(c *Config) {
		c.MinPeakDistance = minDistance
		c.AdaptiveFactor = adaptiveFactor
		c.MinMagnitudeThreshold = minMagnitude
	}
}

// WithPairing sets the landmark pairing bounds.
func WithPairing(maxTimeDeltaMs int, maxFreqDeltaHz float64) Option {
	return func(c *Config) {
		c.MaxTimeDeltaMs = maxTimeDeltaMs
		c.MaxFreqDeltaHz = maxFreqDeltaHz
	}
}

// WithQuantization sets the hash quantization steps.
func WithQuantization(freqHz float64, timeMs int) Option {
	return func(c *Config) {
		c.FreqQuantizationHz = freqHz
		c.TimeQuantizationMs = timeMs
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) { c.Logger = log }
}

func defaultConfig() *Config {
	return &Config{
		SampleRate:            audio.TargetSampleRate,
		FFTSize:               2048,
		WindowSize:            2048,
		HopSize:               1024,
		MinPeakDistance:       fingerprint.DefaultMinPeakDistance,
		AdaptiveFactor:        fingerprint.DefaultAdaptiveFactor,
		MinMagnitudeThreshold: fingerprint.DefaultMinMagnitudeThreshold,
		MaxTimeDeltaMs:        fingerprint.DefaultMaxTimeDeltaMs,
		MaxFreqDeltaHz:        fingerprint.DefaultMaxFreqDeltaHz,
		FreqQuantizationHz:    fingerprint.DefaultFreqQuantizationHz,
		TimeQuantizationMs:    fingerprint.DefaultTimeQuantizationMs,
	}
}

// validate checks the cross-component constraints; per-component ranges
// are checked again by the component constructors.
func (c *Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d",
			models.ErrInvalidArgument, c.SampleRate)
	}
	if c.WindowSize <= 0 || c.WindowSize > c.FFTSize {
		return fmt.Errorf("%w: window size %d must be in (0, fft size %d]",
			models.ErrInvalidArgument, c.WindowSize, c.FFTSize)
	}
	if c.HopSize <= 0 || c.HopSize > c.WindowSize {
		return fmt.Errorf("%w: hop size %d must be in (0, window size %d]",
			models.ErrInvalidArgument, c.HopSize, c.WindowSize)
	}
	if c.MaxTimeDeltaMs < 0 || c.MaxFreqDeltaHz < 0 {
		return fmt.Errorf("%w: pairing bounds must be non-negative",
			models.ErrInvalidArgument)
	}
	return nil
}
