package models

import "errors"

// Error taxonomy for the fingerprinting core. Callers match these with
// errors.Is; every failure in the core wraps exactly one of them.
var (
	// ErrInvalidArgument covers malformed sizes and out-of-range values:
	// odd-length stereo buffers, non-power-of-two FFT sizes, non-positive
	// sample rates, bad detector parameters, mismatched batch lengths.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedFormat is returned for audio with more than two channels.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrProcessingFailure wraps a per-track pipeline error inside a batch.
	ErrProcessingFailure = errors.New("processing failure")

	// ErrCorruptData is returned when serialized fingerprint data is shorter
	// than its declared record count implies.
	ErrCorruptData = errors.New("corrupt fingerprint data")
)
