package audio

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/window"

	"github.com/rudrakapoor/EchoMark/pkg/models"
)

// TargetSampleRate is the canonical rate all audio is reduced to before
// spectral analysis.
const TargetSampleRate = 11025

// silenceFloor guards Normalize against dividing by a near-zero maximum.
const silenceFloor = 1e-10

// StereoToMono collapses an interleaved stereo buffer by averaging each
// L/R sample pair.
func StereoToMono(interleaved []float64) ([]float64, error) {
	if len(interleaved)%2 != 0 {
		return nil, fmt.Errorf("%w: stereo data length must be even, got %d",
			models.ErrInvalidArgument, len(interleaved))
	}

	mono := make([]float64, 0, len(interleaved)/2)
	for i := 0; i < len(interleaved); i += 2 {
		mono = append(mono, (interleaved[i]+interleaved[i+1])*0.5)
	}
	return mono, nil
}

// Resample converts data from inRate to outRate by linear interpolation.
// The output length is floor(len(data)*outRate/inRate). When the rates
// are equal the input is copied unchanged.
func Resample(data []float64, inRate, outRate int) ([]float64, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("%w: sample rates must be positive, got %d -> %d",
			models.ErrInvalidArgument, inRate, outRate)
	}
	if len(data) == 0 {
		return []float64{}, nil
	}

	out := make([]float64, 0, len(data)*outRate/inRate)
	if inRate == outRate {
		out = append(out, data...)
		return out, nil
	}

	ratio := float64(outRate) / float64(inRate)
	outLen := int(float64(len(data)) * ratio)

	for i := 0; i < outLen; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		if i0 >= len(data) {
			break
		}
		i1 := i0 + 1
		if i1 >= len(data) {
			i1 = len(data) - 1 // clamp at the end of the buffer
		}
		frac := src - float64(i0)
		out = append(out, data[i0]+frac*(data[i1]-data[i0]))
	}
	return out, nil
}

// Normalize scales the buffer so the largest absolute sample is 1.
// Near-silent input is returned unchanged to avoid dividing by zero.
func Normalize(data []float64) []float64 {
	maxAbs := 0.0
	for _, s := range data {
		if a := math.Abs(s); a > maxAbs {
			maxAbs = a
		}
	}

	out := make([]float64, len(data))
	if maxAbs < silenceFloor {
		copy(out, data)
		return out
	}

	scale := 1.0 / maxAbs
	for i, s := range data {
		out[i] = s * scale
	}
	return out
}

// HammingWindow returns Hamming coefficients of length n:
// 0.54 - 0.46*cos(2*pi*i/(n-1)).
func HammingWindow(n int) []float64 {
	return window.Hamming(n)
}

// HannWindow returns Hann coefficients of length n:
// 0.5*(1 - cos(2*pi*i/(n-1))).
func HannWindow(n int) []float64 {
	return window.Hann(n)
}

// ApplyWindow multiplies data elementwise by precomputed window
// coefficients. The lengths must match exactly.
func ApplyWindow(data, coeffs []float64) ([]float64, error) {
	if len(data) != len(coeffs) {
		return nil, fmt.Errorf("%w: data length %d must match window length %d",
			models.ErrInvalidArgument, len(data), len(coeffs))
	}

	out := make([]float64, len(data))
	for i, s := range data {
		out[i] = s * coeffs[i]
	}
	return out, nil
}

// Canonicalize reduces an arbitrary input buffer to the canonical form the
// rest of the pipeline expects: mono, targetRate, normalized to [-1, 1].
func Canonicalize(buf Buffer, targetRate int) (Buffer, error) {
	if buf.Empty() {
		return Buffer{}, fmt.Errorf("%w: audio buffer is empty", models.ErrInvalidArgument)
	}
	if targetRate <= 0 {
		return Buffer{}, fmt.Errorf("%w: target sample rate must be positive, got %d",
			models.ErrInvalidArgument, targetRate)
	}

	samples := buf.Samples
	switch {
	case buf.Channels == 1:
		// already mono
	case buf.Channels == 2:
		var err error
		samples, err = StereoToMono(samples)
		if err != nil {
			return Buffer{}, err
		}
	case buf.Channels > 2:
		return Buffer{}, fmt.Errorf("%w: %d channels, only mono and stereo are supported",
			models.ErrUnsupportedFormat, buf.Channels)
	default:
		return Buffer{}, fmt.Errorf("%w: channel count must be positive, got %d",
			models.ErrInvalidArgument, buf.Channels)
	}

	if buf.SampleRate != targetRate {
		var err error
		samples, err = Resample(samples, buf.SampleRate, targetRate)
		if err != nil {
			return Buffer{}, err
		}
	}

	return Buffer{
		Samples:    Normalize(samples),
		SampleRate: targetRate,
		Channels:   1,
	}, nil
}
