package fingerprint

import (
	"fmt"

	"github.com/rudrakapoor/EchoMark/pkg/models"
)

// Quantization defaults. Coarse bins give deliberate hash-collision
// tolerance for near-identical landmarks.
const (
	DefaultFreqQuantizationHz = 10.0
	DefaultTimeQuantizationMs = 50
)

// Hasher quantizes landmark pairs into deterministic 32-bit hashes.
type Hasher struct {
	freqQuantizationHz float64
	timeQuantizationMs int
}

// NewHasher validates and builds a hasher.
func NewHasher(freqQuantizationHz float64, timeQuantizationMs int) (*Hasher, error) {
	h := &Hasher{}
	if err := h.SetFreqQuantization(freqQuantizationHz); err != nil {
		return nil, err
	}
	if err := h.SetTimeQuantization(timeQuantizationMs); err != nil {
		return nil, err
	}
	return h, nil
}

// DefaultHasher returns a hasher with the standard quantization steps.
func DefaultHasher() *Hasher {
	return &Hasher{
		freqQuantizationHz: DefaultFreqQuantizationHz,
		timeQuantizationMs: DefaultTimeQuantizationMs,
	}
}

// SetFreqQuantization updates the frequency bin width in Hz.
func (h *Hasher) SetFreqQuantization(quantizationHz float64) error {
	if quantizationHz <= 0 {
		return fmt.Errorf("%w: frequency quantization must be positive, got %g",
			models.ErrInvalidArgument, quantizationHz)
	}
	h.freqQuantizationHz = quantizationHz
	return nil
}

// SetTimeQuantization updates the time bin width in milliseconds.
func (h *Hasher) SetTimeQuantization(quantizationMs int) error {
	if quantizationMs <= 0 {
		return fmt.Errorf("%w: time quantization must be positive, got %d",
			models.ErrInvalidArgument, quantizationMs)
	}
	h.timeQuantizationMs = quantizationMs
	return nil
}

// quantizeFrequency maps a frequency to its 16-bit bin. Negative input
// maps to bin 0; oversized values clamp at 65535.
func (h *Hasher) quantizeFrequency(freqHz float64) uint16 {
	if freqHz < 0 {
		return 0
	}
	bin := freqHz / h.freqQuantizationHz
	if bin > 65535 {
		return 65535
	}
	return uint16(bin)
}

// quantizeTime maps a millisecond delta to its 16-bit bin.
func (h *Hasher) quantizeTime(timeMs int) uint16 {
	if timeMs < 0 {
		return 0
	}
	bin := timeMs / h.timeQuantizationMs
	if bin > 65535 {
		return 65535
	}
	return uint16(bin)
}

// mix32 is Robert Jenkins' 32-bit integer hash. uint32 arithmetic wraps on
// overflow, which the avalanche steps rely on.
func mix32(v uint32) uint32 {
	v = (v + 0x7ed55d16) + (v << 12)
	v = (v ^ 0xc761c23c) ^ (v >> 19)
	v = (v + 0x165667b1) + (v << 5)
	v = (v + 0xd3a2646c) ^ (v << 9)
	v = (v + 0xfd7046c5) + (v << 3)
	v = (v ^ 0xb55a4f09) ^ (v >> 16)
	return v
}

// Hash combines the quantized anchor frequency, target frequency, and time
// delta of a landmark pair into one well-distributed 32-bit value.
func (h *Hasher) Hash(pair LandmarkPair) uint32 {
	a := uint32(h.quantizeFrequency(pair.Anchor.FrequencyHz))
	b := uint32(h.quantizeFrequency(pair.Target.FrequencyHz))
	c := uint32(h.quantizeTime(pair.TimeDeltaMs))
	return mix32(a) ^ mix32(b) ^ mix32(c)
}

// Generate converts landmark pairs into fingerprint records, preserving
// the pair order.
func (h *Hasher) Generate(pairs []LandmarkPair) []models.Fingerprint {
	fps := make([]models.Fingerprint, 0, len(pairs))
	for _, p := range pairs {
		fps = append(fps, models.Fingerprint{
			Hash:         h.Hash(p),
			TimeOffsetMs: int32(p.Anchor.TimeSeconds * 1000.0),
			AnchorFreqHz: float32(p.Anchor.FrequencyHz),
			TargetFreqHz: float32(p.Target.FrequencyHz),
			TimeDeltaMs:  int32(p.TimeDeltaMs),
		})
	}
	return fps
}
