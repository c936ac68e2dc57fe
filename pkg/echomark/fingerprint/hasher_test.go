package fingerprint

import (
	"errors"
	"testing"

	"github.com/rudrakapoor/EchoMark/pkg/models"
)

func testPair(anchorHz, targetHz float64, deltaMs int) LandmarkPair {
	return LandmarkPair{
		Anchor:      SpectralPeak{FrequencyHz: anchorHz},
		Target:      SpectralPeak{FrequencyHz: targetHz, TimeSeconds: float64(deltaMs) / 1000.0},
		TimeDeltaMs: deltaMs,
	}
}

func TestHashDeterminism(t *testing.T) {
	h := DefaultHasher()
	pair := testPair(1000, 1500, 750)

	first := h.Hash(pair)
	for i := 0; i < 10; i++ {
		if got := h.Hash(pair); got != first {
			t.Fatalf("hash changed between calls: %#x vs %#x", first, got)
		}
	}
}

func TestHashCollisionTolerance(t *testing.T) {
	h := DefaultHasher()

	// both pairs land in the same 10 Hz and 50 ms bins
	a := h.Hash(testPair(1000.0, 1500.0, 510))
	b := h.Hash(testPair(1004.0, 1503.5, 540))
	if a != b {
		t.Errorf("near-identical landmarks should collide: %#x vs %#x", a, b)
	}

	// crossing a frequency bin boundary changes the hash
	c := h.Hash(testPair(1010.0, 1500.0, 510))
	if a == c {
		t.Error("landmarks in different frequency bins should not collide")
	}

	// crossing a time bin boundary changes the hash
	d := h.Hash(testPair(1000.0, 1500.0, 560))
	if a == d {
		t.Error("landmarks in different time bins should not collide")
	}
}

func TestQuantizationClamping(t *testing.T) {
	h := DefaultHasher()

	if got := h.quantizeFrequency(-25); got != 0 {
		t.Errorf("negative frequency should quantize to bin 0, got %d", got)
	}
	if got := h.quantizeFrequency(1e9); got != 65535 {
		t.Errorf("oversized frequency should clamp to 65535, got %d", got)
	}
	if got := h.quantizeTime(-5); got != 0 {
		t.Errorf("negative time should quantize to bin 0, got %d", got)
	}
	if got := h.quantizeTime(1 << 30); got != 65535 {
		t.Errorf("oversized time should clamp to 65535, got %d", got)
	}

	// negative inputs behave like zero
	if h.Hash(testPair(-25, 1500, 510)) != h.Hash(testPair(0, 1500, 510)) {
		t.Error("negative anchor frequency should hash like bin 0")
	}
}

func TestHasherValidation(t *testing.T) {
	if _, err := NewHasher(0, 50); !errors.Is(err, models.ErrInvalidArgument) {
		t.Error("zero frequency quantization should be rejected")
	}
	if _, err := NewHasher(10, 0); !errors.Is(err, models.ErrInvalidArgument) {
		t.Error("zero time quantization should be rejected")
	}
	if _, err := NewHasher(-10, 50); !errors.Is(err, models.ErrInvalidArgument) {
		t.Error("negative frequency quantization should be rejected")
	}

	h := DefaultHasher()
	if err := h.SetFreqQuantization(20); err != nil {
		t.Errorf("valid frequency quantization rejected: %v", err)
	}
	if err := h.SetTimeQuantization(-1); !errors.Is(err, models.ErrInvalidArgument) {
		t.Error("negative time quantization should be rejected")
	}
}

func TestHasherQuantizationAffectsHash(t *testing.T) {
	coarse, err := NewHasher(100, 500)
	if err != nil {
		t.Fatal(err)
	}

	// under coarse quantization these two fall into the same bins
	a := coarse.Hash(testPair(1000, 1500, 510))
	b := coarse.Hash(testPair(1090, 1550, 910))
	if a != b {
		t.Errorf("coarse quantization should merge these landmarks: %#x vs %#x", a, b)
	}

	fine := DefaultHasher()
	if fine.Hash(testPair(1000, 1500, 510)) == fine.Hash(testPair(1090, 1550, 910)) {
		t.Error("default quantization should separate these landmarks")
	}
}

func TestGenerate(t *testing.T) {
	h := DefaultHasher()
	pairs := []LandmarkPair{
		{
			Anchor:      SpectralPeak{TimeSeconds: 0.5, FrequencyHz: 1000},
			Target:      SpectralPeak{TimeSeconds: 1.25, FrequencyHz: 1400},
			TimeDeltaMs: 750,
			FreqDeltaHz: 400,
		},
		{
			Anchor:      SpectralPeak{TimeSeconds: 0.75, FrequencyHz: 2000},
			Target:      SpectralPeak{TimeSeconds: 1.0, FrequencyHz: 1800},
			TimeDeltaMs: 250,
			FreqDeltaHz: -200,
		},
	}

	fps := h.Generate(pairs)
	if len(fps) != len(pairs) {
		t.Fatalf("expected %d fingerprints, got %d", len(pairs), len(fps))
	}

	for i, fp := range fps {
		if fp.Hash != h.Hash(pairs[i]) {
			t.Errorf("fingerprint %d: hash mismatch", i)
		}
		if fp.TimeOffsetMs != int32(pairs[i].Anchor.TimeSeconds*1000) {
			t.Errorf("fingerprint %d: offset %d ms", i, fp.TimeOffsetMs)
		}
		if fp.AnchorFreqHz != float32(pairs[i].Anchor.FrequencyHz) {
			t.Errorf("fingerprint %d: anchor frequency %g", i, fp.AnchorFreqHz)
		}
		if fp.TargetFreqHz != float32(pairs[i].Target.FrequencyHz) {
			t.Errorf("fingerprint %d: target frequency %g", i, fp.TargetFreqHz)
		}
		if fp.TimeDeltaMs != int32(pairs[i].TimeDeltaMs) {
			t.Errorf("fingerprint %d: time delta %d ms", i, fp.TimeDeltaMs)
		}
	}

	if got := h.Generate(nil); len(got) != 0 {
		t.Errorf("expected no fingerprints from no pairs, got %d", len(got))
	}
}
