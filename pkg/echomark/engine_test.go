package echomark

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/rudrakapoor/EchoMark/pkg/echomark/audio"
	"github.com/rudrakapoor/EchoMark/pkg/models"
)

const testRate = 11025

// synthMelody synthesizes a sequence of half-second notes whose frequencies
// sit exactly on FFT bin centers for a 2048-point transform at 11025 Hz.
// Each note carries a raised-cosine envelope so its spectral peak has a
// clear maximum in time as well as frequency.
func synthMelody(seconds float64) []float64 {
	bins := []int{120, 160, 140, 200, 180, 240, 220, 280, 260, 320}
	noteLen := testRate / 2
	out := make([]float64, int(seconds*testRate))
	for i := range out {
		note := (i / noteLen) % len(bins)
		pos := i % noteLen
		freq := float64(bins[note]) * testRate / 2048.0
		env := 0.5 * (1.0 - math.Cos(2*math.Pi*float64(pos)/float64(noteLen-1)))
		out[i] = env * math.Sin(2*math.Pi*freq*float64(i)/testRate)
	}
	return out
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	eng, err := New(opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return eng
}

func TestGenerateFingerprintDeterminism(t *testing.T) {
	eng := newTestEngine(t)
	samples := synthMelody(5.0)

	first, err := eng.GenerateFingerprint(samples, testRate, 1)
	if err != nil {
		t.Fatalf("GenerateFingerprint failed: %v", err)
	}
	if len(first) == 0 {
		t.Fatal("expected fingerprints from a tonal signal")
	}

	second, err := eng.GenerateFingerprint(samples, testRate, 1)
	if err != nil {
		t.Fatalf("second GenerateFingerprint failed: %v", err)
	}

	if !bytes.Equal(Serialize(first), Serialize(second)) {
		t.Error("identical input must produce byte-identical fingerprints")
	}
}

func TestGenerateFingerprintBounds(t *testing.T) {
	eng := newTestEngine(t)

	fps, err := eng.GenerateFingerprint(synthMelody(5.0), testRate, 1)
	if err != nil {
		t.Fatalf("GenerateFingerprint failed: %v", err)
	}

	for i, fp := range fps {
		if fp.TimeDeltaMs < 0 || fp.TimeDeltaMs > 2000 {
			t.Errorf("fingerprint %d: time delta %d ms out of bounds", i, fp.TimeDeltaMs)
		}
		if d := math.Abs(float64(fp.TargetFreqHz - fp.AnchorFreqHz)); d > 2000 {
			t.Errorf("fingerprint %d: frequency delta %.1f Hz out of bounds", i, d)
		}
		if fp.TimeOffsetMs < 0 {
			t.Errorf("fingerprint %d: negative anchor offset %d ms", i, fp.TimeOffsetMs)
		}
		if i > 0 && fp.TimeOffsetMs < fps[i-1].TimeOffsetMs {
			t.Errorf("fingerprint %d: anchors not in time order", i)
		}
	}
}

func TestGenerateFingerprintStereoInput(t *testing.T) {
	eng := newTestEngine(t)
	mono := synthMelody(3.0)

	stereo := make([]float64, 2*len(mono))
	for i, s := range mono {
		stereo[2*i] = s
		stereo[2*i+1] = s
	}

	monoFps, err := eng.GenerateFingerprint(mono, testRate, 1)
	if err != nil {
		t.Fatalf("mono fingerprint failed: %v", err)
	}
	stereoFps, err := eng.GenerateFingerprint(stereo, testRate, 2)
	if err != nil {
		t.Fatalf("stereo fingerprint failed: %v", err)
	}

	// averaging identical channels reproduces the mono signal exactly
	if !bytes.Equal(Serialize(monoFps), Serialize(stereoFps)) {
		t.Error("duplicated-channel stereo should fingerprint like mono")
	}
}

func TestGenerateFingerprintInvalidInput(t *testing.T) {
	eng := newTestEngine(t)

	if _, err := eng.GenerateFingerprint(nil, testRate, 1); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("empty audio: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := eng.GenerateFingerprint(synthMelody(1.0), testRate, 3); !errors.Is(err, models.ErrUnsupportedFormat) {
		t.Errorf("3 channels: expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := eng.GenerateFingerprint(make([]float64, 100), testRate, 1); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("audio shorter than one window: expected ErrInvalidArgument, got %v", err)
	}
}

func TestNoiseRobustness(t *testing.T) {
	eng := newTestEngine(t)
	clean := synthMelody(10.0)

	cleanFps, err := eng.GenerateFingerprint(clean, testRate, 1)
	if err != nil {
		t.Fatalf("clean fingerprint failed: %v", err)
	}
	if len(cleanFps) == 0 {
		t.Fatal("expected fingerprints from the clean signal")
	}

	// additive white noise at 20 dB SNR
	var power float64
	for _, s := range clean {
		power += s * s
	}
	sigma := math.Sqrt(power/float64(len(clean))) / 10.0

	rng := rand.New(rand.NewSource(42))
	noisy := make([]float64, len(clean))
	for i, s := range clean {
		noisy[i] = s + sigma*rng.NormFloat64()
	}

	noisyFps, err := eng.GenerateFingerprint(noisy, testRate, 1)
	if err != nil {
		t.Fatalf("noisy fingerprint failed: %v", err)
	}

	noisyHashes := make(map[uint32]int, len(noisyFps))
	for _, fp := range noisyFps {
		noisyHashes[fp.Hash]++
	}
	shared := 0
	for _, fp := range cleanFps {
		if noisyHashes[fp.Hash] > 0 {
			noisyHashes[fp.Hash]--
			shared++
		}
	}

	overlap := float64(shared) / float64(len(cleanFps))
	if overlap < 0.3 {
		t.Errorf("hash overlap %.2f under 20 dB SNR noise, expected at least 0.30 (%d of %d)",
			overlap, shared, len(cleanFps))
	}
}

func TestBatchProcessIsolation(t *testing.T) {
	eng := newTestEngine(t)

	tracks := []audio.Buffer{
		{Samples: synthMelody(3.0), SampleRate: testRate, Channels: 1},
		{Samples: nil, SampleRate: testRate, Channels: 1},
		{Samples: synthMelody(3.0), SampleRate: testRate, Channels: 1},
	}
	ids := []string{"track-a", "track-b", "track-c"}

	results, err := eng.BatchProcess(tracks, ids)
	if err != nil {
		t.Fatalf("BatchProcess failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for _, i := range []int{0, 2} {
		if !results[i].Success {
			t.Errorf("result %d: expected success, got error %q", i, results[i].ErrorMessage)
		}
		if len(results[i].Fingerprints) == 0 {
			t.Errorf("result %d: expected fingerprints", i)
		}
		if results[i].DurationMs <= 0 {
			t.Errorf("result %d: expected positive duration, got %d", i, results[i].DurationMs)
		}
	}

	if results[1].Success {
		t.Error("result 1: empty track should fail")
	}
	if results[1].ErrorMessage == "" {
		t.Error("result 1: expected a failure message")
	}
	if results[1].TrackID != "track-b" {
		t.Errorf("result 1: track id %q", results[1].TrackID)
	}
}

func TestBatchProcessLengthMismatch(t *testing.T) {
	eng := newTestEngine(t)
	tracks := []audio.Buffer{{Samples: synthMelody(1.0), SampleRate: testRate, Channels: 1}}

	if _, err := eng.BatchProcess(tracks, []string{"a", "b"}); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestCanonicalizeAudio(t *testing.T) {
	eng := newTestEngine(t)

	stereo := make([]float64, 44100*2)
	for i := 0; i < 44100; i++ {
		s := math.Sin(2 * math.Pi * 440 * float64(i) / 44100)
		stereo[2*i] = s
		stereo[2*i+1] = s
	}

	buf, err := eng.CanonicalizeAudio(stereo, 44100, 2)
	if err != nil {
		t.Fatalf("CanonicalizeAudio failed: %v", err)
	}
	if buf.Channels != 1 {
		t.Errorf("expected mono, got %d channels", buf.Channels)
	}
	if buf.SampleRate != testRate {
		t.Errorf("expected %d Hz, got %d", testRate, buf.SampleRate)
	}
	if len(buf.Samples) != testRate {
		t.Errorf("expected %d samples for one second, got %d", testRate, len(buf.Samples))
	}
	peak := 0.0
	for _, s := range buf.Samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if math.Abs(peak-1.0) > 1e-9 {
		t.Errorf("expected normalized peak 1.0, got %g", peak)
	}
}

func TestComputeSpectrogram(t *testing.T) {
	eng := newTestEngine(t)

	samples := make([]float64, 2*testRate)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * 1000 * float64(i) / testRate)
	}

	spec, err := eng.ComputeSpectrogram(samples, 1024, 512)
	if err != nil {
		t.Fatalf("ComputeSpectrogram failed: %v", err)
	}
	if spec.FrequencyBins() != 1024/2+1 {
		t.Errorf("expected %d bins, got %d", 1024/2+1, spec.FrequencyBins())
	}

	frame := spec.Magnitudes[spec.TimeFrames()/2]
	maxBin := 0
	for bin, mag := range frame {
		if mag > frame[maxBin] {
			maxBin = bin
		}
	}
	peakFreq := float64(maxBin) * spec.FreqResolution
	if math.Abs(peakFreq-1000.0) > float64(testRate)/1024.0 {
		t.Errorf("dominant peak at %.1f Hz, expected near 1000 Hz", peakFreq)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(WithFFTSize(1000)); !errors.Is(err, models.ErrInvalidArgument) {
		t.Error("non-power-of-two FFT size should be rejected")
	}
	if _, err := New(WithHopSize(4096)); !errors.Is(err, models.ErrInvalidArgument) {
		t.Error("hop larger than the window should be rejected")
	}
	if _, err := New(WithSampleRate(0)); !errors.Is(err, models.ErrInvalidArgument) {
		t.Error("zero sample rate should be rejected")
	}
	if _, err := New(WithQuantization(-10, 50)); !errors.Is(err, models.ErrInvalidArgument) {
		t.Error("negative quantization should be rejected")
	}
}

func TestEngineSetters(t *testing.T) {
	eng := newTestEngine(t)

	if err := eng.SetAdaptiveFactor(1.5); !errors.Is(err, models.ErrInvalidArgument) {
		t.Error("adaptive factor above 1 should be rejected")
	}
	if err := eng.SetFreqQuantization(-1); !errors.Is(err, models.ErrInvalidArgument) {
		t.Error("negative frequency quantization should be rejected")
	}
	if err := eng.SetMinPeakDistance(0); !errors.Is(err, models.ErrInvalidArgument) {
		t.Error("zero peak distance should be rejected")
	}

	if err := eng.SetTimeQuantization(100); err != nil {
		t.Errorf("valid time quantization rejected: %v", err)
	}
	if err := eng.SetMinMagnitudeThreshold(0.05); err != nil {
		t.Errorf("valid magnitude threshold rejected: %v", err)
	}
}

func TestSerializeRoundTripThroughEngine(t *testing.T) {
	eng := newTestEngine(t)

	fps, err := eng.GenerateFingerprint(synthMelody(3.0), testRate, 1)
	if err != nil {
		t.Fatalf("GenerateFingerprint failed: %v", err)
	}

	got, err := Deserialize(Serialize(fps))
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if len(got) != len(fps) {
		t.Fatalf("expected %d fingerprints, got %d", len(fps), len(got))
	}
	for i := range fps {
		if got[i] != fps[i] {
			t.Errorf("fingerprint %d differs after round trip", i)
		}
	}
}
