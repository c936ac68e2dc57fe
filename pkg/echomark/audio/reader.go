package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWAVFile decodes a PCM WAV file into an interleaved float Buffer with
// samples scaled to [-1, 1]. Container decoding lives on the calling-layer
// side; the fingerprinting core itself only ever sees raw samples.
func ReadWAVFile(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("opening wav file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("decoding wav file %s: %w", path, err)
	}
	if pcm == nil || pcm.Format == nil || len(pcm.Data) == 0 {
		return Buffer{}, fmt.Errorf("wav file %s contains no samples", path)
	}

	return fromIntBuffer(pcm, int(dec.BitDepth)), nil
}

// fromIntBuffer converts decoded integer PCM to float samples in [-1, 1].
func fromIntBuffer(pcm *goaudio.IntBuffer, bitDepth int) Buffer {
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	samples := make([]float64, len(pcm.Data))
	for i, v := range pcm.Data {
		samples[i] = float64(v) / scale
	}

	return Buffer{
		Samples:    samples,
		SampleRate: pcm.Format.SampleRate,
		Channels:   pcm.Format.NumChannels,
	}
}
