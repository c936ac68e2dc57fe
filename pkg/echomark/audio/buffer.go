package audio

// Buffer holds raw PCM float samples together with their format. Stereo
// buffers are interleaved L/R. Buffers are transient values created per
// pipeline call.
type Buffer struct {
	Samples    []float64
	SampleRate int
	Channels   int
}

// DurationSeconds derives the buffer duration from its length and format.
func (b Buffer) DurationSeconds() float64 {
	if b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate*b.Channels)
}

// DurationMs derives the buffer duration in milliseconds.
func (b Buffer) DurationMs() int {
	return int(b.DurationSeconds() * 1000.0)
}

// Empty reports whether the buffer contains no samples.
func (b Buffer) Empty() bool {
	return len(b.Samples) == 0
}
