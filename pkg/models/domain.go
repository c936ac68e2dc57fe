package models

// Fingerprint is one quantized landmark record. It is the only value the
// fingerprinting core hands across its boundary, and the only one that is
// ever persisted or serialized.
type Fingerprint struct {
	Hash         uint32  // combined 32-bit landmark hash
	TimeOffsetMs int32   // anchor time from the start of the track
	AnchorFreqHz float32 // anchor peak frequency
	TargetFreqHz float32 // target peak frequency
	TimeDeltaMs  int32   // target time minus anchor time
}

// BatchResult reports the outcome of fingerprinting one track in a batch.
// A failed track carries its error message here instead of aborting the
// rest of the batch.
type BatchResult struct {
	TrackID          string
	Fingerprints     []Fingerprint
	DurationMs       int
	ProcessingTimeMs int
	Success          bool
	ErrorMessage     string
}

// Track represents a reference track entry in the store.
type Track struct {
	ID         string // Database ID (UUID)
	Name       string // Track name or source file name
	DurationMs int    // Duration in milliseconds
}
