package fingerprint

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/rudrakapoor/EchoMark/pkg/models"
)

// Record layout, little endian: uint32 hash, int32 timeOffsetMs,
// float32 anchorFreqHz, float32 targetFreqHz, int32 timeDeltaMs.
const recordSize = 20

// Serialize encodes fingerprints as [uint32 count][count x record].
func Serialize(fps []models.Fingerprint) []byte {
	out := make([]byte, 4+len(fps)*recordSize)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(fps)))

	off := 4
	for _, fp := range fps {
		binary.LittleEndian.PutUint32(out[off:], fp.Hash)
		binary.LittleEndian.PutUint32(out[off+4:], uint32(fp.TimeOffsetMs))
		binary.LittleEndian.PutUint32(out[off+8:], math.Float32bits(fp.AnchorFreqHz))
		binary.LittleEndian.PutUint32(out[off+12:], math.Float32bits(fp.TargetFreqHz))
		binary.LittleEndian.PutUint32(out[off+16:], uint32(fp.TimeDeltaMs))
		off += recordSize
	}
	return out
}

// Deserialize decodes a buffer produced by Serialize. A buffer shorter
// than its declared record count fails with ErrCorruptData.
func Deserialize(data []byte) ([]models.Fingerprint, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: buffer too small for fingerprint count",
			models.ErrCorruptData)
	}

	count := binary.LittleEndian.Uint32(data[0:4])
	need := 4 + int(count)*recordSize
	if len(data) < need {
		return nil, fmt.Errorf("%w: need %d bytes for %d records, have %d",
			models.ErrCorruptData, need, count, len(data))
	}

	fps := make([]models.Fingerprint, 0, count)
	off := 4
	for i := uint32(0); i < count; i++ {
		fps = append(fps, models.Fingerprint{
			Hash:         binary.LittleEndian.Uint32(data[off:]),
			TimeOffsetMs: int32(binary.LittleEndian.Uint32(data[off+4:])),
			AnchorFreqHz: math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:])),
			TargetFreqHz: math.Float32frombits(binary.LittleEndian.Uint32(data[off+12:])),
			TimeDeltaMs:  int32(binary.LittleEndian.Uint32(data[off+16:])),
		})
		off += recordSize
	}
	return fps, nil
}
