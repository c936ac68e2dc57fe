package fingerprint

import (
	"fmt"
	"strings"

	"github.com/rudrakapoor/EchoMark/pkg/models"
)

// Statistics summarizes a fingerprint sequence for diagnostics.
func Statistics(fps []models.Fingerprint) string {
	if len(fps) == 0 {
		return "no fingerprints to analyze"
	}

	minTime, maxTime := fps[0].TimeOffsetMs, fps[0].TimeOffsetMs
	minFreq, maxFreq := fps[0].AnchorFreqHz, fps[0].AnchorFreqHz

	for _, fp := range fps {
		if fp.TimeOffsetMs < minTime {
			minTime = fp.TimeOffsetMs
		}
		if fp.TimeOffsetMs > maxTime {
			maxTime = fp.TimeOffsetMs
		}
		for _, f := range []float32{fp.AnchorFreqHz, fp.TargetFreqHz} {
			if f < minFreq {
				minFreq = f
			}
			if f > maxFreq {
				maxFreq = f
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "fingerprints: %d\n", len(fps))
	fmt.Fprintf(&b, "time span: %d - %d ms\n", minTime, maxTime)
	fmt.Fprintf(&b, "frequency range: %.1f - %.1f Hz\n", minFreq, maxFreq)
	if maxTime > minTime {
		fmt.Fprintf(&b, "density: %.1f fingerprints/second\n",
			float64(len(fps))/float64(maxTime-minTime)*1000.0)
	}
	return b.String()
}
