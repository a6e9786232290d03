package queuectl

import (
	"math"
)

// maxBackoffSec keeps base^attempts inside int64 epoch arithmetic. It is
// roughly 35000 years, so it only matters for pathological settings.
const maxBackoffSec = int64(1) << 40

// backoffSeconds returns base^attempts in whole seconds. A positive capSec
// bounds the result. With capSec zero the delay is unbounded apart from the overflow guard.
func backoffSeconds(base float64, attempts int, capSec int64) int64 {
	seconds := math.Pow(base, float64(attempts))

	delay := maxBackoffSec
	if !math.IsNaN(seconds) && seconds < float64(maxBackoffSec) {
		delay = int64(math.Round(seconds))
	}
	if delay < 0 {
		delay = 0
	}

	if capSec > 0 && delay > capSec {
		delay = capSec
	}

	return delay
}
