// Package backoff computes jittered exponential backoff durations, used
// by the dispatch engine's CAS-retry loop and by the serve command's
// store-connection retry.
package backoff

import (
	"math"
	"time"
)

// ExponentialJitter returns a backoff duration for the given attempt
// number (1-indexed), doubling from base up to max with +/-20% jitter.
func ExponentialJitter(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	mul := math.Pow(2, float64(attempt-1))
	d := min(time.Duration(float64(base)*mul), max)

	// simple jitter: +/- 20%
	j := time.Duration(float64(d) * 0.2)
	return d - j + time.Duration(time.Now().UnixNano()%int64(2*j))
}
