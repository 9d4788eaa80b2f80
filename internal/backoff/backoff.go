// Package backoff computes retry delays for the job queue.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// maxAttemptExponent caps the exponent so base*2^attempt cannot overflow a
// float64 for any realistic base, and keeps the worst case delay bounded to
// roughly a few hours for a 30s base.
const maxAttemptExponent = 10

// Delay computes the retry delay for the given attempt number and base delay
// in seconds. attempt is clamped to [0, 10]; negative attempts are treated as
// zero. The result is base*2^attempt scaled by a uniform jitter factor drawn
// from [0.7, 1.3), rounded to whole seconds.
func Delay(attempt int, baseSeconds float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxAttemptExponent {
		attempt = maxAttemptExponent
	}

	backoff := baseSeconds * math.Pow(2, float64(attempt))

	jitter := 0.7 + rand.Float64()*0.6 // uniform in [0.7, 1.3)
	seconds := math.Round(backoff * jitter)
	if seconds < 0 {
		seconds = 0
	}

	return time.Duration(seconds) * time.Second
}
