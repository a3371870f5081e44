package executor

import (
	"math/rand"
	"time"
)

// defaultBackoffBase is the base delay for task retry backoff (§4.4 step 5:
// "exponential: base · 2^(attempt-1) with full jitter").
const defaultBackoffBase = 500 * time.Millisecond

// defaultBackoffMax caps the computed delay before jitter is applied.
const defaultBackoffMax = 30 * time.Second

// fullJitterBackoff computes a retry delay for the given attempt number
// (1-based) using the full-jitter strategy: a random duration in
// [0, min(max, base·2^(attempt-1))]. Adapted from the teacher's
// calculateBackoff, replacing its fixed/exponential policy switch with
// the spec's single full-jitter policy.
func fullJitterBackoff(attempt int, base, maxDelay time.Duration) time.Duration {
	if base <= 0 {
		base = defaultBackoffBase
	}
	if maxDelay <= 0 {
		maxDelay = defaultBackoffMax
	}

	ceiling := base
	for i := 1; i < attempt; i++ {
		ceiling *= 2
		if ceiling > maxDelay {
			ceiling = maxDelay
			break
		}
	}
	if ceiling > maxDelay {
		ceiling = maxDelay
	}
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(ceiling) + 1))
}
