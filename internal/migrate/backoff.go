package migrate

import (
	"math/rand"
	"time"
)

// backoffDelay computes the sleep before retry attempt (1-based), doubling
// from base and capped at max, with up to 25% random jitter so concurrent
// retries against a struggling destination spread out.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}
