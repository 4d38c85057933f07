package supervisor

import "time"

// backoffFor returns the delay before restart number restarts+1. The delay
// doubles with every restart, starting at base and never exceeding maxDelay,
// so consecutive delays for a slot never shrink.
func backoffFor(base, maxDelay time.Duration, restarts int) time.Duration {
	if base <= 0 {
		base = time.Second
	}

	delay := base
	for i := 0; i < restarts; i++ {
		delay *= 2

		if maxDelay > 0 && delay >= maxDelay {
			return maxDelay
		}
	}

	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}

	return delay
}
