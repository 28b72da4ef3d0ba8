package engine

import "time"

// backoffDelay returns the exponential backoff delay for a retry attempt
// (1-based): initial * 2^(attempt-1), capped at max.
//
// With the defaults (initial 1s, max 30s):
//   attempt 1: 1s, attempt 2: 2s, attempt 3: 4s, attempt 4: 8s,
//   attempt 5: 16s, attempt 6+: 30s.
func backoffDelay(attempt int, initial, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	// Guard the shift against overflow for absurd attempt counts.
	if attempt > 32 {
		return max
	}

	delay := initial * time.Duration(1<<uint(attempt-1))
	if delay > max || delay <= 0 {
		delay = max
	}
	return delay
}
