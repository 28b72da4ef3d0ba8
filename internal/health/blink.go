package health

import "time"

// maxBlinkHistory bounds the retained blink timestamps.
const maxBlinkHistory = 100

// expectedBlinksPerMinute is the minimum healthy blink rate. Screen use
// commonly drops the natural 15-20 blinks per minute well below this.
const expectedBlinksPerMinute = 8.0

// BlinkTracker counts blinks from the per-frame eye aspect ratio and
// reports when the rate over a sliding window falls below the healthy
// minimum. A blink is the transition from open lids to closed lids.
type BlinkTracker struct {
	earThreshold float64
	window       time.Duration

	closed     bool
	timestamps []time.Time
}

// NewBlinkTracker creates a BlinkTracker. earThreshold is the aspect ratio
// below which lids count as closed; window is the rate measurement span.
func NewBlinkTracker(earThreshold float64, window time.Duration) *BlinkTracker {
	return &BlinkTracker{
		earThreshold: earThreshold,
		window:       window,
	}
}

// Observe feeds one frame's eye aspect ratio. Only the open-to-closed edge
// registers a blink, so a long closure counts once.
func (b *BlinkTracker) Observe(ear float64, now time.Time) {
	closed := ear < b.earThreshold
	if closed && !b.closed {
		b.timestamps = append(b.timestamps, now)
		if len(b.timestamps) > maxBlinkHistory {
			b.timestamps = b.timestamps[len(b.timestamps)-maxBlinkHistory:]
		}
	}
	b.closed = closed
}

// RatePerMinute returns the blink rate measured over the window ending at
// now.
func (b *BlinkTracker) RatePerMinute(now time.Time) float64 {
	if b.window <= 0 {
		return 0
	}
	cutoff := now.Add(-b.window)
	recent := 0
	for _, t := range b.timestamps {
		if !t.Before(cutoff) {
			recent++
		}
	}
	return float64(recent) / b.window.Minutes()
}

// LowRate reports whether the measured blink rate is below the healthy
// minimum.
func (b *BlinkTracker) LowRate(now time.Time) bool {
	return b.RatePerMinute(now) < expectedBlinksPerMinute
}

// Reset clears the blink history.
func (b *BlinkTracker) Reset() {
	b.timestamps = nil
	b.closed = false
}
