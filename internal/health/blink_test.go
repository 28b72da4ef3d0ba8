package health

import (
	"testing"
	"time"
)

func TestBlinkTracker_CountsClosingEdgeOnce(t *testing.T) {
	b := NewBlinkTracker(0.20, time.Minute)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	// One blink spread over several closed frames counts once.
	b.Observe(0.30, now)
	b.Observe(0.05, now.Add(100*time.Millisecond))
	b.Observe(0.05, now.Add(200*time.Millisecond))
	b.Observe(0.05, now.Add(300*time.Millisecond))
	b.Observe(0.30, now.Add(400*time.Millisecond))

	rate := b.RatePerMinute(now.Add(time.Second))
	if rate != 1.0 {
		t.Errorf("expected 1 blink/min, got %v", rate)
	}
}

func TestBlinkTracker_RateOverWindow(t *testing.T) {
	b := NewBlinkTracker(0.20, time.Minute)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	// Twelve blinks in the last minute.
	for i := 0; i < 12; i++ {
		at := now.Add(time.Duration(i) * 5 * time.Second)
		b.Observe(0.30, at)
		b.Observe(0.05, at.Add(time.Second))
	}

	measureAt := now.Add(59 * time.Second)
	if rate := b.RatePerMinute(measureAt); rate != 12.0 {
		t.Errorf("expected 12 blinks/min, got %v", rate)
	}
	if b.LowRate(measureAt) {
		t.Error("12 blinks/min should not read as low")
	}
}

func TestBlinkTracker_OldBlinksAgeOut(t *testing.T) {
	b := NewBlinkTracker(0.20, time.Minute)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	b.Observe(0.30, now)
	b.Observe(0.05, now.Add(time.Second))

	// Two minutes later the blink is outside the window.
	if rate := b.RatePerMinute(now.Add(2 * time.Minute)); rate != 0 {
		t.Errorf("expected 0 blinks/min, got %v", rate)
	}
	if !b.LowRate(now.Add(2 * time.Minute)) {
		t.Error("a dry spell should read as low")
	}
}

func TestBlinkTracker_Reset(t *testing.T) {
	b := NewBlinkTracker(0.20, time.Minute)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	// Leave the tracker mid-closure, then reset. The next closed frame is
	// a fresh closing edge and counts.
	b.Observe(0.05, now)
	b.Reset()

	b.Observe(0.05, now.Add(time.Second))
	if rate := b.RatePerMinute(now.Add(2 * time.Second)); rate != 1.0 {
		t.Errorf("expected 1 blink/min after reset, got %v", rate)
	}
}
