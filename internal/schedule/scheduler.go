// Package schedule provides the drift-corrected reminder timers for eye
// breaks and blink reminders.
package schedule

import (
	"sync"
	"time"
)

// Kind identifies a reminder timer.
type Kind string

// Reminder kinds. Each kind runs on its own clock; stopping or resetting
// one never shifts the other.
const (
	EyeBreak Kind = "eye_break"
	Blink    Kind = "blink"
)

// Event records one elapsed reminder.
type Event struct {
	Kind    Kind
	FiredAt time.Time
}

// timer is one periodic reminder. next is always computed from the
// previous deadline, not from the tick that observed it, so scheduling
// jitter does not accumulate.
type timer struct {
	period time.Duration
	next   time.Time
}

// Scheduler owns the reminder timers. Tick is cheap and safe to call at
// any supervisory cadence; Pause and Resume act on all timers atomically.
type Scheduler struct {
	mu       sync.Mutex
	timers   map[Kind]*timer
	order    []Kind
	paused   bool
	pausedAt time.Time
}

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{
		timers: make(map[Kind]*timer),
	}
}

// Add registers a reminder kind with the given period, first firing one
// period after now. Adding an existing kind replaces its schedule.
func (s *Scheduler) Add(kind Kind, period time.Duration, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.timers[kind]; !exists {
		s.order = append(s.order, kind)
	}
	s.timers[kind] = &timer{
		period: period,
		next:   now.Add(period),
	}
}

// SetPeriod changes a timer's period. The in-flight countdown keeps its
// current deadline; the new period applies from the next fire on.
func (s *Scheduler) SetPeriod(kind Kind, period time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[kind]; ok && period > 0 {
		t.period = period
	}
}

// Tick collects every reminder that has elapsed by now. A timer fires at
// most once per tick regardless of how many periods were missed: after a
// long stall it fires once and reschedules from now instead of replaying
// the missed deadlines.
func (s *Scheduler) Tick(now time.Time) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return nil
	}

	var fired []Event
	for _, kind := range s.order {
		t := s.timers[kind]
		if now.Before(t.next) {
			continue
		}

		fired = append(fired, Event{Kind: kind, FiredAt: now})

		next := t.next.Add(t.period)
		if !next.After(now) {
			// More than one period behind; no event storms.
			next = now.Add(t.period)
		}
		t.next = next
	}
	return fired
}

// Pause freezes all timers. A paused timer does not advance toward its
// deadline. Pausing an already paused scheduler is a no-op.
func (s *Scheduler) Pause(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return
	}
	s.paused = true
	s.pausedAt = now
}

// Resume unfreezes all timers, shifting every deadline by the paused
// duration so each timer owes exactly the time it had left when paused.
func (s *Scheduler) Resume(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paused {
		return
	}
	s.paused = false

	for _, t := range s.timers {
		remaining := t.next.Sub(s.pausedAt)
		if remaining < 0 {
			remaining = 0
		}
		t.next = now.Add(remaining)
	}
}

// Paused reports whether the scheduler is paused.
func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Reset reschedules one timer to fire a full period after now, e.g. after
// an exercise just satisfied the break the timer was counting toward.
func (s *Scheduler) Reset(kind Kind, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[kind]; ok {
		t.next = now.Add(t.period)
	}
}

// NextFire returns a timer's deadline. The second return is false for an
// unknown kind.
func (s *Scheduler) NextFire(kind Kind) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[kind]
	if !ok {
		return time.Time{}, false
	}
	return t.next, true
}
