package health

import (
	"time"

	"github.com/ayusman/safewarner/internal/detector"
)

// Exercise phases. The routine asks for a sustained gaze to the right,
// then to the left.
const (
	PhaseRight = "right"
	PhaseLeft  = "left"
)

// ExerciseUpdate reports what happened during one Update call.
type ExerciseUpdate struct {
	// PhaseChanged is set when the right phase completed and the left
	// phase begins.
	PhaseChanged bool

	// Paused is set on the frame where the countdown stops because the
	// gaze left the target direction.
	Paused bool

	// Resumed is set on the frame where the countdown restarts.
	Resumed bool

	// Completed is set when the whole routine finishes.
	Completed bool

	// Duration is the total routine time, set with Completed.
	Duration time.Duration
}

// ExerciseStatus is a snapshot of the routine for display.
type ExerciseStatus struct {
	Phase     string        `json:"phase"`
	Remaining time.Duration `json:"remaining"`
	Paused    bool          `json:"paused"`
}

// Exercise is the gaze-directed eye exercise state machine. Each phase
// requires holding the gaze in the target direction for the phase
// duration; the countdown pauses while the gaze wanders and resumes with
// the remaining time preserved.
type Exercise struct {
	phaseDuration time.Duration

	active     bool
	phase      string
	counting   bool
	phaseStart time.Time
	remaining  time.Duration
	startedAt  time.Time
}

// NewExercise creates an Exercise with the given per-phase duration.
func NewExercise(phaseDuration time.Duration) *Exercise {
	return &Exercise{phaseDuration: phaseDuration}
}

// Start begins the routine with the right-gaze phase.
func (x *Exercise) Start(now time.Time) {
	x.active = true
	x.phase = PhaseRight
	x.counting = false
	x.remaining = x.phaseDuration
	x.startedAt = now
}

// Active reports whether the routine is running.
func (x *Exercise) Active() bool {
	return x.active
}

// Cancel abandons the routine.
func (x *Exercise) Cancel() {
	x.active = false
}

// Update feeds the current gaze direction. It returns what changed so the
// caller can publish guidance events.
func (x *Exercise) Update(gaze string, now time.Time) ExerciseUpdate {
	var u ExerciseUpdate
	if !x.active {
		return u
	}

	target := detector.GazeRight
	if x.phase == PhaseLeft {
		target = detector.GazeLeft
	}

	if gaze != target {
		if x.counting {
			x.counting = false
			x.remaining -= now.Sub(x.phaseStart)
			if x.remaining < 0 {
				x.remaining = 0
			}
			u.Paused = true
		}
		return u
	}

	if !x.counting {
		x.counting = true
		x.phaseStart = now
		u.Resumed = true
	}

	left := x.remaining - now.Sub(x.phaseStart)
	if left > 0 {
		return u
	}

	// Phase complete.
	if x.phase == PhaseRight {
		x.phase = PhaseLeft
		x.counting = false
		x.remaining = x.phaseDuration
		u.PhaseChanged = true
		return u
	}

	x.active = false
	u.Completed = true
	u.Duration = now.Sub(x.startedAt)
	return u
}

// Status returns the routine snapshot at now. The second return is false
// when no routine is active.
func (x *Exercise) Status(now time.Time) (ExerciseStatus, bool) {
	if !x.active {
		return ExerciseStatus{}, false
	}

	remaining := x.remaining
	if x.counting {
		remaining -= now.Sub(x.phaseStart)
		if remaining < 0 {
			remaining = 0
		}
	}

	return ExerciseStatus{
		Phase:     x.phase,
		Remaining: remaining,
		Paused:    !x.counting,
	}, true
}
