package health

import (
	"testing"
	"time"

	"github.com/ayusman/safewarner/internal/detector"
)

func TestExercise_FullRoutine(t *testing.T) {
	x := NewExercise(15 * time.Second)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	x.Start(now)
	if !x.Active() {
		t.Fatal("exercise should be active after Start")
	}

	// Holding right for the full phase moves to the left phase.
	u := x.Update(detector.GazeRight, now)
	if !u.Resumed {
		t.Error("first on-target frame should resume the countdown")
	}
	u = x.Update(detector.GazeRight, now.Add(15*time.Second))
	if !u.PhaseChanged {
		t.Fatal("expected phase change after holding right for 15s")
	}

	// Holding left for the full phase completes the routine.
	at := now.Add(16 * time.Second)
	x.Update(detector.GazeLeft, at)
	u = x.Update(detector.GazeLeft, at.Add(15*time.Second))
	if !u.Completed {
		t.Fatal("expected completion after holding left for 15s")
	}
	if x.Active() {
		t.Error("exercise should be inactive after completion")
	}
	if want := 31 * time.Second; u.Duration != want {
		t.Errorf("duration: want %v, got %v", want, u.Duration)
	}
}

func TestExercise_PausePreservesRemaining(t *testing.T) {
	x := NewExercise(15 * time.Second)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	x.Start(now)
	x.Update(detector.GazeRight, now)

	// Look away after 10 seconds; 5 remain.
	u := x.Update(detector.GazeCenter, now.Add(10*time.Second))
	if !u.Paused {
		t.Fatal("expected pause when the gaze leaves the target")
	}

	// Wandering for a minute costs nothing.
	resumeAt := now.Add(70 * time.Second)
	u = x.Update(detector.GazeRight, resumeAt)
	if !u.Resumed {
		t.Fatal("expected resume when the gaze returns")
	}

	// 4 seconds back on target is not enough.
	u = x.Update(detector.GazeRight, resumeAt.Add(4*time.Second))
	if u.PhaseChanged {
		t.Fatal("phase changed before the preserved remaining elapsed")
	}

	// The 5th second finishes the phase.
	u = x.Update(detector.GazeRight, resumeAt.Add(5*time.Second))
	if !u.PhaseChanged {
		t.Fatal("expected phase change after the preserved 5 seconds")
	}
}

func TestExercise_WrongDirectionDoesNotCount(t *testing.T) {
	x := NewExercise(15 * time.Second)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	x.Start(now)

	// Looking left during the right phase never starts the countdown.
	x.Update(detector.GazeLeft, now)
	u := x.Update(detector.GazeLeft, now.Add(30*time.Second))
	if u.PhaseChanged || u.Completed {
		t.Fatal("off-target gaze advanced the routine")
	}

	st, ok := x.Status(now.Add(30 * time.Second))
	if !ok {
		t.Fatal("expected an active status")
	}
	if st.Phase != PhaseRight {
		t.Errorf("expected phase %q, got %q", PhaseRight, st.Phase)
	}
	if st.Remaining != 15*time.Second {
		t.Errorf("expected full phase remaining, got %v", st.Remaining)
	}
	if !st.Paused {
		t.Error("expected paused status while off target")
	}
}

func TestExercise_Cancel(t *testing.T) {
	x := NewExercise(15 * time.Second)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	x.Start(now)
	x.Cancel()

	if x.Active() {
		t.Error("exercise should be inactive after Cancel")
	}
	if u := x.Update(detector.GazeRight, now.Add(time.Second)); u != (ExerciseUpdate{}) {
		t.Errorf("cancelled exercise reported an update: %+v", u)
	}
	if _, ok := x.Status(now); ok {
		t.Error("cancelled exercise reported a status")
	}
}

func TestExercise_StatusCountsDown(t *testing.T) {
	x := NewExercise(15 * time.Second)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	x.Start(now)
	x.Update(detector.GazeRight, now)

	st, _ := x.Status(now.Add(6 * time.Second))
	if st.Remaining != 9*time.Second {
		t.Errorf("expected 9s remaining, got %v", st.Remaining)
	}
	if st.Paused {
		t.Error("status should not read paused while counting")
	}
}
