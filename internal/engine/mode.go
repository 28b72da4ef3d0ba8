// Package engine provides the monitoring supervisor: the mode state
// machine, the background analysis loop, and the command surface the GUI
// layers talk to.
package engine

import (
	"fmt"
	"time"

	"github.com/ayusman/safewarner/internal/health"
)

// Mode selects how monitoring starts and stops.
type Mode string

// Operating modes. In auto mode the engine manages camera acquisition
// itself; in manual mode monitoring runs only on explicit command.
const (
	ModeManual Mode = "manual"
	ModeAuto   Mode = "auto"
)

// ParseMode converts a persisted string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeManual, ModeAuto:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// MonitoringState is the camera-analysis lifecycle state.
type MonitoringState string

// Monitoring states. CALIBRATING watches the verdict stream for a
// sustained safe run; SAFE_CONFIRMED releases the camera until a re-check
// is due; UNSAFE_ACTIVE keeps watching while the user sits too close.
const (
	StateIdle          MonitoringState = "idle"
	StateCalibrating   MonitoringState = "calibrating"
	StateSafeConfirmed MonitoringState = "safe_confirmed"
	StateUnsafeActive  MonitoringState = "unsafe_active"
)

// ModeController owns the Mode and MonitoringState. Only the supervisor
// loop calls its methods; external callers go through the command queue.
type ModeController struct {
	mode  Mode
	state MonitoringState

	confirmationWindow int
	safeRun            int

	recheckInterval time.Duration
	confirmedAt     time.Time
}

// NewModeController creates a controller starting in the given mode with
// monitoring idle. recheckInterval of 0 disables periodic re-checks after
// a safe confirmation.
func NewModeController(mode Mode, confirmationWindowFrames int, recheckInterval time.Duration) *ModeController {
	if confirmationWindowFrames < 1 {
		confirmationWindowFrames = 1
	}
	return &ModeController{
		mode:               mode,
		state:              StateIdle,
		confirmationWindow: confirmationWindowFrames,
		recheckInterval:    recheckInterval,
	}
}

// Mode returns the current mode.
func (m *ModeController) Mode() Mode {
	return m.mode
}

// SetMode switches modes. Returns false if the mode did not change.
// Monitoring results never call this; only explicit user action does.
func (m *ModeController) SetMode(mode Mode) bool {
	if mode == m.mode {
		return false
	}
	m.mode = mode
	return true
}

// State returns the current monitoring state.
func (m *ModeController) State() MonitoringState {
	return m.state
}

// SetState forces a state transition, resetting the safe-run counter when
// entering calibration. Returns false if the state did not change.
func (m *ModeController) SetState(state MonitoringState) bool {
	if state == m.state {
		return false
	}
	m.state = state
	if state == StateCalibrating {
		m.safeRun = 0
	}
	return true
}

// SetRecheckInterval updates the re-check policy (hot reload).
func (m *ModeController) SetRecheckInterval(d time.Duration) {
	m.recheckInterval = d
}

// Observe consumes one distance verdict while the camera is live. It
// returns the state after the observation and whether it changed. The
// safe state only confirms after the full confirmation window of
// consecutive safe verdicts.
func (m *ModeController) Observe(v health.Verdict, now time.Time) (MonitoringState, bool) {
	if m.state != StateCalibrating && m.state != StateUnsafeActive {
		return m.state, false
	}

	// Zero-confidence verdicts carry no new information.
	if v.Confidence == 0 {
		return m.state, false
	}

	if v.Safe {
		m.safeRun++
		if m.safeRun >= m.confirmationWindow {
			m.state = StateSafeConfirmed
			m.confirmedAt = now
			m.safeRun = 0
			return m.state, true
		}
		return m.state, false
	}

	m.safeRun = 0
	if m.state != StateUnsafeActive {
		m.state = StateUnsafeActive
		return m.state, true
	}
	return m.state, false
}

// RecheckDue reports whether a confirmed-safe session should re-enter
// calibration to re-verify posture and distance.
func (m *ModeController) RecheckDue(now time.Time) bool {
	return m.state == StateSafeConfirmed &&
		m.recheckInterval > 0 &&
		now.Sub(m.confirmedAt) >= m.recheckInterval
}
