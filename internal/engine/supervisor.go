package engine

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/safewarner/internal/bus"
	"github.com/ayusman/safewarner/internal/capture"
	"github.com/ayusman/safewarner/internal/config"
	"github.com/ayusman/safewarner/internal/health"
	"github.com/ayusman/safewarner/internal/schedule"
)

// gazeThreshold is the normalized eye-center offset beyond which the gaze
// counts as left or right.
const gazeThreshold = 0.2

// commandQueueSize bounds the pending command queue. Commands are tiny
// and drained every cycle, so the queue only fills if the loop is gone.
const commandQueueSize = 32

// SourceFactory creates a fresh, unstarted observation source. The
// supervisor calls it on every monitoring (re)start so a lost device is
// reopened from scratch.
type SourceFactory func() capture.ObservationSource

// Snapshot is an immutable view of the engine for readers. A new value is
// produced every cycle; callers never share live state with the loop.
type Snapshot struct {
	Mode             Mode                   `json:"mode"`
	State            MonitoringState        `json:"state"`
	MonitoringActive bool                   `json:"monitoring_active"`
	RemindersPaused  bool                   `json:"reminders_paused"`
	NextEyeBreak     time.Time              `json:"next_eye_break"`
	NextBlink        time.Time              `json:"next_blink"`
	LastVerdict      health.Verdict         `json:"last_verdict"`
	RetryAttempts    int                    `json:"retry_attempts"`
	AutoRetry        bool                   `json:"auto_retry"`
	Exercise         *health.ExerciseStatus `json:"exercise,omitempty"`
}

// Supervisor owns the monitoring loop: camera acquisition, verdict
// evaluation, the mode state machine, reminder ticking, and event
// publishing all happen on its single goroutine. External callers reach
// it only through the command queue and snapshots.
type Supervisor struct {
	cfg       *config.Config
	bus       *bus.Bus
	sched     *schedule.Scheduler
	modeCtl   *ModeController
	estimator *health.Estimator
	blink     *health.BlinkTracker
	posture   *health.PostureChecker
	exercise  *health.Exercise
	newSource SourceFactory

	commands chan func()
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	snap     atomic.Pointer[Snapshot]

	// Everything below is owned by the loop goroutine.
	source        capture.ObservationSource
	monitoring    bool
	suspended     bool
	autoRetry     bool
	retryAttempts int
	retryAt       time.Time
	lastVerdict   health.Verdict
	haveSafe      bool
	lastSafe      bool
	wasTilted     bool
	wasLowBlink   bool
	watchStarted  time.Time
}

// New creates a Supervisor. initialMode is the persisted mode injected at
// startup; newSource builds the camera+detector pipeline.
func New(cfg *config.Config, eventBus *bus.Bus, newSource SourceFactory, initialMode Mode) *Supervisor {
	return &Supervisor{
		cfg:   cfg,
		bus:   eventBus,
		sched: schedule.New(),
		modeCtl: NewModeController(
			initialMode,
			cfg.ConfirmationWindowFrames,
			time.Duration(cfg.RecheckIntervalS)*time.Second,
		),
		estimator: health.NewEstimator(cfg.CalibrationCm, cfg.SafeDistanceCm, cfg.HysteresisFrames),
		blink:     health.NewBlinkTracker(cfg.EarThreshold, time.Duration(cfg.BlinkWindowS)*time.Second),
		posture:   health.NewPostureChecker(cfg.PostureTiltDegrees),
		exercise:  health.NewExercise(time.Duration(cfg.ExercisePhaseS) * time.Second),
		newSource: newSource,
		commands:  make(chan func(), commandQueueSize),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start registers the reminder timers and launches the loop goroutine.
// In auto mode monitoring begins immediately.
func (s *Supervisor) Start() {
	now := time.Now()
	s.sched.Add(schedule.EyeBreak, s.cfg.EyeBreakPeriod(), now)
	s.sched.Add(schedule.Blink, s.cfg.BlinkPeriod(), now)

	s.snap.Store(&Snapshot{Mode: s.modeCtl.Mode(), State: s.modeCtl.State()})

	go s.run()
}

// Stop shuts the loop down and blocks until the camera device has been
// released.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.done
}

// Snapshot returns the most recent engine snapshot.
func (s *Supervisor) Snapshot() *Snapshot {
	return s.snap.Load()
}

// SetMode switches between auto and manual operation. Effects are
// asynchronous and observable via ModeChanged events.
func (s *Supervisor) SetMode(mode Mode) {
	s.enqueue(func() {
		if !s.modeCtl.SetMode(mode) {
			return
		}
		s.publish(bus.KindModeChanged, bus.ModeChangedPayload{Mode: string(mode)})

		switch mode {
		case ModeAuto:
			s.autoRetry = true
			s.retryAttempts = 0
			s.tryStartMonitoring(time.Now())
		case ModeManual:
			// Camera stops within the cycle; reminders keep running.
			s.haltMonitoring()
		}
	})
}

// StartMonitoring starts camera analysis (manual mode, or after retries
// were exhausted).
func (s *Supervisor) StartMonitoring() {
	s.enqueue(func() {
		if s.monitoring {
			return
		}
		s.autoRetry = true
		s.retryAttempts = 0
		s.tryStartMonitoring(time.Now())
	})
}

// StopMonitoring stops camera analysis and cancels pending retries. The
// reminder scheduler is unaffected.
func (s *Supervisor) StopMonitoring() {
	s.enqueue(func() {
		s.autoRetry = false
		s.retryAt = time.Time{}
		s.haltMonitoring()
	})
}

// RestartMonitoring forces a fresh monitoring start with the retry budget
// reset. It is the recovery path after backoff exhaustion.
func (s *Supervisor) RestartMonitoring() {
	s.enqueue(func() {
		s.haltMonitoring()
		s.autoRetry = true
		s.retryAttempts = 0
		s.retryAt = time.Time{}
		s.tryStartMonitoring(time.Now())
	})
}

// PauseReminders freezes all reminder timers atomically.
func (s *Supervisor) PauseReminders() {
	s.enqueue(func() {
		s.sched.Pause(time.Now())
	})
}

// ResumeReminders unfreezes the reminder timers, preserving the time each
// had left when paused.
func (s *Supervisor) ResumeReminders() {
	s.enqueue(func() {
		s.sched.Resume(time.Now())
	})
}

// ApplyConfig applies hot-reloadable settings: reminder periods, the
// re-check policy, and the analysis thresholds. Camera settings (device,
// fps) take effect on the next monitoring start.
func (s *Supervisor) ApplyConfig(cfg *config.Config) {
	s.enqueue(func() {
		old := s.cfg
		s.cfg = cfg

		s.sched.SetPeriod(schedule.EyeBreak, cfg.EyeBreakPeriod())
		s.sched.SetPeriod(schedule.Blink, cfg.BlinkPeriod())
		s.modeCtl.SetRecheckInterval(time.Duration(cfg.RecheckIntervalS) * time.Second)

		// Rebuilding an analyzer loses its rolling state, so only do it
		// when its thresholds actually changed.
		if cfg.CalibrationCm != old.CalibrationCm ||
			cfg.SafeDistanceCm != old.SafeDistanceCm ||
			cfg.HysteresisFrames != old.HysteresisFrames {
			s.estimator = health.NewEstimator(cfg.CalibrationCm, cfg.SafeDistanceCm, cfg.HysteresisFrames)
		}
		if cfg.EarThreshold != old.EarThreshold || cfg.BlinkWindowS != old.BlinkWindowS {
			s.blink = health.NewBlinkTracker(cfg.EarThreshold, time.Duration(cfg.BlinkWindowS)*time.Second)
		}
		if cfg.PostureTiltDegrees != old.PostureTiltDegrees {
			s.posture = health.NewPostureChecker(cfg.PostureTiltDegrees)
		}
		if cfg.ExercisePhaseS != old.ExercisePhaseS && !s.exercise.Active() {
			s.exercise = health.NewExercise(time.Duration(cfg.ExercisePhaseS) * time.Second)
		}
	})
}

// enqueue hands a command to the loop. Commands never block the caller;
// if the loop is gone the command is dropped.
func (s *Supervisor) enqueue(fn func()) {
	select {
	case s.commands <- fn:
	default:
		log.Println("engine command queue full, dropping command")
	}
}

func (s *Supervisor) publish(kind bus.Kind, payload any) {
	s.bus.Publish(bus.Event{Kind: kind, At: time.Now(), Payload: payload})
}

// run is the supervisor loop. All engine state is mutated here and only
// here.
func (s *Supervisor) run() {
	defer close(s.done)
	defer s.stopSource()

	if s.modeCtl.Mode() == ModeAuto {
		s.autoRetry = true
		s.tryStartMonitoring(time.Now())
	}

	interval := time.Second / time.Duration(s.cfg.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case fn := <-s.commands:
			fn()
		case now := <-ticker.C:
			s.cycle(now)
		}
	}
}

// cycle is one pass of the loop: retry bookkeeping, one observation,
// scheduler tick, snapshot.
func (s *Supervisor) cycle(now time.Time) {
	if !s.monitoring && s.autoRetry && !s.retryAt.IsZero() && !now.Before(s.retryAt) {
		s.retryAt = time.Time{}
		s.tryStartMonitoring(now)
	}

	if s.suspended && s.modeCtl.Mode() == ModeAuto && s.modeCtl.RecheckDue(now) {
		log.Println("safe confirmation expired, re-checking")
		s.suspended = false
		s.tryStartMonitoring(now)
	}

	if s.monitoring {
		obs, err := s.source.Next(s.cfg.FrameTimeout())
		if err != nil {
			s.handleSourceError(err, now)
		} else {
			s.process(obs, now)
		}
	}

	for _, ev := range s.sched.Tick(now) {
		s.handleReminder(ev, now)
	}

	s.storeSnapshot()
}

// process consumes one observation: verdict, blink, posture, gaze, and
// the mode state machine.
func (s *Supervisor) process(obs capture.Observation, now time.Time) {
	verdict := s.estimator.Evaluate(obs)
	s.lastVerdict = verdict

	if verdict.Confidence > 0 && (!s.haveSafe || verdict.Safe != s.lastSafe) {
		s.haveSafe = true
		s.lastSafe = verdict.Safe
		s.publish(bus.KindDistanceVerdict, bus.VerdictPayload{
			Safe:       verdict.Safe,
			DistanceCm: verdict.DistanceCm,
		})
	}

	if obs.FrameValid && obs.Face.Valid() {
		s.blink.Observe(obs.Face.EyeAspectRatio(), now)
		gaze := obs.Face.GazeDirection(gazeThreshold)

		if s.exercise.Active() {
			s.applyExercise(gaze, now)
		} else {
			if p, ok := s.posture.Check(obs.Face); ok {
				if p.Tilted && !s.wasTilted {
					s.publish(bus.KindPostureAlert, bus.PosturePayload{TiltDegrees: p.TiltDegrees})
				}
				s.wasTilted = p.Tilted
			}

			// Let the blink window fill before judging the rate.
			if now.Sub(s.watchStarted) >= time.Duration(s.cfg.BlinkWindowS)*time.Second {
				low := s.blink.LowRate(now)
				if low && !s.wasLowBlink {
					s.publish(bus.KindBlinkRateLow, bus.BlinkPayload{
						RatePerMinute: s.blink.RatePerMinute(now),
					})
				}
				s.wasLowBlink = low
			}
		}
	}

	if state, changed := s.modeCtl.Observe(verdict, now); changed {
		s.publish(bus.KindMonitoringState, bus.StatePayload{State: string(state)})
		if state == StateSafeConfirmed && s.modeCtl.Mode() == ModeAuto {
			log.Println("safe distance confirmed, releasing camera")
			s.stopSource()
			s.monitoring = false
			s.suspended = true
			s.exercise.Cancel()
		}
	}
}

// applyExercise advances the eye exercise with the current gaze.
func (s *Supervisor) applyExercise(gaze string, now time.Time) {
	u := s.exercise.Update(gaze, now)

	switch {
	case u.Completed:
		s.publish(bus.KindExerciseCompleted, bus.ExercisePayload{
			DurationS: u.Duration.Seconds(),
		})
		// The exercise just provided the break the timer was counting
		// toward; start the next 20-minute stretch from here.
		s.sched.Reset(schedule.EyeBreak, now)

	case u.PhaseChanged, u.Paused, u.Resumed:
		if st, ok := s.exercise.Status(now); ok {
			s.publish(bus.KindExercisePhase, bus.ExercisePayload{
				Phase:      st.Phase,
				RemainingS: st.Remaining.Seconds(),
				Paused:     st.Paused,
			})
		}
	}
}

// handleReminder publishes a fired reminder and, in auto mode with a live
// camera, starts the guided eye exercise for eye breaks.
func (s *Supervisor) handleReminder(ev schedule.Event, now time.Time) {
	payload := bus.ReminderPayload{Reminder: string(ev.Kind), FiredAt: ev.FiredAt}

	switch ev.Kind {
	case schedule.EyeBreak:
		payload.Message = "Look at something 20 feet away for 20 seconds."
	case schedule.Blink:
		payload.Message = "Remember to blink regularly."
		if s.monitoring && s.wasLowBlink {
			payload.Message = fmt.Sprintf(
				"Your blink rate is low (%.0f/min). Remember to blink regularly.",
				s.blink.RatePerMinute(now),
			)
		}
	}

	s.publish(bus.KindReminderFired, payload)

	if ev.Kind == schedule.EyeBreak && s.modeCtl.Mode() == ModeAuto &&
		s.monitoring && !s.exercise.Active() {
		s.exercise.Start(now)
		if st, ok := s.exercise.Status(now); ok {
			s.publish(bus.KindExercisePhase, bus.ExercisePayload{
				Phase:      st.Phase,
				RemainingS: st.Remaining.Seconds(),
				Paused:     st.Paused,
			})
		}
	}
}

// tryStartMonitoring opens a fresh source. Open failures surface as
// MonitoringError events and schedule a backoff retry.
func (s *Supervisor) tryStartMonitoring(now time.Time) {
	if s.monitoring {
		return
	}

	src := s.newSource()
	if err := src.Start(); err != nil {
		log.Printf("monitoring start failed: %v", err)
		s.publish(bus.KindMonitoringError, bus.ErrorPayload{
			Condition: "device_unavailable",
			Message:   err.Error(),
		})
		s.scheduleRetry(now)
		return
	}

	s.source = src
	s.monitoring = true
	s.suspended = false
	s.retryAttempts = 0
	s.retryAt = time.Time{}
	s.watchStarted = now
	s.haveSafe = false
	s.wasTilted = false
	s.wasLowBlink = false
	s.estimator.Reset()
	s.blink.Reset()

	if s.modeCtl.SetState(StateCalibrating) {
		s.publish(bus.KindMonitoringState, bus.StatePayload{State: string(StateCalibrating)})
	}
	log.Println("monitoring started")
}

// handleSourceError reacts to a fatal source condition: camera released,
// error published, retry scheduled. Reminders are untouched.
func (s *Supervisor) handleSourceError(err error, now time.Time) {
	condition := "camera_lost"
	if errors.Is(err, capture.ErrDeviceUnavailable) {
		condition = "device_unavailable"
	}
	log.Printf("monitoring failed: %v", err)

	s.stopSource()
	s.monitoring = false
	s.exercise.Cancel()

	s.publish(bus.KindMonitoringError, bus.ErrorPayload{
		Condition: condition,
		Message:   err.Error(),
	})

	if s.modeCtl.SetState(StateIdle) {
		s.publish(bus.KindMonitoringState, bus.StatePayload{State: string(StateIdle)})
	}

	s.scheduleRetry(now)
}

// scheduleRetry arms the next automatic restart with exponential backoff,
// or gives up once the attempt budget is spent.
func (s *Supervisor) scheduleRetry(now time.Time) {
	if !s.autoRetry {
		return
	}

	s.retryAttempts++
	if s.retryAttempts > s.cfg.Retry.MaxAttempts {
		s.autoRetry = false
		s.retryAt = time.Time{}
		log.Printf("monitoring retries exhausted after %d attempts", s.cfg.Retry.MaxAttempts)
		s.publish(bus.KindMonitoringError, bus.ErrorPayload{
			Condition: "retries_exhausted",
			Message:   "automatic monitoring restart gave up; use restart to try again",
		})
		return
	}

	delay := backoffDelay(
		s.retryAttempts,
		time.Duration(s.cfg.Retry.InitialDelayS)*time.Second,
		time.Duration(s.cfg.Retry.MaxDelayS)*time.Second,
	)
	s.retryAt = now.Add(delay)
	log.Printf("monitoring retry %d/%d in %s", s.retryAttempts, s.cfg.Retry.MaxAttempts, delay)
}

// haltMonitoring stops the camera and returns the state machine to idle.
func (s *Supervisor) haltMonitoring() {
	s.stopSource()
	s.monitoring = false
	s.suspended = false
	s.exercise.Cancel()
	if s.modeCtl.SetState(StateIdle) {
		s.publish(bus.KindMonitoringState, bus.StatePayload{State: string(StateIdle)})
	}
}

// stopSource releases the camera if a source is live. Stop blocks until
// the device handle is free.
func (s *Supervisor) stopSource() {
	if s.source != nil {
		s.source.Stop()
		s.source = nil
	}
}

// storeSnapshot publishes an immutable view of the loop state.
func (s *Supervisor) storeSnapshot() {
	snap := &Snapshot{
		Mode:             s.modeCtl.Mode(),
		State:            s.modeCtl.State(),
		MonitoringActive: s.monitoring,
		RemindersPaused:  s.sched.Paused(),
		LastVerdict:      s.lastVerdict,
		RetryAttempts:    s.retryAttempts,
		AutoRetry:        s.autoRetry,
	}
	if next, ok := s.sched.NextFire(schedule.EyeBreak); ok {
		snap.NextEyeBreak = next
	}
	if next, ok := s.sched.NextFire(schedule.Blink); ok {
		snap.NextBlink = next
	}
	if st, ok := s.exercise.Status(time.Now()); ok {
		snap.Exercise = &st
	}
	s.snap.Store(snap)
}
