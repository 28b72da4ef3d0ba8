package store

import (
	"log"
	"sync"
	"time"

	"github.com/ayusman/safewarner/internal/bus"
)

// loggerSubscriberID identifies the session logger on the event bus.
const loggerSubscriberID = "session-logger"

// SessionLogger records session history from engine events. A session
// opens when monitoring leaves idle and closes when it returns; alerts
// and completed exercises land in the open session.
type SessionLogger struct {
	repo *SessionRepository
	bus  *bus.Bus

	mu      sync.Mutex
	mode    string
	current *Session
}

// NewSessionLogger creates a logger writing to the given store. mode is
// the operating mode at startup.
func NewSessionLogger(s *Store, eventBus *bus.Bus, mode string) *SessionLogger {
	return &SessionLogger{
		repo: s.Sessions(),
		bus:  eventBus,
		mode: mode,
	}
}

// Start subscribes the logger to the event bus.
func (l *SessionLogger) Start() error {
	return l.bus.Subscribe(loggerSubscriberID, l.handle)
}

// Stop unsubscribes the logger and closes any open session.
func (l *SessionLogger) Stop() {
	if err := l.bus.Unsubscribe(loggerSubscriberID); err != nil {
		log.Printf("session logger: unsubscribe: %v", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked(time.Now())
}

func (l *SessionLogger) handle(ev bus.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch ev.Kind {
	case bus.KindModeChanged:
		if p, ok := ev.Payload.(bus.ModeChangedPayload); ok {
			l.mode = p.Mode
		}

	case bus.KindMonitoringState:
		p, ok := ev.Payload.(bus.StatePayload)
		if !ok {
			return
		}
		if p.State == "idle" {
			l.closeLocked(ev.At)
			return
		}
		if l.current == nil {
			sess, err := l.repo.Begin(l.mode, ev.At)
			if err != nil {
				log.Printf("session logger: begin session: %v", err)
				return
			}
			l.current = sess
		}

	case bus.KindReminderFired:
		detail := ""
		if p, ok := ev.Payload.(bus.ReminderPayload); ok {
			detail = p.Reminder
		}
		l.alertLocked(ev, detail)

	case bus.KindPostureAlert, bus.KindBlinkRateLow:
		l.alertLocked(ev, "")

	case bus.KindMonitoringError:
		detail := ""
		if p, ok := ev.Payload.(bus.ErrorPayload); ok {
			detail = p.Condition
		}
		l.alertLocked(ev, detail)

	case bus.KindExerciseCompleted:
		if l.current == nil {
			return
		}
		duration := 0.0
		if p, ok := ev.Payload.(bus.ExercisePayload); ok {
			duration = p.DurationS
		}
		if err := l.repo.AddExercise(l.current.ID, duration, ev.At); err != nil {
			log.Printf("session logger: record exercise: %v", err)
		}
	}
}

// alertLocked records an alert against the open session. Reminders fire
// with or without a session; only in-session ones are recorded.
func (l *SessionLogger) alertLocked(ev bus.Event, detail string) {
	if l.current == nil {
		return
	}
	if err := l.repo.AddAlert(l.current.ID, string(ev.Kind), detail, ev.At); err != nil {
		log.Printf("session logger: record alert: %v", err)
	}
}

func (l *SessionLogger) closeLocked(now time.Time) {
	if l.current == nil {
		return
	}
	if err := l.repo.End(l.current.ID, now); err != nil {
		log.Printf("session logger: end session: %v", err)
	}
	l.current = nil
}
