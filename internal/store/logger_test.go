package store

import (
	"testing"
	"time"

	"github.com/ayusman/safewarner/internal/bus"
)

func publishAndSettle(b *bus.Bus, ev bus.Event) {
	b.Publish(ev)
	// Delivery is asynchronous; give the logger's handler a moment.
	time.Sleep(30 * time.Millisecond)
}

func TestSessionLogger_RecordsSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	eventBus := bus.New()
	defer eventBus.Close()

	logger := NewSessionLogger(s, eventBus, "auto")
	if err := logger.Start(); err != nil {
		t.Fatalf("failed to start logger: %v", err)
	}
	defer logger.Stop()

	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	publishAndSettle(eventBus, bus.Event{
		Kind:    bus.KindMonitoringState,
		At:      start,
		Payload: bus.StatePayload{State: "calibrating"},
	})

	sessions, err := s.Sessions().List()
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 open session, got %d", len(sessions))
	}
	if sessions[0].Mode != "auto" {
		t.Errorf("mode: want auto, got %q", sessions[0].Mode)
	}

	// A further non-idle transition stays in the same session.
	publishAndSettle(eventBus, bus.Event{
		Kind:    bus.KindMonitoringState,
		At:      start.Add(time.Minute),
		Payload: bus.StatePayload{State: "unsafe_active"},
	})
	sessions, _ = s.Sessions().List()
	if len(sessions) != 1 {
		t.Fatalf("state transition opened a second session")
	}

	publishAndSettle(eventBus, bus.Event{
		Kind:    bus.KindMonitoringState,
		At:      start.Add(time.Hour),
		Payload: bus.StatePayload{State: "idle"},
	})

	sessions, _ = s.Sessions().List()
	if !sessions[0].EndedAt.Valid {
		t.Error("session not closed on idle")
	}
}

func TestSessionLogger_RecordsAlertsAndExercises(t *testing.T) {
	s := newTestStore(t)
	eventBus := bus.New()
	defer eventBus.Close()

	logger := NewSessionLogger(s, eventBus, "auto")
	if err := logger.Start(); err != nil {
		t.Fatalf("failed to start logger: %v", err)
	}
	defer logger.Stop()

	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	publishAndSettle(eventBus, bus.Event{
		Kind:    bus.KindMonitoringState,
		At:      start,
		Payload: bus.StatePayload{State: "calibrating"},
	})
	publishAndSettle(eventBus, bus.Event{
		Kind:    bus.KindReminderFired,
		At:      start.Add(20 * time.Minute),
		Payload: bus.ReminderPayload{Reminder: "eye_break", FiredAt: start.Add(20 * time.Minute)},
	})
	publishAndSettle(eventBus, bus.Event{
		Kind:    bus.KindExerciseCompleted,
		At:      start.Add(21 * time.Minute),
		Payload: bus.ExercisePayload{DurationS: 31},
	})

	sessions, _ := s.Sessions().List()
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}

	alerts, err := s.Sessions().Alerts(sessions[0].ID)
	if err != nil {
		t.Fatalf("failed to list alerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Detail != "eye_break" {
		t.Fatalf("unexpected alerts: %+v", alerts)
	}

	stats, _ := s.Sessions().Stats()
	if stats.ExercisesCompleted != 1 {
		t.Errorf("exercises: want 1, got %d", stats.ExercisesCompleted)
	}
}

func TestSessionLogger_IgnoresAlertsOutsideSession(t *testing.T) {
	s := newTestStore(t)
	eventBus := bus.New()
	defer eventBus.Close()

	logger := NewSessionLogger(s, eventBus, "manual")
	if err := logger.Start(); err != nil {
		t.Fatalf("failed to start logger: %v", err)
	}
	defer logger.Stop()

	// Reminders fire without a camera; with no open session there is
	// nothing to attach them to.
	publishAndSettle(eventBus, bus.Event{
		Kind:    bus.KindReminderFired,
		At:      time.Now(),
		Payload: bus.ReminderPayload{Reminder: "blink"},
	})

	stats, _ := s.Sessions().Stats()
	if stats.TotalSessions != 0 || stats.TotalAlerts != 0 {
		t.Errorf("unexpected records: %+v", stats)
	}
}

func TestSessionLogger_StopClosesOpenSession(t *testing.T) {
	s := newTestStore(t)
	eventBus := bus.New()
	defer eventBus.Close()

	logger := NewSessionLogger(s, eventBus, "auto")
	if err := logger.Start(); err != nil {
		t.Fatalf("failed to start logger: %v", err)
	}

	publishAndSettle(eventBus, bus.Event{
		Kind:    bus.KindMonitoringState,
		At:      time.Now(),
		Payload: bus.StatePayload{State: "calibrating"},
	})

	logger.Stop()

	sessions, _ := s.Sessions().List()
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if !sessions[0].EndedAt.Valid {
		t.Error("open session not closed on Stop")
	}
}
