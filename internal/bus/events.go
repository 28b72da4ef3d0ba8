// Package bus provides the in-process event bus connecting the monitoring
// engine to its GUI and notification surfaces.
package bus

import "time"

// Kind identifies an event type. Ordering is guaranteed within a kind,
// not across kinds.
type Kind string

// Event kinds published by the engine.
const (
	KindModeChanged       Kind = "mode_changed"
	KindMonitoringState   Kind = "monitoring_state_changed"
	KindDistanceVerdict   Kind = "distance_verdict_changed"
	KindReminderFired     Kind = "reminder_fired"
	KindMonitoringError   Kind = "monitoring_error"
	KindPostureAlert      Kind = "posture_alert"
	KindBlinkRateLow      Kind = "blink_rate_low"
	KindExercisePhase     Kind = "exercise_phase"
	KindExerciseCompleted Kind = "exercise_completed"
)

// Event is one published occurrence.
type Event struct {
	Kind    Kind      `json:"kind"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// ModeChangedPayload accompanies KindModeChanged.
type ModeChangedPayload struct {
	Mode string `json:"mode"`
}

// StatePayload accompanies KindMonitoringState.
type StatePayload struct {
	State string `json:"state"`
}

// VerdictPayload accompanies KindDistanceVerdict.
type VerdictPayload struct {
	Safe       bool    `json:"safe"`
	DistanceCm float64 `json:"distance_cm"`
}

// ReminderPayload accompanies KindReminderFired.
type ReminderPayload struct {
	Reminder string    `json:"reminder"`
	FiredAt  time.Time `json:"fired_at"`
	Message  string    `json:"message,omitempty"`
}

// ErrorPayload accompanies KindMonitoringError.
type ErrorPayload struct {
	Condition string `json:"condition"`
	Message   string `json:"message"`
}

// PosturePayload accompanies KindPostureAlert.
type PosturePayload struct {
	TiltDegrees float64 `json:"tilt_degrees"`
}

// BlinkPayload accompanies KindBlinkRateLow.
type BlinkPayload struct {
	RatePerMinute float64 `json:"rate_per_minute"`
}

// ExercisePayload accompanies KindExercisePhase and KindExerciseCompleted.
type ExercisePayload struct {
	Phase      string  `json:"phase,omitempty"`
	RemainingS float64 `json:"remaining_s,omitempty"`
	Paused     bool    `json:"paused,omitempty"`
	DurationS  float64 `json:"duration_s,omitempty"`
}
