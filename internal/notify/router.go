package notify

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/safewarner/internal/bus"
)

// routerSubscriberID identifies the notification router on the event bus.
const routerSubscriberID = "notify-router"

// Router turns engine events into notifications and rate-limits them.
// Alerts of the same kind within the cooldown are swallowed; exercise
// guidance is exempt because its value is in the moment.
type Router struct {
	bus        *bus.Bus
	dispatcher Dispatcher
	cooldown   time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewRouter creates a Router delivering through dispatcher.
func NewRouter(eventBus *bus.Bus, dispatcher Dispatcher, cooldown time.Duration) *Router {
	return &Router{
		bus:        eventBus,
		dispatcher: dispatcher,
		cooldown:   cooldown,
		lastSent:   make(map[string]time.Time),
	}
}

// Start subscribes the router to the event bus.
func (r *Router) Start() error {
	return r.bus.Subscribe(routerSubscriberID, r.handle)
}

// Stop unsubscribes the router.
func (r *Router) Stop() {
	if err := r.bus.Unsubscribe(routerSubscriberID); err != nil {
		log.Printf("notify: unsubscribe: %v", err)
	}
}

func (r *Router) handle(ev bus.Event) {
	n, ok := r.render(ev)
	if !ok {
		return
	}

	if r.suppressed(n, ev.Kind) {
		return
	}

	if err := r.dispatcher.Notify(n); err != nil {
		log.Printf("notify: deliver %s: %v", n.Kind, err)
	}
}

// suppressed checks and updates the cooldown bookkeeping. Exercise events
// always pass.
func (r *Router) suppressed(n Notification, kind bus.Kind) bool {
	if kind == bus.KindExercisePhase || kind == bus.KindExerciseCompleted {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if last, ok := r.lastSent[n.Kind]; ok && n.At.Sub(last) < r.cooldown {
		return true
	}
	r.lastSent[n.Kind] = n.At
	return false
}

// render maps an event to a notification. The second return is false for
// events that never reach the user directly.
func (r *Router) render(ev bus.Event) (Notification, bool) {
	n := Notification{Kind: string(ev.Kind), At: ev.At}

	switch ev.Kind {
	case bus.KindReminderFired:
		p, ok := ev.Payload.(bus.ReminderPayload)
		if !ok {
			return Notification{}, false
		}
		// Each reminder kind cools down independently.
		n.Kind = string(ev.Kind) + ":" + p.Reminder
		switch p.Reminder {
		case "eye_break":
			n.Title = "Time for an eye break"
		case "blink":
			n.Title = "Blink reminder"
		default:
			n.Title = "Reminder"
		}
		n.Message = p.Message

	case bus.KindDistanceVerdict:
		p, ok := ev.Payload.(bus.VerdictPayload)
		if !ok || p.Safe {
			return Notification{}, false
		}
		n.Title = "You're sitting too close"
		n.Message = fmt.Sprintf("Estimated distance %.0f cm. Move back from the screen.", p.DistanceCm)

	case bus.KindPostureAlert:
		p, ok := ev.Payload.(bus.PosturePayload)
		if !ok {
			return Notification{}, false
		}
		n.Title = "Check your posture"
		n.Message = fmt.Sprintf("Your head is tilted %.0f degrees. Straighten up.", p.TiltDegrees)

	case bus.KindBlinkRateLow:
		p, ok := ev.Payload.(bus.BlinkPayload)
		if !ok {
			return Notification{}, false
		}
		n.Title = "You're not blinking enough"
		n.Message = fmt.Sprintf("About %.0f blinks per minute. Rest your eyes for a moment.", p.RatePerMinute)

	case bus.KindExercisePhase:
		p, ok := ev.Payload.(bus.ExercisePayload)
		if !ok {
			return Notification{}, false
		}
		n.Title = "Eye exercise"
		direction := "right"
		if p.Phase == "left" {
			direction = "left"
		}
		if p.Paused {
			n.Message = fmt.Sprintf("Look %s to continue (%.0fs left).", direction, p.RemainingS)
		} else {
			n.Message = fmt.Sprintf("Keep looking %s (%.0fs left).", direction, p.RemainingS)
		}

	case bus.KindExerciseCompleted:
		n.Title = "Eye exercise complete"
		n.Message = "Nice work. Your next break is scheduled."

	case bus.KindMonitoringError:
		p, ok := ev.Payload.(bus.ErrorPayload)
		if !ok {
			return Notification{}, false
		}
		switch p.Condition {
		case "device_unavailable":
			n.Title = "Camera unavailable"
			n.Message = "Could not open the camera. Reminders keep running."
		case "camera_lost":
			n.Title = "Camera lost"
			n.Message = "The camera stopped responding. Trying to reconnect."
		case "retries_exhausted":
			n.Title = "Monitoring stopped"
			n.Message = "Could not recover the camera. Restart monitoring to try again."
		default:
			return Notification{}, false
		}

	default:
		return Notification{}, false
	}

	return n, true
}
