// Package notify delivers user-facing notifications for engine events,
// with per-kind cooldown so the same alert never nags back to back.
package notify

import "time"

// Notification is one user-facing message.
type Notification struct {
	Kind    string    `json:"kind"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Dispatcher delivers notifications to the user. Implementations must be
// safe for calls from a single goroutine.
type Dispatcher interface {
	Notify(n Notification) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(n Notification) error

// Notify calls f(n).
func (f DispatcherFunc) Notify(n Notification) error {
	return f(n)
}
