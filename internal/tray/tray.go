// Package tray provides the system tray interface for Safe Warner.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onModeToggle  func(auto bool)
	onPauseToggle func(paused bool)
	onQuit        func()
	auto          bool
	paused        bool
	mu            sync.RWMutex

	// Menu items stored for later updates
	menuMode      *systray.MenuItem
	menuPause     *systray.MenuItem
	menuLastAlert *systray.MenuItem
}

// New creates a new Tray instance. auto is the operating mode at startup.
func New(auto bool) *Tray {
	return &Tray{
		auto: auto,
	}
}

// OnModeToggle sets the callback function to be called when the operating
// mode is toggled.
func (t *Tray) OnModeToggle(fn func(auto bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onModeToggle = fn
}

// OnPauseToggle sets the callback function to be called when reminders are
// paused or resumed.
func (t *Tray) OnPauseToggle(fn func(paused bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPauseToggle = fn
}

// OnQuit sets the callback function to be called when the quit menu item
// is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the system tray application.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Safe Warner")
	systray.SetTooltip("Safe Warner screen health monitor")

	t.menuMode = systray.AddMenuItem(t.modeTitle(), "Toggle automatic monitoring")
	t.menuPause = systray.AddMenuItem("Pause Reminders", "Pause or resume reminders")
	systray.AddSeparator()

	t.menuLastAlert = systray.AddMenuItem("Last alert: none", "Most recent alert")
	t.menuLastAlert.Disable()
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Safe Warner")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuMode.ClickedCh:
				t.handleModeToggle()
			case <-t.menuPause.ClickedCh:
				t.handlePauseToggle()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {
}

func (t *Tray) modeTitle() string {
	if t.auto {
		return "● Auto Mode"
	}
	return "○ Manual Mode"
}

// handleModeToggle handles the mode menu item click.
func (t *Tray) handleModeToggle() {
	t.mu.Lock()
	t.auto = !t.auto
	auto := t.auto
	t.menuMode.SetTitle(t.modeTitle())
	callback := t.onModeToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(auto)
	}
}

// handlePauseToggle handles the pause menu item click.
func (t *Tray) handlePauseToggle() {
	t.mu.Lock()
	t.paused = !t.paused
	paused := t.paused

	if paused {
		t.menuPause.SetTitle("Resume Reminders")
	} else {
		t.menuPause.SetTitle("Pause Reminders")
	}

	callback := t.onPauseToggle
	t.mu.Unlock()

	if callback != nil {
		callback(paused)
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetLastAlert updates the last alert display in the menu.
func (t *Tray) SetLastAlert(title string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastAlert != nil {
		if title == "" {
			t.menuLastAlert.SetTitle("Last alert: none")
		} else {
			t.menuLastAlert.SetTitle("Last alert: " + title)
		}
	}
}

// IsAuto returns whether the tray shows auto mode.
func (t *Tray) IsAuto() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.auto
}
