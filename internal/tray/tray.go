// Package tray provides the system tray interface for mudra.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/gesture"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle      func(enabled bool)
	onRecalibrate func()
	onClearLock   func()
	onQuit        func()
	enabled       bool
	mu            sync.RWMutex

	// Menu items stored for later updates
	menuToggle    *systray.MenuItem
	menuStatus    *systray.MenuItem
	menuGesture   *systray.MenuItem
	menuClearLock *systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnRecalibrate sets the callback for the Recalibrate menu item.
func (t *Tray) OnRecalibrate(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecalibrate = fn
}

// OnClearLock sets the callback for the Clear Signature Lock menu item.
func (t *Tray) OnClearLock(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClearLock = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
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

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra hand tracking")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle hand tracking")
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem(StatusTitle(calibration.Status{State: calibration.AwaitingGestures, Reason: calibration.ReasonBothMissing}), "Calibration status")
	t.menuStatus.Disable()
	t.menuGesture = systray.AddMenuItem("Gesture: none", "Current gesture")
	t.menuGesture.Disable()
	systray.AddSeparator()

	menuRecalibrate := systray.AddMenuItem("Recalibrate", "Restart calibration")
	t.menuClearLock = systray.AddMenuItem("Clear Signature Lock", "Accept any hand")
	t.menuClearLock.Disable()
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")
	t.mu.Unlock()

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuRecalibrate.ClickedCh:
				t.handle(func() func() { return t.onRecalibrate })
			case <-t.menuClearLock.ClickedCh:
				t.handle(func() func() { return t.onClearLock })
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle flips the enabled state and reports it.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handle calls the callback picked under the read lock.
func (t *Tray) handle(pick func() func()) {
	t.mu.RLock()
	callback := pick()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.handle(func() func() { return t.onQuit })
	systray.Quit()
}

// SetStatus updates the calibration line and enables Clear Signature Lock
// while a lock is held.
func (t *Tray) SetStatus(status calibration.Status, signatureLocked bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus != nil {
		t.menuStatus.SetTitle(StatusTitle(status))
	}
	if t.menuClearLock != nil {
		if signatureLocked {
			t.menuClearLock.Enable()
		} else {
			t.menuClearLock.Disable()
		}
	}
}

// SetGesture updates the gesture display in the menu.
func (t *Tray) SetGesture(g gesture.Gesture) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuGesture != nil {
		t.menuGesture.SetTitle(GestureTitle(g))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// StatusTitle renders a calibration status as a menu line.
func StatusTitle(status calibration.Status) string {
	switch status.State {
	case calibration.Locked:
		return "Calibrated"
	case calibration.Accumulating:
		return fmt.Sprintf("Calibrating… %d%%", int(status.Progress*100))
	default:
		if status.Reason == calibration.ReasonNone {
			return "Waiting for hands"
		}
		return "Calibrate: " + string(status.Reason)
	}
}

// GestureTitle renders the current gesture as a menu line.
func GestureTitle(g gesture.Gesture) string {
	if g == "" {
		return "Gesture: none"
	}
	return "Gesture: " + string(g)
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}
