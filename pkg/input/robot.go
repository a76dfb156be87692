package input

import (
	"time"

	"github.com/go-vgo/robotgo"

	"digbot/internal/log"
)

// Dispatcher abstracts OS input injection so the engine and state machine
// can be tested without moving the real mouse.
type Dispatcher interface {
	// Click performs a left click at the current cursor position.
	Click()
	// MoveMouse places the cursor at absolute screen coordinates.
	MoveMouse(x, y int)
	// Step holds a movement key for the given duration. An empty key is a
	// stationary step (pure wait). Returns false when injection failed.
	Step(key string, duration time.Duration) bool
	// Tap presses and releases a key once.
	Tap(key string) bool
}

// Robot injects input through robotgo.
type Robot struct{}

// NewRobot returns the robotgo-backed dispatcher.
func NewRobot() *Robot {
	return &Robot{}
}

// Click performs a left mouse click.
func (r *Robot) Click() {
	robotgo.Click("left", false)
}

// MoveMouse moves the cursor to absolute screen coordinates.
func (r *Robot) MoveMouse(x, y int) {
	robotgo.Move(x, y)
}

// Step holds key down for duration, then releases it. The release runs even
// when the hold is interrupted by an injection error.
func (r *Robot) Step(key string, duration time.Duration) bool {
	if key == "" {
		time.Sleep(duration)
		return true
	}

	if err := robotgo.KeyDown(key); err != nil {
		log.Error("key down failed", "key", key, "error", err)
		return false
	}
	time.Sleep(duration)
	if err := robotgo.KeyUp(key); err != nil {
		log.Error("key up failed", "key", key, "error", err)
		return false
	}
	return true
}

// Tap presses and releases a key.
func (r *Robot) Tap(key string) bool {
	if err := robotgo.KeyTap(key); err != nil {
		log.Error("key tap failed", "key", key, "error", err)
		return false
	}
	return true
}
