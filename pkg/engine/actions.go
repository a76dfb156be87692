package engine

import (
	"time"

	"digbot/internal/log"
	"digbot/pkg/autowalk"
)

// The engine is the state machine's Actions implementation. Movement, clicks
// and the sell sequence all run off the frame loop; the machine only observes
// their completion through flags and Advance.

// StartStep dispatches a movement step on its own goroutine. A step that
// lands while a sell is in flight, or after Stop, is dropped.
func (e *Engine) StartStep(step autowalk.Step, duration time.Duration) {
	go func() {
		if !e.running.Load() || e.selling.Load() {
			log.Debug("walk step skipped", "key", step.Key)
			return
		}
		if e.disp.Step(step.Key, duration) {
			e.machine.Advance()
		} else {
			log.Warn("movement step failed, will retry", "key", step.Key)
		}
	}()
}

// TryClick acquires the click token and dispatches an immediate click.
// Returns false when a click is already in flight.
func (e *Engine) TryClick() bool {
	if !e.token.TryAcquire() {
		return false
	}
	go func() {
		defer e.token.Release()
		if !e.running.Load() {
			return
		}
		e.placeCursor()
		e.disp.Click()
		e.clicks.Add(1)
	}()
	return true
}

// StartSell begins the sell sequence. A second call while one is in flight
// is a no-op.
func (e *Engine) StartSell() {
	if !e.selling.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer e.selling.Store(false)
		e.performSell()
	}()
}

// IsSelling reports whether the sell sequence is in flight.
func (e *Engine) IsSelling() bool {
	return e.selling.Load()
}

// HasSellTarget reports whether a sell button position is configured.
func (e *Engine) HasSellTarget() bool {
	_, _, ok := e.cfg.SellPosition()
	return ok
}

// performSell opens the inventory, clicks the configured sell button, and
// closes the inventory again.
func (e *Engine) performSell() {
	x, y, ok := e.cfg.SellPosition()
	if !ok {
		return
	}

	log.Info("selling inventory", "x", x, "y", y)

	e.disp.Tap("g")
	time.Sleep(800 * time.Millisecond)

	e.disp.MoveMouse(x, y)
	time.Sleep(200 * time.Millisecond)
	e.disp.Click()
	time.Sleep(500 * time.Millisecond)

	e.disp.Tap("g")
	time.Sleep(300 * time.Millisecond)
}

// instantClick dispatches a direct click through the bounded pool. No token:
// a direct hit is valid right now and must not wait for a pending predictive
// click to clear.
func (e *Engine) instantClick() {
	ok := e.pool.Submit(func() {
		if !e.running.Load() {
			return
		}
		e.placeCursor()
		e.disp.Click()
		e.clicks.Add(1)
	})
	if !ok {
		log.Debug("click pool saturated, dropping click")
	}
}

// delayedClick holds the token through a predictive delay, then clicks.
func (e *Engine) delayedClick(delay time.Duration) {
	if !e.token.TryAcquire() {
		return
	}
	go func() {
		defer e.token.Release()
		time.Sleep(delay)
		if !e.running.Load() {
			return
		}
		e.placeCursor()
		e.disp.Click()
		e.clicks.Add(1)
	}()
}

func (e *Engine) placeCursor() {
	if e.cfg.UseCustomCursor {
		e.disp.MoveMouse(e.cfg.CursorX, e.cfg.CursorY)
	}
}
