package autowalk

import (
	"context"
	"sync"
	"time"

	"digbot/internal/log"
)

// State is the auto-walk phase. Exactly one is active; transitions happen
// only in Tick, which runs on the frame loop.
type State int

const (
	StateMove State = iota
	StateClickToStart
	StateWaitForTarget
	StateDigging
)

func (s State) String() string {
	switch s {
	case StateMove:
		return "move"
	case StateClickToStart:
		return "click_to_start"
	case StateWaitForTarget:
		return "wait_for_target"
	case StateDigging:
		return "digging"
	default:
		return "unknown"
	}
}

// Actions is what the machine asks of its owner. Movement and sell run
// asynchronously; TryClick must acquire the click exclusivity token and
// report false when it is already held.
type Actions interface {
	// StartStep dispatches a movement step asynchronously. The owner calls
	// Advance on the machine only if the step succeeds.
	StartStep(step Step, duration time.Duration)
	// TryClick acquires the click token and dispatches a click.
	TryClick() bool
	// StartSell begins the sell sequence asynchronously.
	StartSell()
	// IsSelling reports whether a sell sequence is in flight.
	IsSelling() bool
	// HasSellTarget reports whether a sell click position is configured.
	HasSellTarget() bool
}

// MachineConfig holds the state-machine timing constants.
type MachineConfig struct {
	WalkDuration       time.Duration // default step duration
	SettleTime         time.Duration // added to each step before clicking
	MaxWait            time.Duration // wait_for_target window
	MaxClickRetries    int
	DisengageConfirm   time.Duration // sustained disengagement that completes a dig
	PostDigDelay       time.Duration // pause before a pending sell fires
	AutoSell           bool
	SellEvery          int // sell every N digs
	SellWaitTimeout    time.Duration // bounded wait for sell completion
	PendingSellTimeout time.Duration // force-clear a sell that never triggers
}

// DefaultMachineConfig returns the stock timings.
func DefaultMachineConfig() MachineConfig {
	return MachineConfig{
		WalkDuration:       500 * time.Millisecond,
		SettleTime:         300 * time.Millisecond,
		MaxWait:            5000 * time.Millisecond,
		MaxClickRetries:    2,
		DisengageConfirm:   1500 * time.Millisecond,
		PostDigDelay:       2000 * time.Millisecond,
		SellEvery:          10,
		SellWaitTimeout:    30 * time.Second,
		PendingSellTimeout: 10 * time.Second,
	}
}

// Machine is the auto-walk digging state machine. It is owned by the frame
// loop; only Advance and the read-only counters are safe from other
// goroutines.
type Machine struct {
	cfg     MachineConfig
	actions Actions

	state State

	mu      sync.Mutex
	steps   []Step
	stepIdx int

	currentClick  bool
	stepDeadline  time.Time
	waitStart     time.Time
	clickRetries  int
	disengagedAt  time.Time
	digFinishedAt time.Time
	pendingSell   bool

	digCount  int
	sellCount int
}

// NewMachine creates a machine walking the given pattern.
func NewMachine(cfg MachineConfig, steps []Step, actions Actions) *Machine {
	return &Machine{cfg: cfg, steps: steps, actions: actions}
}

// State returns the active phase.
func (m *Machine) State() State { return m.state }

// DigCount returns completed digs this run.
func (m *Machine) DigCount() int { return m.digCount }

// SellCount returns completed sells this run.
func (m *Machine) SellCount() int { return m.sellCount }

// Reset returns the machine to its initial state for a fresh run.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.stepIdx = 0
	m.mu.Unlock()

	m.state = StateMove
	m.clickRetries = 0
	m.disengagedAt = time.Time{}
	m.digFinishedAt = time.Time{}
	m.pendingSell = false
	m.digCount = 0
	m.sellCount = 0
}

// Advance moves to the next pattern step. Called by the owner (possibly from
// a step goroutine) after a movement step succeeds; a failed step leaves the
// pattern in place so the step is retried.
func (m *Machine) Advance() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.steps) > 0 {
		m.stepIdx = (m.stepIdx + 1) % len(m.steps)
	}
}

func (m *Machine) currentStep() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.steps) == 0 {
		return Step{Click: true}
	}
	return m.steps[m.stepIdx]
}

// Tick advances the machine by one frame. engaged is this frame's target
// engagement signal; now is the frame timestamp. The only blocking path is
// the bounded sell wait.
func (m *Machine) Tick(ctx context.Context, now time.Time, engaged bool) {
	// A pending sell that never fires is force-cleared rather than left to
	// wedge the machine.
	if m.pendingSell && !m.digFinishedAt.IsZero() {
		if stuck := now.Sub(m.digFinishedAt); stuck > m.cfg.PendingSellTimeout {
			log.Warn("pending sell timed out, clearing", "stuck_for", stuck)
			m.pendingSell = false
			m.digFinishedAt = time.Time{}
		}
	}

	if m.actions.IsSelling() {
		return
	}

	switch m.state {
	case StateMove:
		m.tickMove(ctx, now)
	case StateClickToStart:
		m.tickClickToStart(now)
	case StateWaitForTarget:
		m.tickWaitForTarget(now, engaged)
	case StateDigging:
		m.tickDigging(now, engaged)
	}
}

func (m *Machine) tickMove(ctx context.Context, now time.Time) {
	if m.pendingSell && !m.digFinishedAt.IsZero() && now.Sub(m.digFinishedAt) >= m.cfg.PostDigDelay {
		m.runSell(ctx)
		return
	}
	if m.pendingSell {
		return // still inside the post-dig delay
	}

	step := m.currentStep()
	duration := step.Duration
	if duration == 0 {
		duration = m.cfg.WalkDuration
	}
	m.currentClick = step.Click

	m.actions.StartStep(step, duration)
	m.state = StateClickToStart
	m.stepDeadline = now.Add(duration + m.cfg.SettleTime)
}

// runSell fires the sell sequence and waits, bounded, for it to finish.
func (m *Machine) runSell(ctx context.Context) {
	m.pendingSell = false
	m.digFinishedAt = time.Time{}

	if !m.actions.HasSellTarget() {
		log.Warn("sell skipped: no sell position configured")
		return
	}

	log.Debug("starting auto-sell", "dig_count", m.digCount)
	m.actions.StartSell()

	deadline := time.Now().Add(m.cfg.SellWaitTimeout)
	for m.actions.IsSelling() {
		if time.Now().After(deadline) {
			log.Warn("sell wait timed out, resuming walk", "timeout", m.cfg.SellWaitTimeout)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
	m.sellCount++
}

func (m *Machine) tickClickToStart(now time.Time) {
	if now.Before(m.stepDeadline) {
		return
	}
	if !m.currentClick {
		log.Debug("step has clicking disabled, moving on")
		m.state = StateMove
		return
	}
	if m.actions.TryClick() {
		m.state = StateWaitForTarget
		m.waitStart = now
	}
}

func (m *Machine) tickWaitForTarget(now time.Time, engaged bool) {
	if engaged {
		m.state = StateDigging
		m.disengagedAt = time.Time{}
		m.clickRetries = 0
		return
	}

	if now.Sub(m.waitStart) <= m.cfg.MaxWait {
		return
	}

	if m.clickRetries < m.cfg.MaxClickRetries {
		m.clickRetries++
		log.Debug("engagement timeout, retrying click", "retry", m.clickRetries, "max", m.cfg.MaxClickRetries)
		if m.actions.TryClick() {
			m.waitStart = now
		}
		return
	}

	log.Warn("target never engaged, abandoning step", "retries", m.cfg.MaxClickRetries)
	m.clickRetries = 0
	m.state = StateMove
}

func (m *Machine) tickDigging(now time.Time, engaged bool) {
	if engaged {
		m.disengagedAt = time.Time{}
		return
	}
	if m.disengagedAt.IsZero() {
		m.disengagedAt = now
		return
	}
	if now.Sub(m.disengagedAt) <= m.cfg.DisengageConfirm {
		return
	}

	// Sustained disengagement: the dig is done.
	m.digCount++
	m.digFinishedAt = now
	log.Info("dig completed", "dig_count", m.digCount)

	if m.cfg.AutoSell && m.actions.HasSellTarget() && m.cfg.SellEvery > 0 && m.digCount%m.cfg.SellEvery == 0 {
		m.pendingSell = true
		log.Info("sell scheduled", "after", m.cfg.PostDigDelay)
	}

	m.state = StateMove
}
