package autowalk

import (
	"context"
	"testing"
	"time"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeActions drives the machine synchronously: steps advance immediately and
// clicks always land unless configured otherwise.
type fakeActions struct {
	m *Machine

	stepFails  bool
	clickFails bool
	selling    bool
	sellTarget bool

	stepKeys []string
	clicks   int
	sells    int
}

func (f *fakeActions) StartStep(step Step, duration time.Duration) {
	f.stepKeys = append(f.stepKeys, step.Key)
	if !f.stepFails {
		f.m.Advance()
	}
}

func (f *fakeActions) TryClick() bool {
	if f.clickFails {
		return false
	}
	f.clicks++
	return true
}

func (f *fakeActions) StartSell() {
	f.sells++
}

func (f *fakeActions) IsSelling() bool { return f.selling }

func (f *fakeActions) HasSellTarget() bool { return f.sellTarget }

func newTestMachine(pattern string) (*Machine, *fakeActions) {
	f := &fakeActions{}
	m := NewMachine(DefaultMachineConfig(), LookupPattern(pattern), f)
	f.m = m
	return m, f
}

func TestMachine_FullDigCycle(t *testing.T) {
	ctx := context.Background()
	m, f := newTestMachine("nsew")

	// Move: a step starts and the machine waits for it to finish.
	m.Tick(ctx, epoch, false)
	if m.State() != StateClickToStart {
		t.Fatalf("Expected click_to_start after the step, got %v", m.State())
	}
	if len(f.stepKeys) != 1 || f.stepKeys[0] != "w" {
		t.Fatalf("Expected the first nsew step 'w', got %v", f.stepKeys)
	}

	// Step duration 500ms plus settle 300ms: too early, no click yet.
	m.Tick(ctx, epoch.Add(700*time.Millisecond), false)
	if f.clicks != 0 {
		t.Fatal("Expected no click before the step settles")
	}

	m.Tick(ctx, epoch.Add(900*time.Millisecond), false)
	if f.clicks != 1 {
		t.Fatalf("Expected the dig click after settling, got %d clicks", f.clicks)
	}
	if m.State() != StateWaitForTarget {
		t.Fatalf("Expected wait_for_target, got %v", m.State())
	}

	// Engagement moves to digging.
	m.Tick(ctx, epoch.Add(time.Second), true)
	if m.State() != StateDigging {
		t.Fatalf("Expected digging on engagement, got %v", m.State())
	}

	// A short disengagement blip does not complete the dig.
	m.Tick(ctx, epoch.Add(3*time.Second), false)
	m.Tick(ctx, epoch.Add(4*time.Second), true)
	if m.DigCount() != 0 {
		t.Fatal("Expected a blip to not count as a completed dig")
	}

	// Sustained disengagement past the confirm window completes it.
	m.Tick(ctx, epoch.Add(5*time.Second), false)
	m.Tick(ctx, epoch.Add(6*time.Second), false)
	if m.DigCount() != 0 {
		t.Fatal("Expected the dig to still be in progress inside the confirm window")
	}
	m.Tick(ctx, epoch.Add(6600*time.Millisecond), false)
	if m.DigCount() != 1 {
		t.Fatalf("Expected exactly one completed dig, got %d", m.DigCount())
	}
	if m.State() != StateMove {
		t.Errorf("Expected a return to move after the dig, got %v", m.State())
	}
}

func TestMachine_PatternAdvancesOnSuccess(t *testing.T) {
	ctx := context.Background()
	m, f := newTestMachine("nsew")

	// Drive five move entries; each step succeeds so the pattern cycles.
	now := epoch
	for i := 0; i < 5; i++ {
		m.Tick(ctx, now, false)
		now = now.Add(time.Second)
		m.Tick(ctx, now, false) // click fires, wait_for_target
		now = now.Add(6 * time.Second)
		m.Tick(ctx, now, false) // retry 1
		now = now.Add(6 * time.Second)
		m.Tick(ctx, now, false) // retry 2
		now = now.Add(6 * time.Second)
		m.Tick(ctx, now, false) // abandoned, back to move
	}

	want := []string{"w", "d", "s", "a", "w"}
	if len(f.stepKeys) != len(want) {
		t.Fatalf("Expected %d steps, got %v", len(want), f.stepKeys)
	}
	for i, key := range want {
		if f.stepKeys[i] != key {
			t.Errorf("Step %d: expected %q, got %q", i, key, f.stepKeys[i])
		}
	}
}

func TestMachine_FailedStepRepeats(t *testing.T) {
	ctx := context.Background()
	m, f := newTestMachine("nsew")
	f.stepFails = true
	f.clickFails = true

	// Two move entries without Advance: the same step dispatches twice.
	m.Tick(ctx, epoch, false)
	m.Tick(ctx, epoch.Add(time.Second), false) // click fails, stays in click_to_start
	if m.State() != StateClickToStart {
		t.Fatalf("Expected to stay in click_to_start on a failed click, got %v", m.State())
	}

	f.clickFails = false
	m.Tick(ctx, epoch.Add(2*time.Second), false)
	if m.State() != StateWaitForTarget {
		t.Fatalf("Expected wait_for_target once the click lands, got %v", m.State())
	}

	// Abandon the wait, then re-enter move: still step "w".
	for i := 0; i < 3; i++ {
		m.Tick(ctx, epoch.Add(time.Duration(10+i*6)*time.Second), false)
	}
	m.Tick(ctx, epoch.Add(40*time.Second), false)
	if len(f.stepKeys) != 2 || f.stepKeys[1] != "w" {
		t.Errorf("Expected the failed step to repeat, got %v", f.stepKeys)
	}
}

func TestMachine_RetryExhaustionAbandonsStep(t *testing.T) {
	ctx := context.Background()
	m, f := newTestMachine("nsew")

	m.Tick(ctx, epoch, false)
	m.Tick(ctx, epoch.Add(time.Second), false) // initial click
	if f.clicks != 1 {
		t.Fatalf("Expected the initial click, got %d", f.clicks)
	}

	// Each engagement timeout retries the click, up to the limit.
	m.Tick(ctx, epoch.Add(7*time.Second), false)
	if f.clicks != 2 || m.State() != StateWaitForTarget {
		t.Fatalf("Expected retry 1, got %d clicks in %v", f.clicks, m.State())
	}
	m.Tick(ctx, epoch.Add(13*time.Second), false)
	if f.clicks != 3 {
		t.Fatalf("Expected retry 2, got %d clicks", f.clicks)
	}

	m.Tick(ctx, epoch.Add(19*time.Second), false)
	if m.State() != StateMove {
		t.Errorf("Expected the step to be abandoned after max retries, got %v", m.State())
	}
	if f.clicks != 3 {
		t.Errorf("Expected no further clicks after abandoning, got %d", f.clicks)
	}
}

func TestMachine_ClickDisabledStepSkipsToMove(t *testing.T) {
	ctx := context.Background()
	f := &fakeActions{}
	steps := []Step{{Key: "w", Duration: 200 * time.Millisecond, Click: false}}
	m := NewMachine(DefaultMachineConfig(), steps, f)
	f.m = m

	m.Tick(ctx, epoch, false)
	m.Tick(ctx, epoch.Add(time.Second), false)
	if m.State() != StateMove {
		t.Errorf("Expected a click-disabled step to return to move, got %v", m.State())
	}
	if f.clicks != 0 {
		t.Errorf("Expected no clicks on a click-disabled step, got %d", f.clicks)
	}
}

func TestMachine_SellAfterConfiguredDigs(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultMachineConfig()
	cfg.AutoSell = true
	cfg.SellEvery = 1
	f := &fakeActions{sellTarget: true}
	m := NewMachine(cfg, LookupPattern("nsew"), f)
	f.m = m

	// Run one full dig.
	m.Tick(ctx, epoch, false)
	m.Tick(ctx, epoch.Add(time.Second), false)
	m.Tick(ctx, epoch.Add(2*time.Second), true)
	m.Tick(ctx, epoch.Add(3*time.Second), false)
	m.Tick(ctx, epoch.Add(5*time.Second), false)
	if m.DigCount() != 1 {
		t.Fatalf("Expected one dig, got %d", m.DigCount())
	}

	// Inside the post-dig delay nothing fires.
	stepsBefore := len(f.stepKeys)
	m.Tick(ctx, epoch.Add(6*time.Second), false)
	if f.sells != 0 {
		t.Fatal("Expected the sell to wait out the post-dig delay")
	}
	if len(f.stepKeys) != stepsBefore {
		t.Fatal("Expected no movement while a sell is pending")
	}

	// Past the delay the sell fires and completes.
	m.Tick(ctx, epoch.Add(7100*time.Millisecond), false)
	if f.sells != 1 {
		t.Fatalf("Expected the sell to fire, got %d", f.sells)
	}
	if m.SellCount() != 1 {
		t.Errorf("Expected sell count 1, got %d", m.SellCount())
	}
}

func TestMachine_NoSellWithoutTarget(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultMachineConfig()
	cfg.AutoSell = true
	cfg.SellEvery = 1
	f := &fakeActions{sellTarget: false}
	m := NewMachine(cfg, LookupPattern("nsew"), f)
	f.m = m

	m.Tick(ctx, epoch, false)
	m.Tick(ctx, epoch.Add(time.Second), false)
	m.Tick(ctx, epoch.Add(2*time.Second), true)
	m.Tick(ctx, epoch.Add(3*time.Second), false)
	m.Tick(ctx, epoch.Add(5*time.Second), false)

	m.Tick(ctx, epoch.Add(8*time.Second), false)
	if f.sells != 0 {
		t.Errorf("Expected no sell without a configured position, got %d", f.sells)
	}
}

func TestMachine_StalePendingSellCleared(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultMachineConfig()
	cfg.AutoSell = true
	cfg.SellEvery = 1
	f := &fakeActions{sellTarget: true}
	m := NewMachine(cfg, LookupPattern("nsew"), f)
	f.m = m

	// Complete a dig so a sell is pending.
	m.Tick(ctx, epoch, false)
	m.Tick(ctx, epoch.Add(time.Second), false)
	m.Tick(ctx, epoch.Add(2*time.Second), true)
	m.Tick(ctx, epoch.Add(3*time.Second), false)
	m.Tick(ctx, epoch.Add(5*time.Second), false)

	// A stuck sell sequence blocks the machine past the pending timeout.
	f.selling = true
	m.Tick(ctx, epoch.Add(8*time.Second), false)
	m.Tick(ctx, epoch.Add(16*time.Second), false)
	f.selling = false

	// The stale pending sell was cleared: the machine walks instead of selling.
	stepsBefore := len(f.stepKeys)
	m.Tick(ctx, epoch.Add(17*time.Second), false)
	if f.sells != 0 {
		t.Errorf("Expected the stale sell to be dropped, got %d sells", f.sells)
	}
	if len(f.stepKeys) != stepsBefore+1 {
		t.Errorf("Expected walking to resume, steps %v", f.stepKeys)
	}
}

func TestMachine_ResetClearsCounters(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMachine("nsew")

	m.Tick(ctx, epoch, false)
	m.Tick(ctx, epoch.Add(time.Second), false)
	m.Tick(ctx, epoch.Add(2*time.Second), true)
	m.Tick(ctx, epoch.Add(3*time.Second), false)
	m.Tick(ctx, epoch.Add(5*time.Second), false)
	if m.DigCount() != 1 {
		t.Fatalf("Expected one dig before reset, got %d", m.DigCount())
	}

	m.Reset()
	if m.DigCount() != 0 || m.SellCount() != 0 {
		t.Error("Expected counters cleared after reset")
	}
	if m.State() != StateMove {
		t.Errorf("Expected move after reset, got %v", m.State())
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateMove:          "move",
		StateClickToStart:  "click_to_start",
		StateWaitForTarget: "wait_for_target",
		StateDigging:       "digging",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State %d: expected %q, got %q", state, got, want)
		}
	}
}
