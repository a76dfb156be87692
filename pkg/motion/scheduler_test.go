package motion

import (
	"testing"
	"time"
)

func testSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		PredictionEnabled:   true,
		ConfidenceThreshold: 0.6,
		PostClickBlindness:  50 * time.Millisecond,
	}
}

// steadyEstimator moves right at 1000 px/s, ending at position 50.
func steadyEstimator() *Estimator {
	e := NewEstimator(120)
	feed(e, 10*time.Millisecond, 0, 10, 20, 30, 40, 50)
	return e
}

func TestScheduler_DirectHit(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	spot := SweetSpot{Center: 100, Start: 90, End: 110}

	dec := s.Decide(epoch, 100, spot, NewEstimator(120), 120, 10*time.Millisecond, false)
	if dec.Kind != ClickDirect {
		t.Fatalf("Expected a direct click inside the band, got %v", dec.Kind)
	}
	if dec.Confidence != 1.0 {
		t.Errorf("Expected full confidence on a direct hit, got %v", dec.Confidence)
	}
	if dec.Delay != 0 {
		t.Errorf("Expected no delay on a direct hit, got %v", dec.Delay)
	}
}

func TestScheduler_PredictiveClick(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	est := steadyEstimator()
	spot := SweetSpot{Center: 150, Start: 140, End: 160}

	dec := s.Decide(epoch, 50, spot, est, 120, 10*time.Millisecond, false)
	if dec.Kind != ClickPredictive {
		t.Fatalf("Expected a predictive click, got %v", dec.Kind)
	}
	// Arrival in ~100 ms, pulled earlier by the latency compensation.
	if dec.Delay <= 0 || dec.Delay >= 100*time.Millisecond {
		t.Errorf("Expected a delay in (0,100ms), got %v", dec.Delay)
	}
	if dec.Confidence < 0.6 {
		t.Errorf("Expected confidence above the threshold, got %v", dec.Confidence)
	}
}

func TestScheduler_NoDecisionWhileTokenHeld(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	spot := SweetSpot{Center: 100, Start: 90, End: 110}

	dec := s.Decide(epoch, 100, spot, NewEstimator(120), 120, 0, true)
	if dec.Kind != ClickNone {
		t.Errorf("Expected no decision while a click is in flight, got %v", dec.Kind)
	}
}

func TestScheduler_BlindWindowSuppressesClicks(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	spot := SweetSpot{Center: 100, Start: 90, End: 110}

	dec := s.Decide(epoch, 100, spot, NewEstimator(120), 120, 0, false)
	if dec.Kind != ClickDirect {
		t.Fatalf("Expected the first click to fire, got %v", dec.Kind)
	}
	s.NoteClick(epoch)

	// Still inside the 50 ms blind window.
	dec = s.Decide(epoch.Add(30*time.Millisecond), 100, spot, NewEstimator(120), 120, 0, false)
	if dec.Kind != ClickNone {
		t.Errorf("Expected the blind window to hold, got %v", dec.Kind)
	}

	// Past the window.
	dec = s.Decide(epoch.Add(60*time.Millisecond), 100, spot, NewEstimator(120), 120, 0, false)
	if dec.Kind != ClickDirect {
		t.Errorf("Expected clicks to resume after the blind window, got %v", dec.Kind)
	}
}

func TestScheduler_NoLineNoClick(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	spot := SweetSpot{Center: 100, Start: 90, End: 110}

	dec := s.Decide(epoch, NoPosition, spot, steadyEstimator(), 120, 0, false)
	if dec.Kind != ClickNone {
		t.Errorf("Expected no click without a detected line, got %v", dec.Kind)
	}
}

func TestScheduler_PredictionDisabled(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.PredictionEnabled = false
	s := NewScheduler(cfg)
	spot := SweetSpot{Center: 150, Start: 140, End: 160}

	dec := s.Decide(epoch, 50, spot, steadyEstimator(), 120, 10*time.Millisecond, false)
	if dec.Kind != ClickNone {
		t.Errorf("Expected no predictive click when prediction is off, got %v", dec.Kind)
	}
}

func TestScheduler_MovingAwayNoClick(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	est := NewEstimator(120)
	feed(est, 10*time.Millisecond, 100, 90, 80)
	spot := SweetSpot{Center: 150, Start: 140, End: 160}

	dec := s.Decide(epoch, 80, spot, est, 120, 0, false)
	if dec.Kind != ClickNone {
		t.Errorf("Expected no click while moving away from the band, got %v", dec.Kind)
	}
}

func TestScheduler_UnstableMotionRejected(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	est := NewEstimator(120)
	// Erratic but net-rightward motion toward the band.
	feed(est, 10*time.Millisecond, 0, 45, 5, 55, 20, 50)
	spot := SweetSpot{Center: 150, Start: 140, End: 160}

	dec := s.Decide(epoch, 50, spot, est, 120, 10*time.Millisecond, false)
	if dec.Kind == ClickPredictive {
		t.Errorf("Expected unstable motion to fail the confidence gate, got confidence %v", dec.Confidence)
	}
}

func TestScheduler_ResetClearsBlindWindow(t *testing.T) {
	s := NewScheduler(testSchedulerConfig())
	spot := SweetSpot{Center: 100, Start: 90, End: 110}

	s.NoteClick(epoch)
	s.Reset()

	dec := s.Decide(epoch.Add(time.Millisecond), 100, spot, NewEstimator(120), 120, 0, false)
	if dec.Kind != ClickDirect {
		t.Errorf("Expected reset to clear the blind window, got %v", dec.Kind)
	}
}
