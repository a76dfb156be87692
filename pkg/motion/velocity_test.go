package motion

import (
	"math"
	"testing"
	"time"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// feed adds positions at a fixed sample interval and returns the estimator.
func feed(e *Estimator, interval time.Duration, positions ...int) {
	t := epoch
	for _, pos := range positions {
		e.Add(pos, t)
		t = t.Add(interval)
	}
}

func TestEstimator_Velocity(t *testing.T) {
	e := NewEstimator(120)
	feed(e, 33*time.Millisecond, 100, 150, 140)

	// Last two samples: -10 px over 33 ms.
	vel := e.Velocity()
	want := -10.0 / 0.033
	if math.Abs(vel-want) > 1 {
		t.Errorf("Expected velocity near %.0f px/s, got %.0f", want, vel)
	}
}

func TestEstimator_VelocityNeedsTwoValidSamples(t *testing.T) {
	e := NewEstimator(120)
	if v := e.Velocity(); v != 0 {
		t.Errorf("Expected zero velocity with no samples, got %v", v)
	}

	feed(e, 10*time.Millisecond, 100, NoPosition, NoPosition)
	if v := e.Velocity(); v != 0 {
		t.Errorf("Expected zero velocity with one valid sample, got %v", v)
	}
}

func TestEstimator_SentinelsSkipped(t *testing.T) {
	e := NewEstimator(120)
	// The undetected frame between the two valid ones stretches the interval.
	feed(e, 10*time.Millisecond, 100, NoPosition, 120)

	vel := e.Velocity()
	want := 20.0 / 0.020
	if math.Abs(vel-want) > 1 {
		t.Errorf("Expected velocity near %.0f px/s, got %.0f", want, vel)
	}
}

func TestEstimator_Acceleration(t *testing.T) {
	e := NewEstimator(120)
	// Speeding up: 10 px, then 30 px per 10 ms step.
	feed(e, 10*time.Millisecond, 100, 110, 140)

	acc := e.Acceleration()
	if acc <= 0 {
		t.Errorf("Expected positive acceleration while speeding up, got %v", acc)
	}

	e.Reset()
	feed(e, 10*time.Millisecond, 100, 130, 140)
	if acc := e.Acceleration(); acc >= 0 {
		t.Errorf("Expected negative acceleration while slowing down, got %v", acc)
	}
}

func TestEstimator_PredictTowardTarget(t *testing.T) {
	e := NewEstimator(120)
	// Steady 1000 px/s to the right.
	feed(e, 10*time.Millisecond, 0, 10, 20, 30, 40, 50)

	pred := e.Predict(50, 150)
	if pred.TimeToArrival <= 0 {
		t.Fatal("Expected a valid arrival time toward the target")
	}
	if math.Abs(pred.TimeToArrival-0.1) > 0.01 {
		t.Errorf("Expected arrival in ~0.1s, got %v", pred.TimeToArrival)
	}
	if math.Abs(pred.Position-150) > 5 {
		t.Errorf("Expected predicted position near 150, got %v", pred.Position)
	}
}

func TestEstimator_PredictMovingAwayIsInvalid(t *testing.T) {
	e := NewEstimator(120)
	// Moving left while the target is to the right.
	feed(e, 10*time.Millisecond, 100, 90, 80)

	pred := e.Predict(80, 150)
	if pred.TimeToArrival > 0 {
		t.Errorf("Expected an invalid prediction when moving away, got tta %v", pred.TimeToArrival)
	}
}

func TestEstimator_StabilitySteadyVsNoisy(t *testing.T) {
	steady := NewEstimator(120)
	feed(steady, 10*time.Millisecond, 0, 10, 20, 30, 40, 50)

	noisy := NewEstimator(120)
	feed(noisy, 10*time.Millisecond, 0, 40, 10, 60, 5, 70)

	s := steady.Stability()
	n := noisy.Stability()
	if s < 0.95 {
		t.Errorf("Expected near-perfect stability for steady motion, got %v", s)
	}
	if n >= s {
		t.Errorf("Expected noisy motion to score below steady (%v), got %v", s, n)
	}
}

func TestEstimator_StabilityDefaultWithSparseData(t *testing.T) {
	e := NewEstimator(120)
	feed(e, 10*time.Millisecond, 100, 110)
	if s := e.Stability(); s != 0.5 {
		t.Errorf("Expected the 0.5 default with sparse data, got %v", s)
	}
}

func TestEstimator_WindowBounded(t *testing.T) {
	e := NewEstimator(120) // capacity 30
	for i := 0; i < 100; i++ {
		e.Add(i, epoch.Add(time.Duration(i)*10*time.Millisecond))
	}
	if n := len(e.history); n != 30 {
		t.Errorf("Expected history capped at 30 samples, got %d", n)
	}
}

func TestThresholdForFPS(t *testing.T) {
	if got := ThresholdForFPS(0.6, 120); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("Expected the base threshold at 120 fps, got %v", got)
	}
	if lo := ThresholdForFPS(0.6, 60); lo >= 0.6 {
		t.Errorf("Expected a lower threshold at 60 fps, got %v", lo)
	}
	if hi := ThresholdForFPS(0.6, 240); hi <= 0.6 {
		t.Errorf("Expected a higher threshold at 240 fps, got %v", hi)
	}
}
