// Package motion estimates marker-line motion and turns it into click
// decisions: velocity/acceleration from a bounded position history,
// latency-compensated arrival prediction, and the sweet-spot math.
package motion

import (
	"math"
	"time"
)

// NoPosition mirrors the line detector's sentinel for an undetected marker.
const NoPosition = -1

type sample struct {
	pos int
	t   float64 // seconds since the estimator's epoch
}

// Estimator maintains a sliding window of line positions and derives
// velocity, acceleration and arrival predictions from it. Sentinel positions
// are stored (they keep the window's timeline honest) but excluded from all
// finite-difference math.
type Estimator struct {
	history  []sample
	capacity int

	epoch    time.Time
	hasEpoch bool
}

// NewEstimator sizes the history window for the given target frame rate.
func NewEstimator(fps int) *Estimator {
	e := &Estimator{}
	e.SetFPS(fps)
	return e
}

// SetFPS rescales the history capacity. Roughly a quarter second of frames,
// never fewer than 20 samples.
func (e *Estimator) SetFPS(fps int) {
	capacity := fps / 4
	if capacity < 20 {
		capacity = 20
	}
	e.capacity = capacity
	if len(e.history) > capacity {
		e.history = e.history[len(e.history)-capacity:]
	}
}

// Reset drops all history.
func (e *Estimator) Reset() {
	e.history = e.history[:0]
	e.hasEpoch = false
}

// Add appends a position sample and returns the updated velocity in px/s.
func (e *Estimator) Add(pos int, t time.Time) float64 {
	if !e.hasEpoch {
		e.epoch = t
		e.hasEpoch = true
	}
	e.history = append(e.history, sample{pos: pos, t: t.Sub(e.epoch).Seconds()})
	if len(e.history) > e.capacity {
		e.history = e.history[1:]
	}
	return e.Velocity()
}

// valid returns the non-sentinel samples, oldest first.
func (e *Estimator) valid() []sample {
	out := make([]sample, 0, len(e.history))
	for _, s := range e.history {
		if s.pos != NoPosition {
			out = append(out, s)
		}
	}
	return out
}

// Velocity is the finite difference between the two most recent valid
// samples, px/s. Zero when fewer than two valid samples exist.
func (e *Estimator) Velocity() float64 {
	v := e.valid()
	n := len(v)
	if n < 2 {
		return 0
	}
	dt := v[n-1].t - v[n-2].t
	if dt <= 0 {
		return 0
	}
	return float64(v[n-1].pos-v[n-2].pos) / dt
}

// Acceleration is the derivative of the velocity series over the three most
// recent valid samples, px/s².
func (e *Estimator) Acceleration() float64 {
	v := e.valid()
	n := len(v)
	if n < 3 {
		return 0
	}
	dt1 := v[n-2].t - v[n-3].t
	dt2 := v[n-1].t - v[n-2].t
	if dt1 <= 0 || dt2 <= 0 {
		return 0
	}
	v1 := float64(v[n-2].pos-v[n-3].pos) / dt1
	v2 := float64(v[n-1].pos-v[n-2].pos) / dt2
	span := (v[n-1].t - v[n-3].t) / 2
	if span <= 0 {
		return 0
	}
	return (v2 - v1) / span
}

// Prediction is the estimated future crossing of the target center.
// Only meaningful when TimeToArrival > 0.
type Prediction struct {
	Position      float64 // predicted line position at arrival time
	TimeToArrival float64 // seconds until the crossing
}

// Predict extrapolates the current velocity from pos toward targetCenter.
// When the velocity does not point toward the target the prediction is
// invalid and TimeToArrival is 0.
func (e *Estimator) Predict(pos int, targetCenter float64) Prediction {
	vel := e.Velocity()
	if vel == 0 {
		return Prediction{Position: float64(pos)}
	}

	delta := targetCenter - float64(pos)
	tta := delta / vel
	if tta <= 0 {
		// moving away from the target
		return Prediction{Position: float64(pos)}
	}

	// Second-order term sharpens the landing estimate; the crossing time
	// itself stays first-order so a decelerating line yields a conservative
	// (early) position error rather than a late click.
	acc := e.Acceleration()
	predicted := float64(pos) + vel*tta + 0.5*acc*tta*tta

	return Prediction{Position: predicted, TimeToArrival: tta}
}

// Stability scores how consistent the recent velocity series is, in [0,1].
// A steady sweep scores near 1; direction flips and noisy spacing drag it
// toward 0.
func (e *Estimator) Stability() float64 {
	v := e.valid()
	n := len(v)
	if n < 3 {
		return 0.5 // not enough data to judge either way
	}

	// velocities over up to the last 5 intervals
	start := n - 6
	if start < 0 {
		start = 0
	}
	var vels []float64
	for i := start + 1; i < n; i++ {
		dt := v[i].t - v[i-1].t
		if dt > 0 {
			vels = append(vels, float64(v[i].pos-v[i-1].pos)/dt)
		}
	}
	if len(vels) < 2 {
		return 0.5
	}

	mean := 0.0
	for _, x := range vels {
		mean += x
	}
	mean /= float64(len(vels))
	if mean == 0 {
		return 0
	}

	variance := 0.0
	for _, x := range vels {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(vels))

	spread := math.Sqrt(variance) / math.Abs(mean)
	score := 1.0 - spread
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// ThresholdForFPS scales the base confidence threshold so acceptance rates
// stay comparable across frame rates.
func ThresholdForFPS(base float64, fps int) float64 {
	return base * math.Pow(float64(fps)/120.0, 0.15)
}
