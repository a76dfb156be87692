package vision

import "math"

// SmoothedZone is the persistent, exponentially smoothed zone estimate.
type SmoothedZone struct {
	X     float64
	Width float64
}

// Center returns the horizontal center of the zone.
func (z SmoothedZone) Center() float64 {
	return z.X + z.Width/2
}

// Smoother applies adaptive exponential smoothing to raw zone candidates to
// damp per-frame jitter while converging quickly on real jumps.
type Smoother struct {
	Alpha float64 // base smoothing factor; >=1 snaps, <=0.01 near-frozen

	zone SmoothedZone
	set  bool
}

// Zone returns the current smoothed zone and whether one is set.
func (s *Smoother) Zone() (SmoothedZone, bool) {
	return s.zone, s.set
}

// Reset clears the smoothed state. Called when the color lock is released.
func (s *Smoother) Reset() {
	s.zone = SmoothedZone{}
	s.set = false
}

// Update folds a raw candidate into the smoothed state. frameWidth scales the
// jump threshold that triggers the responsiveness boost. The first candidate
// after a reset snaps directly to the raw value.
func (s *Smoother) Update(rawX, rawW, frameWidth float64) SmoothedZone {
	if !s.set {
		s.zone = SmoothedZone{X: rawX, Width: rawW}
		s.set = true
		return s.zone
	}

	alpha := s.Alpha
	switch {
	case alpha >= 1.0:
		alpha = 1.0
	case alpha <= 0.01:
		// near-frozen: keep as configured
	default:
		// Boost responsiveness when the zone jumps more than 10% of the
		// frame width (e.g. the zone teleports).
		jump := frameWidth * 0.1
		if math.Abs(rawX-s.zone.X) > jump || math.Abs(rawW-s.zone.Width) > jump {
			alpha = math.Min(alpha+0.1, 1.0)
		}
	}

	s.zone.X = alpha*rawX + (1-alpha)*s.zone.X
	s.zone.Width = alpha*rawW + (1-alpha)*s.zone.Width
	return s.zone
}
