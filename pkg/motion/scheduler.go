package motion

import "time"

// ClickKind tags how a click decision was reached.
type ClickKind int

const (
	ClickNone ClickKind = iota
	ClickDirect
	ClickPredictive
)

func (k ClickKind) String() string {
	switch k {
	case ClickDirect:
		return "direct"
	case ClickPredictive:
		return "predictive"
	default:
		return "none"
	}
}

// Decision is the per-frame click verdict.
type Decision struct {
	Kind       ClickKind
	Delay      time.Duration // predictive only: wait before dispatch
	Confidence float64
	Prediction Prediction // populated for predictive clicks
}

// SchedulerConfig holds the click-decision tunables.
type SchedulerConfig struct {
	PredictionEnabled   bool
	ConfidenceThreshold float64       // base value, fps-scaled per decision
	PostClickBlindness  time.Duration // no decisions for this long after a click
}

// Scheduler decides, each frame, whether to click now, click after a
// predictive delay, or hold. It owns the post-click blind window; the click
// exclusivity token lives with the dispatcher.
type Scheduler struct {
	cfg        SchedulerConfig
	blindUntil time.Time
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	return &Scheduler{cfg: cfg}
}

// Blind reports whether click decisions are suppressed at the given instant.
func (s *Scheduler) Blind(now time.Time) bool {
	return now.Before(s.blindUntil)
}

// NoteClick starts the post-click blind window. Call on every dispatched
// click, direct or predictive.
func (s *Scheduler) NoteClick(now time.Time) {
	s.blindUntil = now.Add(s.cfg.PostClickBlindness)
}

// Reset clears the blind window (for a fresh run).
func (s *Scheduler) Reset() {
	s.blindUntil = time.Time{}
}

// Decide evaluates one frame. tokenHeld must reflect the click exclusivity
// token: while a click is in flight no new decision is made. latency is the
// measured end-to-end system latency used to pull predictive clicks earlier.
func (s *Scheduler) Decide(now time.Time, linePos int, spot SweetSpot, est *Estimator, fps int, latency time.Duration, tokenHeld bool) Decision {
	if tokenHeld || s.Blind(now) {
		return Decision{}
	}

	// Direct hit wins outright.
	if linePos != NoPosition && spot.Contains(linePos) {
		return Decision{Kind: ClickDirect, Confidence: 1.0}
	}

	if !s.cfg.PredictionEnabled || linePos == NoPosition {
		return Decision{}
	}

	pred := est.Predict(linePos, spot.Center)
	if pred.TimeToArrival <= 0 {
		return Decision{}
	}

	radius := spot.HalfWidth()
	if radius <= 0 {
		return Decision{}
	}
	dist := pred.Position - spot.Center
	if dist < 0 {
		dist = -dist
	}
	if dist > radius {
		return Decision{}
	}

	base := 1.0 - dist/radius
	confidence := base * est.Stability()
	if confidence < ThresholdForFPS(s.cfg.ConfidenceThreshold, fps) {
		return Decision{}
	}

	// Compensate measured latency, scaled down at high frame rates where the
	// pipeline itself adds less delay.
	adjust := latency.Seconds() * (120.0 / float64(fps)) * 0.8
	delay := pred.TimeToArrival - adjust
	if delay <= 0 {
		return Decision{}
	}

	return Decision{
		Kind:       ClickPredictive,
		Delay:      time.Duration(delay * float64(time.Second)),
		Confidence: confidence,
		Prediction: pred,
	}
}
