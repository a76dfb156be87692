package engine

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"digbot/pkg/autowalk"
	"digbot/pkg/motion"
	"digbot/pkg/vision"
)

// FrameInfo is the per-frame status record published alongside the preview.
type FrameInfo struct {
	LineDetected  bool
	TargetEngaged bool

	SweetSpotCenter float64
	HasSweetSpot    bool

	Velocity     float64 // px/s
	Acceleration float64 // px/s²

	ClickCount int
	DigCount   int
	SellCount  int
	Milestone  bool // dig count just hit a configured milestone

	LockedColorHex string // empty while unlocked
	Detection      vision.Info

	Status       string
	BenchmarkFPS int
}

// FrameResult carries the annotated preview frame, the detection mask and
// the status record. The receiver owns both Mats.
type FrameResult struct {
	Preview gocv.Mat
	Mask    gocv.Mat
	Info    FrameInfo
}

// Close releases the result's Mats.
func (r *FrameResult) Close() {
	r.Preview.Close()
	r.Mask.Close()
}

var (
	zoneColor = color.RGBA{G: 255, A: 255}
	spotColor = color.RGBA{R: 255, G: 255, A: 255}
	lineColor = color.RGBA{R: 255, A: 255}
)

// publish pushes an annotated copy of the frame into the single-slot results
// channel. When the consumer has not drained the previous result, this frame
// is skipped entirely; cloning would be wasted work.
func (e *Engine) publish(frame gocv.Mat, line vision.LineResult, zone vision.SmoothedZone, zoneSet bool, spot motion.SweetSpot, spotSet bool, zoneHeight int, velocity, acceleration float64, engaged bool, det vision.Info) {
	if len(e.results) > 0 {
		return
	}

	info := FrameInfo{
		LineDetected:  line.Detected(),
		TargetEngaged: engaged,
		Velocity:      velocity,
		Acceleration:  acceleration,
		ClickCount:    int(e.clicks.Load()),
		DigCount:      e.machine.DigCount(),
		SellCount:     e.machine.SellCount(),
		Detection:     det,
		Status:        e.status(),
		BenchmarkFPS:  e.benchFPS,
	}
	if spotSet {
		info.SweetSpotCenter = spot.Center
		info.HasSweetSpot = true
	}
	if lock := e.zoneDet.Lock(); lock != nil {
		info.LockedColorHex = lock.Hex
	}
	if n := e.cfg.MilestoneInterval; n > 0 && info.DigCount > 0 && info.DigCount%n == 0 {
		info.Milestone = true
	}

	preview := frame.Clone()
	if zoneSet {
		gocv.Rectangle(&preview, image.Rect(int(zone.X), 0, int(zone.X+zone.Width), zoneHeight), zoneColor, 2)
	}
	if spotSet {
		gocv.Rectangle(&preview, image.Rect(int(spot.Start), 0, int(spot.End), zoneHeight), spotColor, 1)
	}
	if line.Detected() {
		gocv.Line(&preview, image.Pt(line.Pos, 0), image.Pt(line.Pos, preview.Rows()), lineColor, 1)
	}

	result := FrameResult{
		Preview: preview,
		Mask:    e.buffers.Mask.Clone(),
		Info:    info,
	}
	select {
	case e.results <- result:
	default:
		result.Close()
	}
}

// status returns the one-word state shown in the info record.
func (e *Engine) status() string {
	switch {
	case !e.running.Load():
		return "stopped"
	case e.selling.Load():
		return "selling"
	case e.cfg.AutoWalkEnabled:
		return e.machine.State().String()
	default:
		return "running"
	}
}

var _ autowalk.Actions = (*Engine)(nil)
