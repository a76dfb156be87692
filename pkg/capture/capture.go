// Package capture provides the screen-region frame source and the
// end-to-end latency probe.
package capture

import (
	"fmt"
	"image"
	"time"

	"github.com/kbinani/screenshot"
	"gocv.io/x/gocv"
)

// Region is the rectangular screen area the pipeline watches.
type Region struct {
	X, Y          int
	Width, Height int
}

// Rect returns the region as an image.Rectangle in screen coordinates.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Valid reports whether the region has positive area.
func (r Region) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Source delivers frames for a screen region. Implementations must return a
// BGR Mat the caller owns (and closes).
type Source interface {
	Capture(r Region) (gocv.Mat, time.Time, error)
}

// Screen captures frames with the kbinani/screenshot backend.
type Screen struct{}

// NewScreen returns the live screen source.
func NewScreen() *Screen {
	return &Screen{}
}

// Capture grabs the region and converts it to a BGR Mat.
func (s *Screen) Capture(r Region) (gocv.Mat, time.Time, error) {
	img, err := screenshot.CaptureRect(r.Rect())
	ts := time.Now()
	if err != nil {
		return gocv.NewMat(), ts, fmt.Errorf("capture region %v: %w", r.Rect(), err)
	}

	rgba, err := gocv.ImageToMatRGBA(img)
	if err != nil {
		return gocv.NewMat(), ts, fmt.Errorf("convert capture: %w", err)
	}
	defer rgba.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(rgba, &bgr, gocv.ColorRGBAToBGR)
	return bgr, ts, nil
}
