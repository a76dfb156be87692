package vision

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"gocv.io/x/gocv"

	"digbot/internal/log"
)

// ZoneConfig holds the zone detection tunables.
type ZoneConfig struct {
	SaturationThreshold float64

	UseOtsu            bool
	OtsuAdaptiveArea   bool
	OtsuMinArea        int
	OtsuMaxArea        int // 0 = unlimited
	OtsuAreaPercentile float64
	OtsuMorphKernel    int

	UseColorPicker bool
	PickedColorHex string
	ColorTolerance int

	ExclusionRadius  int     // band around the line painted out of the mask
	MinWidth         int     // contour acceptance: minimum width (px)
	MaxWidthPercent  float64 // contour acceptance: max width as % of frame width
	MinHeightPercent float64 // contour acceptance: min height as % of region height
}

// ColorLock is the persistent commitment to a discovered zone color.
type ColorLock struct {
	Color  HSV
	LowSat bool
	Hex    string
}

// Candidate is the raw zone found this frame.
type Candidate struct {
	X     int
	Width int
}

// Info describes the detection strategy used for a frame, for display.
type Info struct {
	Method string
	Params map[string]string
}

// Result is the outcome of one zone-detection pass.
type Result struct {
	Candidate *Candidate
	Info      Info
	Released  bool // true when the color lock timed out this frame
}

// ZoneDetector finds the colored target zone. While unlocked it runs one of
// the configured strategies per frame; once a qualifying contour is found it
// locks onto the contour's mean color and re-acquires by HSV range matching
// until the lock times out.
type ZoneDetector struct {
	cfg ZoneConfig

	lock       *ColorLock
	missStreak int

	// cached in-range bounds, rebuilt when the lock changes
	boundsFor  *ColorLock
	lowerBound gocv.Scalar
	upperBound gocv.Scalar

	// cached picked-color parse
	pickedHSV   *HSV
	pickedFor   string
	warnedColor bool

	// cached morphology kernels
	closeKernel   gocv.Mat // wide 5x15 close applied before contour extraction
	ellipseKernel gocv.Mat
	ellipseSize   int
	otsuKernel    gocv.Mat
	otsuSize      int
}

// NewZoneDetector creates a detector with the given tunables. The sized
// kernels start as valid empty Mats and are built on first use.
func NewZoneDetector(cfg ZoneConfig) *ZoneDetector {
	return &ZoneDetector{
		cfg:           cfg,
		closeKernel:   gocv.GetStructuringElement(gocv.MorphRect, image.Pt(15, 5)),
		ellipseKernel: gocv.NewMat(),
		otsuKernel:    gocv.NewMat(),
	}
}

// Close releases the cached kernels.
func (d *ZoneDetector) Close() {
	d.closeKernel.Close()
	d.ellipseKernel.Close()
	d.otsuKernel.Close()
}

// Lock returns the active color lock, or nil when unlocked.
func (d *ZoneDetector) Lock() *ColorLock {
	return d.lock
}

// TimeoutFrames returns how many consecutive misses release the lock at the
// given frame rate.
func TimeoutFrames(fps int) int {
	k := int(math.Round(float64(fps) * 0.167))
	if k < 5 {
		k = 5
	}
	return k
}

// Detect runs one zone-detection pass over the HSV region. linePos is the
// current marker column (NoLine if absent); fps scales the lock timeout.
// The mask Mat is overwritten and doubles as the published debug mask.
func (d *ZoneDetector) Detect(hsv gocv.Mat, linePos, fps int, mask *gocv.Mat) Result {
	width := hsv.Cols()
	regionHeight := hsv.Rows()

	var info Info
	if d.lock != nil {
		info = d.trackLocked(hsv, mask)
	} else {
		info = d.detectUnlocked(hsv, mask)
	}

	d.excludeLine(mask, linePos, width, regionHeight)

	// Bridge the gap the marker line cuts through the zone.
	gocv.MorphologyExWithParams(*mask, mask, gocv.MorphClose, d.closeKernel, 2, gocv.BorderConstant)

	cand := d.selectContour(*mask, hsv, width, regionHeight)
	if cand != nil {
		d.missStreak = 0
		return Result{Candidate: cand, Info: info}
	}

	d.missStreak++
	if d.lock != nil && d.missStreak >= TimeoutFrames(fps) {
		log.Debug("color lock released", "misses", d.missStreak, "color", d.lock.Hex)
		d.lock = nil
		d.missStreak = 0
		return Result{Info: info, Released: true}
	}
	return Result{Info: info}
}

// trackLocked re-acquires the zone by in-range matching against the locked
// color. Bounds are recomputed only when the lock changes.
func (d *ZoneDetector) trackLocked(hsv gocv.Mat, mask *gocv.Mat) Info {
	if d.boundsFor != d.lock {
		lower, upper := LockBounds(d.lock.Color, d.lock.LowSat)
		d.lowerBound = gocv.NewScalar(lower.H, lower.S, lower.V, 0)
		d.upperBound = gocv.NewScalar(upper.H, upper.S, upper.V, 0)
		d.boundsFor = d.lock
	}
	gocv.InRangeWithScalar(hsv, d.lowerBound, d.upperBound, mask)

	return Info{
		Method: "Color Lock",
		Params: map[string]string{
			"color":   d.lock.Hex,
			"low_sat": fmt.Sprintf("%v", d.lock.LowSat),
		},
	}
}

// detectUnlocked runs exactly one discovery strategy.
func (d *ZoneDetector) detectUnlocked(hsv gocv.Mat, mask *gocv.Mat) Info {
	switch {
	case d.cfg.UseColorPicker:
		if target, ok := d.pickedColor(); ok {
			return d.maskColorPicker(hsv, target, mask)
		}
		info := d.maskSaturation(hsv, mask)
		info.Method = "Saturation (Fallback)"
		return info
	case d.cfg.UseOtsu && d.cfg.OtsuAdaptiveArea:
		return d.maskOtsuAdaptive(hsv, mask)
	case d.cfg.UseOtsu:
		return d.maskOtsuFixed(hsv, mask)
	default:
		return d.maskSaturation(hsv, mask)
	}
}

// pickedColor parses the configured target color once, logging a warning the
// first time an invalid value forces the saturation fallback.
func (d *ZoneDetector) pickedColor() (HSV, bool) {
	if d.pickedFor == d.cfg.PickedColorHex && d.pickedHSV != nil {
		return *d.pickedHSV, true
	}
	c, err := ParseHexColor(d.cfg.PickedColorHex)
	if err != nil {
		if !d.warnedColor {
			log.Warn("color picker disabled, falling back to saturation", "error", err)
			d.warnedColor = true
		}
		return HSV{}, false
	}
	d.pickedHSV = &c
	d.pickedFor = d.cfg.PickedColorHex
	d.warnedColor = false
	return c, true
}

func (d *ZoneDetector) maskSaturation(hsv gocv.Mat, mask *gocv.Mat) Info {
	sat := gocv.NewMat()
	defer sat.Close()
	gocv.ExtractChannel(hsv, &sat, 1)
	gocv.Threshold(sat, mask, float32(d.cfg.SaturationThreshold), 255, gocv.ThresholdBinary)

	return Info{
		Method: "Saturation Threshold",
		Params: map[string]string{"threshold": fmt.Sprintf("%.0f", d.cfg.SaturationThreshold)},
	}
}

func (d *ZoneDetector) maskColorPicker(hsv gocv.Mat, target HSV, mask *gocv.Mat) Info {
	tol := float64(d.cfg.ColorTolerance)
	lower := gocv.NewScalar(clampf(target.H-tol/2, 0, 179), clampf(target.S-tol*2, 0, 255), clampf(target.V-tol*2, 0, 255), 0)
	upper := gocv.NewScalar(clampf(target.H+tol/2, 0, 179), clampf(target.S+tol*2, 0, 255), clampf(target.V+tol*2, 0, 255), 0)
	gocv.InRangeWithScalar(hsv, lower, upper, mask)

	return Info{
		Method: "Color Picker",
		Params: map[string]string{
			"target_color": target.Hex(),
			"target_hsv":   fmt.Sprintf("H:%.0f S:%.0f V:%.0f", target.H, target.S, target.V),
			"tolerance":    fmt.Sprintf("%d", d.cfg.ColorTolerance),
		},
	}
}

// maskOtsuFixed thresholds the saturation channel with Otsu's method and
// keeps only contours within the fixed area bounds.
func (d *ZoneDetector) maskOtsuFixed(hsv gocv.Mat, mask *gocv.Mat) Info {
	thresh := d.otsuThreshold(hsv, mask)
	maxArea := math.Inf(1)
	if d.cfg.OtsuMaxArea > 0 {
		maxArea = float64(d.cfg.OtsuMaxArea)
	}
	d.filterByArea(mask, float64(d.cfg.OtsuMinArea), maxArea)
	d.otsuMorph(mask)

	maxLabel := "unlimited"
	if d.cfg.OtsuMaxArea > 0 {
		maxLabel = fmt.Sprintf("%d", d.cfg.OtsuMaxArea)
	}
	return Info{
		Method: "Otsu (Fixed Area)",
		Params: map[string]string{
			"threshold":    fmt.Sprintf("%.0f", thresh),
			"min_area":     fmt.Sprintf("%d", d.cfg.OtsuMinArea),
			"max_area":     maxLabel,
			"morph_kernel": fmt.Sprintf("%d", d.cfg.OtsuMorphKernel),
		},
	}
}

// maskOtsuAdaptive derives the minimum contour area from a percentile of the
// observed contour areas instead of a fixed bound.
func (d *ZoneDetector) maskOtsuAdaptive(hsv gocv.Mat, mask *gocv.Mat) Info {
	thresh := d.otsuThreshold(hsv, mask)

	contours := gocv.FindContours(*mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	areas := make([]float64, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		areas = append(areas, gocv.ContourArea(contours.At(i)))
	}
	contours.Close()

	minArea := percentile(areas, d.cfg.OtsuAreaPercentile)
	d.filterByArea(mask, minArea, math.Inf(1))
	d.otsuMorph(mask)

	return Info{
		Method: "Otsu (Adaptive)",
		Params: map[string]string{
			"threshold":       fmt.Sprintf("%.0f", thresh),
			"area_percentile": fmt.Sprintf("%.0f", d.cfg.OtsuAreaPercentile),
			"min_area":        fmt.Sprintf("%.0f", minArea),
			"morph_kernel":    fmt.Sprintf("%d", d.cfg.OtsuMorphKernel),
		},
	}
}

func (d *ZoneDetector) otsuThreshold(hsv gocv.Mat, mask *gocv.Mat) float32 {
	sat := gocv.NewMat()
	defer sat.Close()
	gocv.ExtractChannel(hsv, &sat, 1)
	return gocv.Threshold(sat, mask, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
}

// filterByArea redraws the mask keeping only contours whose area falls in
// [minArea, maxArea].
func (d *ZoneDetector) filterByArea(mask *gocv.Mat, minArea, maxArea float64) {
	contours := gocv.FindContours(*mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	mask.SetTo(gocv.NewScalar(0, 0, 0, 0))
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area >= minArea && area <= maxArea {
			gocv.DrawContours(mask, contours, i, white, -1)
		}
	}
}

func (d *ZoneDetector) otsuMorph(mask *gocv.Mat) {
	size := d.cfg.OtsuMorphKernel
	if size < 1 {
		size = 1
	}
	if d.otsuSize != size {
		d.otsuKernel.Close()
		d.otsuKernel = gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(size, size))
		d.otsuSize = size
	}
	gocv.MorphologyExWithParams(*mask, mask, gocv.MorphClose, d.otsuKernel, 1, gocv.BorderConstant)
	gocv.MorphologyExWithParams(*mask, mask, gocv.MorphOpen, d.otsuKernel, 1, gocv.BorderConstant)
}

// excludeLine paints a band around the marker line out of the mask so the
// line itself is never mistaken for the zone. Non-Otsu unlocked strategies
// get an extra ellipse close/open pass whether or not a line was found.
func (d *ZoneDetector) excludeLine(mask *gocv.Mat, linePos, width, regionHeight int) {
	radius := d.cfg.ExclusionRadius
	if radius <= 0 {
		return
	}

	if linePos != NoLine {
		x0 := linePos - radius
		if x0 < 0 {
			x0 = 0
		}
		x1 := linePos + radius
		if x1 > width {
			x1 = width
		}
		gocv.Rectangle(mask, image.Rect(x0, 0, x1, regionHeight), color.RGBA{}, -1)
	}

	if d.cfg.UseOtsu || d.lock != nil {
		return
	}
	size := int(float64(minInt(width, regionHeight)) * 0.008)
	if size < 3 {
		size = 3
	}
	if d.ellipseSize != size {
		d.ellipseKernel.Close()
		d.ellipseKernel = gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(size, size))
		d.ellipseSize = size
	}
	gocv.MorphologyExWithParams(*mask, mask, gocv.MorphClose, d.ellipseKernel, 2, gocv.BorderConstant)
	gocv.MorphologyExWithParams(*mask, mask, gocv.MorphOpen, d.ellipseKernel, 1, gocv.BorderConstant)
}

// selectContour picks the largest external contour and accepts it only when
// its shape passes the width/height gates. A first acceptance while unlocked
// acquires the color lock from the contour's mean HSV.
func (d *ZoneDetector) selectContour(mask, hsv gocv.Mat, width, regionHeight int) *Candidate {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	bestIdx := -1
	bestArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > bestArea {
			bestArea = area
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return nil
	}

	rect := gocv.BoundingRect(contours.At(bestIdx))
	maxWidth := float64(width) * d.cfg.MaxWidthPercent / 100.0
	minHeight := float64(regionHeight) * d.cfg.MinHeightPercent / 100.0

	if rect.Dx() <= d.cfg.MinWidth || float64(rect.Dx()) >= maxWidth || float64(rect.Dy()) < minHeight {
		return nil
	}

	if d.lock == nil {
		d.acquireLock(hsv, contours, bestIdx)
	}
	return &Candidate{X: rect.Min.X, Width: rect.Dx()}
}

// acquireLock computes the mean HSV over the accepted contour and commits to
// it for range-based tracking.
func (d *ZoneDetector) acquireLock(hsv gocv.Mat, contours gocv.PointsVector, idx int) {
	contourMask := gocv.Zeros(hsv.Rows(), hsv.Cols(), gocv.MatTypeCV8U)
	defer contourMask.Close()
	gocv.DrawContours(&contourMask, contours, idx, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	mean := hsv.MeanWithMask(contourMask)
	locked := HSV{H: mean.Val1, S: mean.Val2, V: mean.Val3}
	d.lock = &ColorLock{
		Color:  locked,
		LowSat: locked.IsLowSaturation(),
		Hex:    locked.Hex(),
	}
	log.Debug("color lock acquired", "color", d.lock.Hex, "low_sat", d.lock.LowSat)
}

// percentile returns the p-th percentile of values (nearest-rank on the
// sorted slice). Zero when empty.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(math.Round(p / 100.0 * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
