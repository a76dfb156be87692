package capture

import (
	"sort"
	"time"

	"gocv.io/x/gocv"

	"digbot/internal/log"
)

const (
	latencyIterations = 15
	latencyWarmups    = 3

	// Half a 60 Hz frame: the average wait before a change reaches the
	// display. High-refresh panels only lower this, so it is a safe bound.
	displayLatencyMs = 8.33

	// Thread switching and OS scheduling.
	schedulingOverheadMs = 2.0
)

// LatencyProbe measures end-to-end system latency: capture time, processing
// time and input-dispatch time, plus fixed display and scheduling costs.
type LatencyProbe struct {
	Source Source
	Region Region
	Click  func() // input-dispatch probe; nil skips the click component
}

// Measure runs the probe and returns the latency clamped to [3,100] ms.
func (p LatencyProbe) Measure() time.Duration {
	region := p.Region
	// A small slice of the region is enough and keeps the probe fast.
	if region.Width > 200 {
		region.Width = 200
	}
	if region.Height > 100 {
		region.Height = 100
	}

	for i := 0; i < latencyWarmups; i++ {
		if m, _, err := p.Source.Capture(region); err == nil {
			m.Close()
		}
		time.Sleep(time.Millisecond)
	}

	var captureMs, processMs, clickMs []float64

	gray := gocv.NewMat()
	mask := gocv.NewMat()
	defer gray.Close()
	defer mask.Close()

	for i := 0; i < latencyIterations; i++ {
		start := time.Now()
		frame, _, err := p.Source.Capture(region)
		if err != nil {
			continue
		}
		captureMs = append(captureMs, msSince(start))

		start = time.Now()
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
		gocv.Threshold(gray, &mask, 128, 255, gocv.ThresholdBinary)
		processMs = append(processMs, msSince(start))

		frame.Close()
		time.Sleep(2 * time.Millisecond)
	}

	if p.Click != nil {
		for i := 0; i < latencyIterations; i++ {
			start := time.Now()
			p.Click()
			clickMs = append(clickMs, msSince(start))
			time.Sleep(5 * time.Millisecond)
		}
	}

	base := trimmedMean(captureMs) + trimmedMean(processMs) + trimmedMean(clickMs)
	total := base + displayLatencyMs + schedulingOverheadMs
	total *= 1.05 // safety margin

	result := time.Duration(total * float64(time.Millisecond))
	if result < 3*time.Millisecond {
		result = 3 * time.Millisecond
	}
	if result > 100*time.Millisecond {
		result = 100 * time.Millisecond
	}

	log.Debug("latency measured",
		"capture_ms", trimmedMean(captureMs),
		"process_ms", trimmedMean(processMs),
		"click_ms", trimmedMean(clickMs),
		"total", result)
	return result
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Millisecond)
}

// trimmedMean averages after dropping the top and bottom tail, so a single
// stalled capture does not skew the estimate.
func trimmedMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	trim := 0
	switch {
	case len(sorted) >= 10:
		trim = len(sorted) / 10
		if trim < 1 {
			trim = 1
		}
	case len(sorted) >= 5:
		trim = 1
	}
	sorted = sorted[trim : len(sorted)-trim]

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	return sum / float64(len(sorted))
}
