package motion

import "math"

// SweetSpot is the clickable band inside the zone.
type SweetSpot struct {
	Center float64
	Start  float64
	End    float64
}

// HalfWidth returns half the band width.
func (s SweetSpot) HalfWidth() float64 {
	return (s.End - s.Start) / 2
}

// Contains reports whether a line position sits inside the band.
func (s SweetSpot) Contains(pos int) bool {
	p := float64(pos)
	return p >= s.Start && p <= s.End
}

// SpotConfig holds the sweet-spot width tunables.
type SpotConfig struct {
	BaseWidthPercent float64 // band width as % of zone width
	VelocityEnabled  bool    // widen the band as the line speeds up
	VelocityFactor   float64 // widening per 1000 px/s of speed
	MaxFactor        float64 // cap on the total widening factor
}

// ComputeSweetSpot derives the clickable band from the smoothed zone and the
// current line velocity. Faster motion widens the tolerance, bounded by
// MaxFactor.
func ComputeSweetSpot(zoneCenter, zoneWidth, velocity float64, cfg SpotConfig) SweetSpot {
	widthPercent := cfg.BaseWidthPercent
	if cfg.VelocityEnabled {
		factor := 1.0 + math.Abs(velocity)/1000.0*cfg.VelocityFactor
		if factor > cfg.MaxFactor {
			factor = cfg.MaxFactor
		}
		widthPercent *= factor
	}

	width := zoneWidth * widthPercent / 100.0
	return SweetSpot{
		Center: zoneCenter,
		Start:  zoneCenter - width/2,
		End:    zoneCenter + width/2,
	}
}
