package vision

import (
	"fmt"
	"math"
	"strings"
)

// HSV is a color in OpenCV's 8-bit HSV space: H in [0,179], S and V in
// [0,255].
type HSV struct {
	H, S, V float64
}

// lowSatCutoff marks near-gray colors. Hue is unstable below this saturation,
// so locked tracking needs wider tolerances.
const lowSatCutoff = 25

// IsLowSaturation reports whether the color needs the widened low-saturation
// matching ranges.
func (c HSV) IsLowSaturation() bool {
	return c.S < lowSatCutoff
}

// Hex returns the "#rrggbb" display form of the color.
func (c HSV) Hex() string {
	r, g, b := c.RGB()
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// RGB converts to 8-bit RGB.
func (c HSV) RGB() (r, g, b uint8) {
	h := c.H * 2.0 // OpenCV hue is in 2-degree units
	s := c.S / 255.0
	v := c.V / 255.0

	chroma := v * s
	hp := h / 60.0
	x := chroma * (1 - math.Abs(math.Mod(hp, 2)-1))

	var rf, gf, bf float64
	switch {
	case hp < 1:
		rf, gf, bf = chroma, x, 0
	case hp < 2:
		rf, gf, bf = x, chroma, 0
	case hp < 3:
		rf, gf, bf = 0, chroma, x
	case hp < 4:
		rf, gf, bf = 0, x, chroma
	case hp < 5:
		rf, gf, bf = x, 0, chroma
	default:
		rf, gf, bf = chroma, 0, x
	}

	m := v - chroma
	return uint8(math.Round((rf + m) * 255)), uint8(math.Round((gf + m) * 255)), uint8(math.Round((bf + m) * 255))
}

// ParseHexColor parses "#rrggbb" (leading '#' optional) into HSV.
func ParseHexColor(s string) (HSV, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return HSV{}, fmt.Errorf("invalid hex color %q: want 6 hex digits", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return HSV{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return RGBToHSV(r, g, b), nil
}

// RGBToHSV converts 8-bit RGB to OpenCV HSV.
func RGBToHSV(r, g, b uint8) HSV {
	rf := float64(r) / 255.0
	gf := float64(g) / 255.0
	bf := float64(b) / 255.0

	maxC := math.Max(rf, math.Max(gf, bf))
	minC := math.Min(rf, math.Min(gf, bf))
	delta := maxC - minC

	var h float64
	switch {
	case delta == 0:
		h = 0
	case maxC == rf:
		h = 60 * math.Mod((gf-bf)/delta, 6)
	case maxC == gf:
		h = 60 * ((bf-rf)/delta + 2)
	default:
		h = 60 * ((rf-gf)/delta + 4)
	}
	if h < 0 {
		h += 360
	}

	var s float64
	if maxC > 0 {
		s = delta / maxC
	}

	return HSV{H: h / 2.0, S: s * 255.0, V: maxC * 255.0}
}

// LockBounds returns the inclusive HSV in-range bounds for re-acquiring a
// locked color. Normal locks use a tight hue window with broad
// saturation/value ranges; low-saturation locks widen hue and saturation
// because hue is noisy near gray.
func LockBounds(c HSV, lowSat bool) (lower, upper HSV) {
	if lowSat {
		return HSV{H: clampf(c.H-30, 0, 179), S: 0, V: clampf(c.V-70, 0, 255)},
			HSV{H: clampf(c.H+30, 0, 179), S: 70, V: 255}
	}
	return HSV{H: clampf(c.H-10, 0, 179), S: 50, V: 50},
		HSV{H: clampf(c.H+10, 0, 179), S: 255, V: 255}
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
