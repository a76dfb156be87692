// Package config provides the digbot configuration: one typed struct with
// documented defaults for every tunable the pipeline reads.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"digbot/internal/log"
)

// Config holds all tunable parameters for detection, prediction and auto-walk.
type Config struct {
	// Capture / pacing
	TargetFPS     int `toml:"target_fps"`     // game frame rate the math is scaled to
	ScreenshotFPS int `toml:"screenshot_fps"` // capture loop pacing

	// Line detection
	LineSensitivity     int     `toml:"line_sensitivity"`      // per-column intensity threshold (0-255)
	LineMinHeight       float64 `toml:"line_min_height"`       // required run height as a fraction of frame height (0-1]
	LineDetectionOffset float64 `toml:"line_detection_offset"` // pixels added to the detected column
	LineExclusionRadius int     `toml:"line_exclusion_radius"` // band painted out of the zone mask around the line

	// Zone detection
	SaturationThreshold  float64 `toml:"saturation_threshold"`    // binary threshold on the saturation channel
	ZoneMinWidth         int     `toml:"zone_min_width"`          // reject contours narrower than this (px)
	MaxZoneWidthPercent  float64 `toml:"max_zone_width_percent"`  // reject contours wider than this % of frame width
	MinZoneHeightPercent float64 `toml:"min_zone_height_percent"` // reject contours shorter than this % of region height
	ZoneSmoothingFactor  float64 `toml:"zone_smoothing_factor"`   // EMA alpha; >=1 snaps, <=0.01 near-frozen

	// Otsu strategies
	UseOtsuDetection   bool    `toml:"use_otsu_detection"`
	OtsuAdaptiveArea   bool    `toml:"otsu_adaptive_area"`    // percentile area bound instead of fixed
	OtsuMinArea        int     `toml:"otsu_min_area"`         // fixed-area lower bound (px)
	OtsuMaxArea        int     `toml:"otsu_max_area"`         // fixed-area upper bound, 0 = unlimited
	OtsuAreaPercentile float64 `toml:"otsu_area_percentile"`  // adaptive bound percentile (0-100)
	OtsuMorphKernel    int     `toml:"otsu_morph_kernel_size"`

	// Color-picker strategy
	UseColorPicker bool   `toml:"use_color_picker_detection"`
	PickedColorHex string `toml:"picked_color_rgb"` // "#rrggbb"; empty falls back to saturation
	ColorTolerance int    `toml:"color_tolerance"`  // HSV distance tolerance

	// Sweet spot / clicking
	SweetSpotWidthPercent float64 `toml:"sweet_spot_width_percent"` // band width as % of zone width
	VelocityWidthEnabled  bool    `toml:"velocity_based_width_enabled"`
	VelocityWidthFactor   float64 `toml:"velocity_width_multiplier"` // widening per 1000 px/s of speed
	VelocityMaxFactor     float64 `toml:"velocity_max_factor"`       // cap on the widening factor
	PostClickBlindness    int     `toml:"post_click_blindness"`      // ms with no click decisions after a click
	PredictionEnabled     bool    `toml:"prediction_enabled"`
	ConfidenceThreshold   float64 `toml:"prediction_confidence_threshold"` // base threshold, fps-scaled at use

	// Target engagement
	MovementCheckFrames int `toml:"movement_check_frames"` // base history window at 120 fps
	MinMovementRange    int `toml:"min_movement_range"`    // px of travel that counts as "moving"

	// Auto-walk
	AutoWalkEnabled bool   `toml:"auto_walk_enabled"`
	WalkPattern     string `toml:"walk_pattern"`
	WalkDuration    int    `toml:"walk_duration"` // ms per untimed step

	// Auto-sell
	AutoSellEnabled bool `toml:"auto_sell_enabled"`
	SellEveryXDigs  int  `toml:"sell_every_x_digs"`
	SellButtonX     int  `toml:"sell_button_x"` // screen coords; 0,0 = unset
	SellButtonY     int  `toml:"sell_button_y"`

	// Shovel re-equip
	ShovelReequipInterval int    `toml:"shovel_reequip_interval"` // seconds, 0 = off
	ShovelSlotKey         string `toml:"shovel_slot_key"`

	// Input
	UseCustomCursor bool `toml:"use_custom_cursor"`
	CursorX         int  `toml:"cursor_x"`
	CursorY         int  `toml:"cursor_y"`

	// Debug
	DebugClicksEnabled bool   `toml:"debug_clicks_enabled"`
	DebugDir           string `toml:"debug_dir"`

	// Milestones (surfaced in the published info record)
	MilestoneInterval int `toml:"milestone_interval"`
}

// Default returns the recommended configuration.
func Default() Config {
	return Config{
		TargetFPS:     120,
		ScreenshotFPS: 240,

		LineSensitivity:     100,
		LineMinHeight:       1.0, // full-height line
		LineDetectionOffset: 5.0,
		LineExclusionRadius: 10,

		SaturationThreshold:  50,
		ZoneMinWidth:         100,
		MaxZoneWidthPercent:  80,
		MinZoneHeightPercent: 50,
		ZoneSmoothingFactor:  0.8,

		UseOtsuDetection:   false,
		OtsuAdaptiveArea:   false,
		OtsuMinArea:        500,
		OtsuMaxArea:        0,
		OtsuAreaPercentile: 75,
		OtsuMorphKernel:    5,

		UseColorPicker: false,
		PickedColorHex: "",
		ColorTolerance: 30,

		SweetSpotWidthPercent: 20,
		VelocityWidthEnabled:  false,
		VelocityWidthFactor:   0.5,
		VelocityMaxFactor:     2.0,
		PostClickBlindness:    50,
		PredictionEnabled:     true,
		ConfidenceThreshold:   0.6,

		MovementCheckFrames: 30,
		MinMovementRange:    50,

		AutoWalkEnabled: false,
		WalkPattern:     "nsew",
		WalkDuration:    500,

		AutoSellEnabled: false,
		SellEveryXDigs:  10,

		ShovelReequipInterval: 0,
		ShovelSlotKey:         "1",

		DebugClicksEnabled: false,
		DebugDir:           "debug_clicks",

		MilestoneInterval: 0,
	}
}

// Load reads a TOML config file over the defaults. A missing file is not an
// error: defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Warn("config file not found, using defaults", "path", path)
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Default(), fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize clamps out-of-range values back to their defaults. Malformed
// configuration never aborts the pipeline; it degrades to defaults with a
// logged warning.
func (c *Config) Normalize() {
	def := Default()

	clampInt := func(name string, v *int, lo, hi, fallback int) {
		if *v < lo || (hi > 0 && *v > hi) {
			log.Warn("config value out of range, using default", "param", name, "value", *v, "default", fallback)
			*v = fallback
		}
	}
	clampFloat := func(name string, v *float64, lo, hi, fallback float64) {
		if *v < lo || (hi > 0 && *v > hi) {
			log.Warn("config value out of range, using default", "param", name, "value", *v, "default", fallback)
			*v = fallback
		}
	}

	clampInt("target_fps", &c.TargetFPS, 1, 1000, def.TargetFPS)
	clampInt("screenshot_fps", &c.ScreenshotFPS, 1, 1000, def.ScreenshotFPS)
	clampInt("line_sensitivity", &c.LineSensitivity, 1, 255, def.LineSensitivity)
	clampFloat("line_min_height", &c.LineMinHeight, 0.01, 1.0, def.LineMinHeight)
	clampInt("line_exclusion_radius", &c.LineExclusionRadius, 0, 500, def.LineExclusionRadius)
	clampFloat("saturation_threshold", &c.SaturationThreshold, 1, 255, def.SaturationThreshold)
	clampInt("zone_min_width", &c.ZoneMinWidth, 1, 0, def.ZoneMinWidth)
	clampFloat("max_zone_width_percent", &c.MaxZoneWidthPercent, 1, 100, def.MaxZoneWidthPercent)
	clampFloat("min_zone_height_percent", &c.MinZoneHeightPercent, 0, 100, def.MinZoneHeightPercent)
	clampFloat("zone_smoothing_factor", &c.ZoneSmoothingFactor, 0.001, 1.0, def.ZoneSmoothingFactor)
	clampInt("otsu_min_area", &c.OtsuMinArea, 0, 0, def.OtsuMinArea)
	clampFloat("otsu_area_percentile", &c.OtsuAreaPercentile, 1, 100, def.OtsuAreaPercentile)
	clampInt("otsu_morph_kernel_size", &c.OtsuMorphKernel, 1, 99, def.OtsuMorphKernel)
	clampInt("color_tolerance", &c.ColorTolerance, 1, 255, def.ColorTolerance)
	clampFloat("sweet_spot_width_percent", &c.SweetSpotWidthPercent, 1, 100, def.SweetSpotWidthPercent)
	clampFloat("velocity_max_factor", &c.VelocityMaxFactor, 1, 10, def.VelocityMaxFactor)
	clampInt("post_click_blindness", &c.PostClickBlindness, 0, 5000, def.PostClickBlindness)
	clampFloat("prediction_confidence_threshold", &c.ConfidenceThreshold, 0, 1, def.ConfidenceThreshold)
	clampInt("movement_check_frames", &c.MovementCheckFrames, 10, 1000, def.MovementCheckFrames)
	clampInt("min_movement_range", &c.MinMovementRange, 1, 0, def.MinMovementRange)
	clampInt("walk_duration", &c.WalkDuration, 50, 60000, def.WalkDuration)
	clampInt("sell_every_x_digs", &c.SellEveryXDigs, 1, 0, def.SellEveryXDigs)

	if c.OtsuMaxArea < 0 {
		log.Warn("config value out of range, using default", "param", "otsu_max_area", "value", c.OtsuMaxArea, "default", def.OtsuMaxArea)
		c.OtsuMaxArea = def.OtsuMaxArea
	}
	if c.DebugDir == "" {
		c.DebugDir = def.DebugDir
	}
	if c.ShovelSlotKey == "" {
		c.ShovelSlotKey = def.ShovelSlotKey
	}
}

// SellPosition returns the configured sell button position and whether one
// is set.
func (c *Config) SellPosition() (x, y int, ok bool) {
	if c.SellButtonX == 0 && c.SellButtonY == 0 {
		return 0, 0, false
	}
	return c.SellButtonX, c.SellButtonY, true
}
