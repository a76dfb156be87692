// Package engine runs the frame loop: capture, detection, prediction, the
// auto-walk state machine and click dispatch, paced to a target rate on a
// single goroutine.
package engine

import (
	"context"
	"fmt"
	"image"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"digbot/internal/config"
	"digbot/internal/log"
	"digbot/pkg/autowalk"
	"digbot/pkg/capture"
	"digbot/pkg/input"
	"digbot/pkg/motion"
	"digbot/pkg/vision"
)

const (
	// startupGrace suppresses clicks right after Start so a stale frame
	// cannot trigger one.
	startupGrace = 100 * time.Millisecond

	// housekeepingEvery spaces out memory reclamation.
	housekeepingEvery = 300

	// maxCaptureFailures in a row escalates to the caller: the capture
	// device is gone, not glitching.
	maxCaptureFailures = 240

	latencyTTL = 300 * time.Second
)

// Engine owns the detection pipeline and is the only mutator of its state.
type Engine struct {
	cfg    config.Config
	region capture.Region
	source capture.Source
	disp   input.Dispatcher

	buffers  *vision.Buffers
	lineDet  *vision.LineDetector
	zoneDet  *vision.ZoneDetector
	smoother *vision.Smoother
	est      *motion.Estimator
	sched    *motion.Scheduler
	engage   *autowalk.Engagement
	machine  *autowalk.Machine

	token *input.Token
	pool  *input.Pool

	results chan FrameResult

	running     atomic.Bool
	selling     atomic.Bool
	clicks      atomic.Int64
	startedAtNS atomic.Int64

	latMu     sync.Mutex
	latency   time.Duration
	latencyAt time.Time
	probe     capture.LatencyProbe

	clickLog *ClickLog

	// benchmark accounting, loop-local
	benchStart  time.Time
	benchFrames int
	benchFPS    int
}

// New wires an engine from its collaborators. The config is normalized here
// so a hand-built Config cannot feed the loop a zero pacing rate.
func New(cfg config.Config, region capture.Region, source capture.Source, disp input.Dispatcher) *Engine {
	cfg.Normalize()
	e := &Engine{
		cfg:    cfg,
		region: region,
		source: source,
		disp:   disp,

		buffers: vision.NewBuffers(),
		lineDet: &vision.LineDetector{
			Sensitivity: cfg.LineSensitivity,
			MinHeight:   cfg.LineMinHeight,
			Offset:      cfg.LineDetectionOffset,
		},
		zoneDet: vision.NewZoneDetector(vision.ZoneConfig{
			SaturationThreshold: cfg.SaturationThreshold,
			UseOtsu:             cfg.UseOtsuDetection,
			OtsuAdaptiveArea:    cfg.OtsuAdaptiveArea,
			OtsuMinArea:         cfg.OtsuMinArea,
			OtsuMaxArea:         cfg.OtsuMaxArea,
			OtsuAreaPercentile:  cfg.OtsuAreaPercentile,
			OtsuMorphKernel:     cfg.OtsuMorphKernel,
			UseColorPicker:      cfg.UseColorPicker,
			PickedColorHex:      cfg.PickedColorHex,
			ColorTolerance:      cfg.ColorTolerance,
			ExclusionRadius:     cfg.LineExclusionRadius,
			MinWidth:            cfg.ZoneMinWidth,
			MaxWidthPercent:     cfg.MaxZoneWidthPercent,
			MinHeightPercent:    cfg.MinZoneHeightPercent,
		}),
		smoother: &vision.Smoother{Alpha: cfg.ZoneSmoothingFactor},
		est:      motion.NewEstimator(cfg.TargetFPS),
		sched: motion.NewScheduler(motion.SchedulerConfig{
			PredictionEnabled:   cfg.PredictionEnabled,
			ConfidenceThreshold: cfg.ConfidenceThreshold,
			PostClickBlindness:  time.Duration(cfg.PostClickBlindness) * time.Millisecond,
		}),
		engage: autowalk.NewEngagement(cfg.MovementCheckFrames, cfg.MinMovementRange),

		token:   &input.Token{},
		pool:    input.NewPool(3),
		results: make(chan FrameResult, 1),

		clickLog: NewClickLog(cfg.DebugDir),
	}

	machineCfg := autowalk.DefaultMachineConfig()
	machineCfg.WalkDuration = time.Duration(cfg.WalkDuration) * time.Millisecond
	machineCfg.AutoSell = cfg.AutoSellEnabled
	machineCfg.SellEvery = cfg.SellEveryXDigs
	e.machine = autowalk.NewMachine(machineCfg, autowalk.LookupPattern(cfg.WalkPattern), e)

	e.probe = capture.LatencyProbe{Source: source, Region: region, Click: disp.Click}
	return e
}

// Results returns the single-slot frame result channel. When the consumer
// lags, new results replace nothing: they are dropped.
func (e *Engine) Results() <-chan FrameResult {
	return e.results
}

// Start arms automation: counters reset, history cleared, clicks allowed
// after the startup grace period.
func (e *Engine) Start() {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	e.clicks.Store(0)
	e.est.Reset()
	e.engage.Reset()
	e.machine.Reset()
	e.sched.Reset()
	e.startedAtNS.Store(time.Now().UnixNano())

	if e.cfg.DebugClicksEnabled {
		if err := e.clickLog.Init(); err != nil {
			log.Error("click debug log unavailable", "error", err)
		}
	}
	log.Info("automation started", "pattern", e.cfg.WalkPattern, "auto_walk", e.cfg.AutoWalkEnabled)
}

// Stop disarms automation. The frame loop keeps running for preview;
// in-flight click and movement tasks finish, new ones are not started.
func (e *Engine) Stop() {
	if e.running.CompareAndSwap(true, false) {
		log.Info("automation stopped",
			"clicks", e.clicks.Load(),
			"digs", e.machine.DigCount(),
			"sells", e.machine.SellCount())
	}
}

// Running reports whether automation is armed.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run executes the frame loop until the context is cancelled. Only a
// permanently failing capture source returns an error.
func (e *Engine) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(e.cfg.ScreenshotFPS)
	e.benchStart = time.Now()

	iterations := 0
	captureFails := 0
	lastReequip := time.Now()

	defer func() {
		e.pool.Join()
		e.buffers.Close()
		e.zoneDet.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frameStart := time.Now()
		iterations++

		if iterations%housekeepingEvery == 0 {
			debug.FreeOSMemory()
		}

		if e.running.Load() && e.cfg.ShovelReequipInterval > 0 {
			if time.Since(lastReequip) >= time.Duration(e.cfg.ShovelReequipInterval)*time.Second {
				lastReequip = time.Now()
				key := e.cfg.ShovelSlotKey
				go e.disp.Tap(key)
			}
		}

		frame, ts, err := e.source.Capture(e.region)
		if err != nil {
			frame.Close()
			captureFails++
			if captureFails >= maxCaptureFailures {
				return fmt.Errorf("capture source failed %d times in a row: %w", captureFails, err)
			}
			log.Warn("capture failed", "error", err)
			time.Sleep(interval)
			continue
		}
		captureFails = 0

		e.processFrame(ctx, frame, ts)
		frame.Close()

		e.benchFrames++
		if since := time.Since(e.benchStart); since >= time.Second {
			e.benchFPS = int(float64(e.benchFrames) / since.Seconds())
			e.benchFrames = 0
			e.benchStart = time.Now()
		}

		if elapsed := time.Since(frameStart); elapsed < interval {
			time.Sleep(interval - elapsed)
		}
	}
}

// processFrame runs one pass of the pipeline over a captured frame.
func (e *Engine) processFrame(ctx context.Context, frame gocv.Mat, ts time.Time) {
	height := frame.Rows()
	width := frame.Cols()
	if height == 0 || width == 0 {
		return
	}
	// Bottom 20% is known non-target region; the zone detector never sees it.
	zoneHeight := height * 80 / 100
	e.buffers.Ensure(width, height, zoneHeight)

	gocv.CvtColor(frame, &e.buffers.Gray, gocv.ColorBGRToGray)

	zoneView := frame.Region(image.Rect(0, 0, width, zoneHeight))
	gocv.CvtColor(zoneView, &e.buffers.HSV, gocv.ColorBGRToHSV)
	zoneView.Close()

	line := e.lineDet.Detect(e.buffers.Gray)

	zoneRes := e.zoneDet.Detect(e.buffers.HSV, line.Pos, e.cfg.TargetFPS, &e.buffers.Mask)
	if zoneRes.Released {
		e.smoother.Reset()
	}

	var zone vision.SmoothedZone
	var zoneSet bool
	if zoneRes.Candidate != nil {
		zone = e.smoother.Update(float64(zoneRes.Candidate.X), float64(zoneRes.Candidate.Width), float64(width))
		zoneSet = true
	} else {
		zone, zoneSet = e.smoother.Zone()
	}

	velocity := e.est.Add(line.VelocityPos, ts)
	acceleration := e.est.Acceleration()
	engaged := e.engage.Update(line.Pos, e.cfg.TargetFPS)

	if e.running.Load() && e.cfg.AutoWalkEnabled {
		e.machine.Tick(ctx, ts, engaged)
	}

	allowClicking := engaged
	if e.cfg.AutoWalkEnabled {
		allowClicking = e.machine.State() == autowalk.StateDigging && !e.selling.Load() && engaged
	}

	var spot motion.SweetSpot
	var spotSet bool
	if zoneSet {
		spot = motion.ComputeSweetSpot(zone.Center(), zone.Width, velocity, motion.SpotConfig{
			BaseWidthPercent: e.cfg.SweetSpotWidthPercent,
			VelocityEnabled:  e.cfg.VelocityWidthEnabled,
			VelocityFactor:   e.cfg.VelocityWidthFactor,
			MaxFactor:        e.cfg.VelocityMaxFactor,
		})
		spotSet = true
	}

	if e.running.Load() && allowClicking && spotSet && e.pastStartupGrace(ts) {
		dec := e.sched.Decide(ts, line.Pos, spot, e.est, e.cfg.TargetFPS, e.systemLatency(), e.token.Held())
		if dec.Kind != motion.ClickNone {
			e.sched.NoteClick(ts)
			e.recordClick(frame, line.Pos, spot, zone, zoneHeight, velocity, acceleration, dec)
			if dec.Kind == motion.ClickDirect {
				e.instantClick()
			} else {
				e.delayedClick(dec.Delay)
			}
		}
	}

	e.publish(frame, line, zone, zoneSet, spot, spotSet, zoneHeight, velocity, acceleration, engaged, zoneRes.Info)
}

func (e *Engine) pastStartupGrace(now time.Time) bool {
	started := e.startedAtNS.Load()
	if started == 0 {
		return true
	}
	return now.Sub(time.Unix(0, started)) > startupGrace
}

// systemLatency returns the cached end-to-end latency, re-measuring after
// the TTL expires.
func (e *Engine) systemLatency() time.Duration {
	e.latMu.Lock()
	defer e.latMu.Unlock()
	if !e.latencyAt.IsZero() && time.Since(e.latencyAt) < latencyTTL {
		return e.latency
	}
	e.latency = e.probe.Measure()
	e.latencyAt = time.Now()
	return e.latency
}

// RefreshLatency drops the cache and re-measures immediately.
func (e *Engine) RefreshLatency() time.Duration {
	e.latMu.Lock()
	e.latencyAt = time.Time{}
	e.latMu.Unlock()
	return e.systemLatency()
}
