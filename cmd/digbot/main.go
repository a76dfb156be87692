package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"digbot/internal/config"
	"digbot/internal/log"
	"digbot/pkg/capture"
	"digbot/pkg/engine"
	"digbot/pkg/input"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	configPath := flag.String("config", "digbot.toml", "Path to TOML config file")
	x := flag.Int("x", 0, "Capture region left edge (screen px)")
	y := flag.Int("y", 0, "Capture region top edge (screen px)")
	width := flag.Int("width", 0, "Capture region width (px)")
	height := flag.Int("height", 0, "Capture region height (px)")
	logLevel := flag.String("log-level", envOr("DIGBOT_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	debugClicks := flag.Bool("debug-clicks", false, "Save a log line and screenshot for every click")
	flag.Parse()

	log.Init(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config load failed, continuing with defaults", "error", err)
	}
	if *debugClicks {
		cfg.DebugClicksEnabled = true
	}

	region := capture.Region{X: *x, Y: *y, Width: *width, Height: *height}
	if !region.Valid() {
		fmt.Fprintln(os.Stderr, "a capture region is required: -x -y -width -height")
		fmt.Fprintln(os.Stderr, "select the minigame bar area, e.g. -x 760 -y 980 -width 400 -height 60")
		os.Exit(1)
	}

	fmt.Println("⛏️  digbot")
	fmt.Printf("   Region:  %dx%d at (%d,%d)\n", region.Width, region.Height, region.X, region.Y)
	fmt.Printf("   Target:  %d fps (capture %d fps)\n", cfg.TargetFPS, cfg.ScreenshotFPS)
	fmt.Printf("   Walk:    %v (pattern %q)\n", cfg.AutoWalkEnabled, cfg.WalkPattern)
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nshutting down...")
		cancel()
	}()

	eng := engine.New(cfg, region, capture.NewScreen(), input.NewRobot())

	// Measure once up front so the first predictive click is already
	// compensated. The engine refreshes the cache on its own afterwards.
	latency := eng.RefreshLatency()
	fmt.Printf("   Latency: %v measured\n\n", latency.Round(time.Millisecond))

	go consumeResults(ctx, eng)

	eng.Start()
	if err := eng.Run(ctx); err != nil {
		eng.Stop()
		log.Error("frame loop failed", "error", err)
		os.Exit(1)
	}
	eng.Stop()
}

// consumeResults drains the preview channel and prints a status line roughly
// once a second. Without a drain the engine would stop publishing after the
// first frame.
func consumeResults(ctx context.Context, eng *engine.Engine) {
	lastPrint := time.Now()
	lastMilestone := 0

	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-eng.Results():
			if !ok {
				return
			}
			info := res.Info
			res.Close()

			if info.Milestone && info.DigCount != lastMilestone {
				lastMilestone = info.DigCount
				fmt.Printf("🏆 milestone: %d digs\n", info.DigCount)
			}

			if time.Since(lastPrint) < time.Second {
				continue
			}
			lastPrint = time.Now()

			lock := info.LockedColorHex
			if lock == "" {
				lock = "-"
			}
			fmt.Printf("[%s] fps=%d method=%q lock=%s vel=%+.0f clicks=%d digs=%d sells=%d engaged=%v\n",
				info.Status,
				info.BenchmarkFPS,
				info.Detection.Method,
				lock,
				info.Velocity,
				info.ClickCount,
				info.DigCount,
				info.SellCount,
				info.TargetEngaged)
		}
	}
}
