package engine

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"digbot/internal/log"
	"digbot/pkg/motion"
	"digbot/pkg/vision"
)

// ClickLog records every dispatched click to a session log file, with an
// annotated screenshot per click for offline tuning.
type ClickLog struct {
	dir string

	mu      sync.Mutex
	path    string
	index   int
	enabled bool
}

// NewClickLog creates a click log writing under dir. Nothing touches the
// filesystem until Init.
func NewClickLog(dir string) *ClickLog {
	return &ClickLog{dir: dir}
}

// Init creates the debug directory and starts a fresh session log.
func (l *ClickLog) Init() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create debug dir %s: %w", l.dir, err)
	}

	l.path = filepath.Join(l.dir, fmt.Sprintf("session_%s.log", time.Now().Format("20060102_150405")))
	header := fmt.Sprintf("# click debug session started %s\n# idx\ttime\tkind\tline\tvel\taccel\tspot\tconf\tshot\n",
		time.Now().Format(time.RFC3339))
	if err := os.WriteFile(l.path, []byte(header), 0o644); err != nil {
		return fmt.Errorf("create session log: %w", err)
	}

	l.index = 0
	l.enabled = true
	return nil
}

// ClickRecord is one logged click.
type ClickRecord struct {
	Time         time.Time
	Kind         motion.ClickKind
	LinePos      int
	Velocity     float64
	Acceleration float64
	Spot         motion.SweetSpot
	Confidence   float64
	Screenshot   string
}

// Record appends a click line to the session log.
func (l *ClickLog) Record(rec ClickRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled {
		return
	}

	l.index++
	line := fmt.Sprintf("%d\t%s\t%s\t%d\t%.1f\t%.1f\t[%.1f,%.1f]\t%.3f\t%s\n",
		l.index,
		rec.Time.Format("15:04:05.000"),
		rec.Kind,
		rec.LinePos,
		rec.Velocity,
		rec.Acceleration,
		rec.Spot.Start, rec.Spot.End,
		rec.Confidence,
		rec.Screenshot)

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Warn("click log append failed", "error", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		log.Warn("click log write failed", "error", err)
	}
}

// SaveScreenshot writes an annotated copy of the frame and returns the file
// name, or empty on failure.
func (l *ClickLog) SaveScreenshot(frame gocv.Mat, linePos int, spot motion.SweetSpot, zone vision.SmoothedZone, zoneHeight int) string {
	l.mu.Lock()
	enabled := l.enabled
	dir := l.dir
	l.mu.Unlock()
	if !enabled {
		return ""
	}

	annotated := frame.Clone()
	defer annotated.Close()

	gocv.Rectangle(&annotated, image.Rect(int(zone.X), 0, int(zone.X+zone.Width), zoneHeight), zoneColor, 2)
	gocv.Rectangle(&annotated, image.Rect(int(spot.Start), 0, int(spot.End), zoneHeight), spotColor, 1)
	if linePos >= 0 {
		gocv.Line(&annotated, image.Pt(linePos, 0), image.Pt(linePos, annotated.Rows()), lineColor, 2)
	}
	gocv.Circle(&annotated, image.Pt(int(spot.Center), zoneHeight/2), 4, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	name := fmt.Sprintf("click_%s.png", uuid.NewString())
	if ok := gocv.IMWrite(filepath.Join(dir, name), annotated); !ok {
		log.Warn("click screenshot write failed", "file", name)
		return ""
	}
	return name
}

// recordClick captures the debug artifacts for a click decision. A no-op
// unless click debugging is enabled.
func (e *Engine) recordClick(frame gocv.Mat, linePos int, spot motion.SweetSpot, zone vision.SmoothedZone, zoneHeight int, velocity, acceleration float64, dec motion.Decision) {
	if !e.cfg.DebugClicksEnabled {
		return
	}

	shot := e.clickLog.SaveScreenshot(frame, linePos, spot, zone, zoneHeight)
	e.clickLog.Record(ClickRecord{
		Time:         time.Now(),
		Kind:         dec.Kind,
		LinePos:      linePos,
		Velocity:     velocity,
		Acceleration: acceleration,
		Spot:         spot,
		Confidence:   dec.Confidence,
		Screenshot:   shot,
	})
}
