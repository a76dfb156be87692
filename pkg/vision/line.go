package vision

import (
	"gocv.io/x/gocv"
)

// NoLine is the sentinel for "no marker line detected this frame".
const NoLine = -1

// LineDetector scans a grayscale frame for the moving marker line: the first
// column containing a contiguous vertical run of bright pixels of at least
// the configured height.
type LineDetector struct {
	Sensitivity int     // per-pixel intensity threshold (0-255)
	MinHeight   float64 // required run height as a fraction of the scanned rows (0-1]
	Offset      float64 // pixels added to the detected column
}

// LineResult carries the detected column and the velocity-only fallback.
// VelocityPos equals Pos when the primary scan succeeds; when it fails,
// VelocityPos may still hold a bottom-region detection that keeps the
// velocity stream alive. VelocityPos never feeds zone alignment.
type LineResult struct {
	Pos         int
	VelocityPos int
}

// Detected reports whether the primary scan found the line.
func (r LineResult) Detected() bool {
	return r.Pos != NoLine
}

// Detect scans the full frame, then retries the bottom 30% for velocity
// continuity when the full scan fails. Absence is a value, not an error.
func (d *LineDetector) Detect(gray gocv.Mat) LineResult {
	rows := gray.Rows()
	cols := gray.Cols()
	if rows == 0 || cols == 0 {
		return LineResult{Pos: NoLine, VelocityPos: NoLine}
	}

	data, err := gray.DataPtrUint8()
	if err != nil {
		return LineResult{Pos: NoLine, VelocityPos: NoLine}
	}

	pos := d.scan(data, cols, 0, rows)
	if pos != NoLine {
		return LineResult{Pos: pos, VelocityPos: pos}
	}

	bottomStart := rows - rows*3/10
	return LineResult{Pos: NoLine, VelocityPos: d.scan(data, cols, bottomStart, rows)}
}

// scan looks for the first column whose longest contiguous run of
// above-threshold pixels within [rowStart,rowEnd) meets the height
// requirement. Returns the offset-adjusted column or NoLine.
func (d *LineDetector) scan(data []uint8, cols, rowStart, rowEnd int) int {
	scanRows := rowEnd - rowStart
	if scanRows <= 0 {
		return NoLine
	}

	minRun := int(d.MinHeight * float64(scanRows))
	if minRun < 1 {
		minRun = 1
	}
	thresh := uint8(d.Sensitivity)

	for col := 0; col < cols; col++ {
		run := 0
		for row := rowStart; row < rowEnd; row++ {
			if data[row*cols+col] > thresh {
				run++
				if run >= minRun {
					adjusted := col + int(d.Offset)
					if adjusted < 0 {
						adjusted = 0
					}
					if adjusted >= cols {
						adjusted = cols - 1
					}
					return adjusted
				}
			} else {
				run = 0
			}
		}
	}
	return NoLine
}
