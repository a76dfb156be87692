package autowalk

// Engagement distinguishes an actively playable marker from a frozen or
// absent one: the line must be detected now AND its recent history must show
// real travel.
type Engagement struct {
	BaseWindow int // history window at 120 fps
	MinRange   int // px of travel that counts as movement

	history []int
}

// NewEngagement creates a tracker with the given base window and movement
// threshold.
func NewEngagement(baseWindow, minRange int) *Engagement {
	return &Engagement{BaseWindow: baseWindow, MinRange: minRange}
}

// Reset drops the position history.
func (e *Engagement) Reset() {
	e.history = e.history[:0]
}

// Update folds in this frame's line position (sentinel -1 when undetected)
// and reports target engagement. The history window scales with the frame
// rate so the check covers a constant wall-clock span.
func (e *Engagement) Update(linePos, fps int) bool {
	window := e.BaseWindow * fps / 120
	if window < 10 {
		window = 10
	}

	e.history = append(e.history, linePos)
	if len(e.history) > window {
		e.history = e.history[len(e.history)-window:]
	}

	return linePos != -1 && e.moving()
}

// moving requires at least 10 samples, 5 of them valid, spanning MinRange px.
func (e *Engagement) moving() bool {
	if len(e.history) < 10 {
		return false
	}

	minPos, maxPos, valid := 0, 0, 0
	for _, pos := range e.history {
		if pos == -1 {
			continue
		}
		if valid == 0 || pos < minPos {
			minPos = pos
		}
		if valid == 0 || pos > maxPos {
			maxPos = pos
		}
		valid++
	}
	if valid < 5 {
		return false
	}
	return maxPos-minPos >= e.MinRange
}
