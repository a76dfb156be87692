// Package autowalk sequences movement, clicking, target engagement and
// selling across frames: the walk patterns, the engagement tracker and the
// dig state machine.
package autowalk

import (
	"sort"
	"time"
)

// Step is one movement action in a walk pattern. A zero Duration means the
// configured default walk duration; Click controls whether the step is
// followed by a dig click.
type Step struct {
	Key      string
	Duration time.Duration
	Click    bool
}

// SimpleStep is a default-duration step followed by a click.
func SimpleStep(key string) Step {
	return Step{Key: key, Click: true}
}

// TimedStep is a step with an explicit duration and click toggle.
func TimedStep(key string, d time.Duration, click bool) Step {
	return Step{Key: key, Duration: d, Click: click}
}

// builtinPatterns are the walk paths available out of the box.
var builtinPatterns = map[string][]Step{
	"nsew": {
		SimpleStep("w"), SimpleStep("d"), SimpleStep("s"), SimpleStep("a"),
	},
	"circle": {
		SimpleStep("w"), SimpleStep("w"), SimpleStep("d"),
		SimpleStep("s"), SimpleStep("s"), SimpleStep("a"),
	},
	"forward_back": {
		SimpleStep("w"), SimpleStep("s"),
	},
	"zigzag": {
		TimedStep("w", 400*time.Millisecond, true),
		TimedStep("d", 250*time.Millisecond, true),
		TimedStep("w", 400*time.Millisecond, true),
		TimedStep("a", 250*time.Millisecond, true),
	},
	// Dig in place: no movement key, just the click cadence.
	"stationary": {
		TimedStep("", 100*time.Millisecond, true),
	},
}

// Patterns returns the available pattern names, sorted.
func Patterns() []string {
	names := make([]string, 0, len(builtinPatterns))
	for name := range builtinPatterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupPattern resolves a pattern by name, falling back to "nsew" when the
// name is unknown.
func LookupPattern(name string) []Step {
	if steps, ok := builtinPatterns[name]; ok {
		return steps
	}
	return builtinPatterns["nsew"]
}
