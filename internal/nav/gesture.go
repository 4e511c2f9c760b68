package nav

import "time"

// Step is a discrete navigation event produced by a gesture.
type Step int

const (
	StepNone Step = 0
	StepNext Step = 1
	StepPrev Step = -1
)

func (s Step) String() string {
	switch s {
	case StepNext:
		return "next"
	case StepPrev:
		return "prev"
	default:
		return "none"
	}
}

// Default gesture tuning.
const (
	DefaultSwipeNarrow      = 30
	DefaultSwipeWide        = 50
	DefaultNarrowBreakpoint = 768
	DefaultWheelThreshold   = 50
	DefaultWheelReset       = 200 * time.Millisecond
)

// SwipeConfig holds the displacement a swipe must exceed, which is smaller
// on narrow viewports.
type SwipeConfig struct {
	NarrowThreshold  float64
	WideThreshold    float64
	NarrowBreakpoint float64
}

// DefaultSwipeConfig returns the stock swipe thresholds.
func DefaultSwipeConfig() SwipeConfig {
	return SwipeConfig{
		NarrowThreshold:  DefaultSwipeNarrow,
		WideThreshold:    DefaultSwipeWide,
		NarrowBreakpoint: DefaultNarrowBreakpoint,
	}
}

// Threshold returns the swipe threshold for a viewport of the given width.
func (c SwipeConfig) Threshold(viewportWidth float64) float64 {
	if viewportWidth < c.NarrowBreakpoint {
		return c.NarrowThreshold
	}
	return c.WideThreshold
}

// SwipeStep maps a horizontal displacement at gesture end to a step.
// A leftward swipe advances; a rightward swipe goes back.
func SwipeStep(deltaX, threshold float64) Step {
	switch {
	case deltaX < -threshold:
		return StepNext
	case deltaX > threshold:
		return StepPrev
	default:
		return StepNone
	}
}

// WheelConfig controls wheel accumulation.
type WheelConfig struct {
	Threshold  float64
	ResetAfter time.Duration
}

// DefaultWheelConfig returns the stock wheel tuning.
func DefaultWheelConfig() WheelConfig {
	return WheelConfig{Threshold: DefaultWheelThreshold, ResetAfter: DefaultWheelReset}
}

// WheelState accumulates wheel deltas between discrete steps.
type WheelState struct {
	Accumulator float64
	LastEvent   time.Time
}

// Advance folds a wheel delta observed at now into the state. A pause longer
// than cfg.ResetAfter starts a new gesture. When the running total crosses
// the threshold in either direction the accumulator resets and a step is
// returned.
func (s WheelState) Advance(delta float64, now time.Time, cfg WheelConfig) (WheelState, Step) {
	acc := s.Accumulator
	if s.LastEvent.IsZero() || now.Sub(s.LastEvent) > cfg.ResetAfter {
		acc = 0
	}
	acc += delta

	next := WheelState{Accumulator: acc, LastEvent: now}
	switch {
	case acc > cfg.Threshold:
		next.Accumulator = 0
		return next, StepNext
	case acc < -cfg.Threshold:
		next.Accumulator = 0
		return next, StepPrev
	}
	return next, StepNone
}
