// Package nav keeps a bounded cursor over an ordered sequence of letters and
// turns raw keyboard, swipe and wheel input into discrete moves.
package nav

import "time"

// Options configures a Controller.
type Options struct {
	// OnNavigate is called with the new index after every user-initiated move.
	OnNavigate func(index int)

	// EnableGestures gates HandleSwipe and HandleWheel together.
	EnableGestures bool

	Swipe SwipeConfig
	Wheel WheelConfig

	// Now defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns options with gestures enabled and stock tuning.
func DefaultOptions() Options {
	return Options{
		EnableGestures: true,
		Swipe:          DefaultSwipeConfig(),
		Wheel:          DefaultWheelConfig(),
	}
}

// Controller is the navigation cursor. It is not safe for concurrent use;
// callers drive it from a single event loop.
type Controller struct {
	length    int
	index     int
	direction int
	wheel     WheelState
	opts      Options
}

// New returns a controller over a sequence of the given length, starting at
// initial clamped into range.
func New(length, initial int, opts Options) *Controller {
	if opts.Swipe == (SwipeConfig{}) {
		opts.Swipe = DefaultSwipeConfig()
	}
	if opts.Wheel == (WheelConfig{}) {
		opts.Wheel = DefaultWheelConfig()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Controller{opts: opts}
	c.Reset(length, initial)
	return c
}

// Reset replaces the sequence length, moves to initial (clamped) and clears
// direction and wheel state. Used when the feed or its filter changes.
func (c *Controller) Reset(length, initial int) {
	if length < 0 {
		length = 0
	}
	c.length = length
	c.index = clamp(initial, length)
	c.direction = 0
	c.wheel = WheelState{}
}

func clamp(i, length int) int {
	if i > length-1 {
		i = length - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Index returns the current cursor position. It is 0 for an empty sequence.
func (c *Controller) Index() int { return c.index }

// Direction returns the sign of the last move: -1, 0 or +1.
func (c *Controller) Direction() int { return c.direction }

// Len returns the sequence length the controller is tracking.
func (c *Controller) Len() int { return c.length }

// CanGoNext reports whether the cursor is before the last element.
func (c *Controller) CanGoNext() bool { return c.index < c.length-1 }

// CanGoPrev reports whether the cursor is after the first element.
func (c *Controller) CanGoPrev() bool { return c.index > 0 }

// GoNext moves forward one step. It reports whether the cursor moved.
func (c *Controller) GoNext() bool {
	if !c.CanGoNext() {
		return false
	}
	c.move(c.index+1, 1)
	return true
}

// GoPrev moves back one step. It reports whether the cursor moved.
func (c *Controller) GoPrev() bool {
	if !c.CanGoPrev() {
		return false
	}
	c.move(c.index-1, -1)
	return true
}

// GoToIndex jumps to i. Out-of-range indexes and the current index are
// ignored.
func (c *Controller) GoToIndex(i int) bool {
	if i < 0 || i >= c.length || i == c.index {
		return false
	}
	dir := -1
	if i > c.index {
		dir = 1
	}
	c.move(i, dir)
	return true
}

func (c *Controller) move(to, dir int) {
	c.index = to
	c.direction = dir
	if c.opts.OnNavigate != nil {
		c.opts.OnNavigate(to)
	}
}

// SetLength updates the tracked length. If the cursor falls outside the new
// bounds it is clamped without touching direction or firing OnNavigate.
func (c *Controller) SetLength(length int) {
	if length < 0 {
		length = 0
	}
	c.length = length
	if c.index >= length {
		c.index = clamp(c.index, length)
	}
}

// GesturesEnabled reports whether swipe and wheel input is honored.
func (c *Controller) GesturesEnabled() bool { return c.opts.EnableGestures }

// SetGesturesEnabled toggles swipe and wheel handling. Disabling drops any
// partially accumulated wheel gesture.
func (c *Controller) SetGesturesEnabled(enabled bool) {
	c.opts.EnableGestures = enabled
	if !enabled {
		c.wheel = WheelState{}
	}
}

// HandleSwipe applies a completed horizontal swipe of deltaX on a viewport
// of the given width. It returns the step taken, if any.
func (c *Controller) HandleSwipe(deltaX, viewportWidth float64) Step {
	if !c.opts.EnableGestures {
		return StepNone
	}
	step := SwipeStep(deltaX, c.opts.Swipe.Threshold(viewportWidth))
	return c.apply(step)
}

// HandleWheel feeds one wheel event into the accumulator.
func (c *Controller) HandleWheel(deltaY float64) Step {
	if !c.opts.EnableGestures {
		return StepNone
	}
	var step Step
	c.wheel, step = c.wheel.Advance(deltaY, c.opts.Now(), c.opts.Wheel)
	return c.apply(step)
}

// apply performs a gesture step. A step at a boundary is consumed without
// moving and reported as StepNone.
func (c *Controller) apply(step Step) Step {
	switch step {
	case StepNext:
		if c.GoNext() {
			return StepNext
		}
	case StepPrev:
		if c.GoPrev() {
			return StepPrev
		}
	}
	return StepNone
}
