package tracking

import (
	"sync"
	"time"

	"github.com/fusiondrive/CABSFlight/pkg/transit"
)

// Default animation parameters. One transition spans a little under a second
// so it completes comfortably inside a 3 second polling interval, emitting
// frames at display refresh rate.
const (
	DefaultTransitionDuration = 900 * time.Millisecond
	DefaultFrameInterval      = time.Second / 60
)

// FrameFunc receives each emitted animation frame: the complete displayed
// vehicle set, never a partial update. It is invoked with the animator's
// internal lock held, so implementations must be quick and must not call
// back into the animator.
type FrameFunc func([]transit.VehicleSnapshot)

// Animator transitions the displayed vehicle set from its current state to
// each new fetch target over a fixed duration at a fixed frame cadence.
//
// At most one transition is active at a time: Begin always supersedes any
// transition in flight. Supersession is enforced with a generation counter;
// a superseded transition's goroutine notices before writing its next frame
// and exits without touching shared state, so stale frames never apply.
type Animator struct {
	mu sync.Mutex

	duration      time.Duration
	frameInterval time.Duration
	onFrame       FrameFunc

	// gen identifies the active transition; bumping it invalidates any
	// goroutine still running an older one
	gen uint64

	// seeded reports whether anything has ever been displayed since the
	// last Reset; the first target after a reset is shown directly
	seeded bool

	// displayed is the current animation frame, shown to consumers
	displayed []transit.VehicleSnapshot

	// confirmed is the last fully-settled fetch target
	confirmed []transit.VehicleSnapshot
}

// NewAnimator creates an animator. Zero durations fall back to the defaults.
// onFrame may be nil.
func NewAnimator(duration, frameInterval time.Duration, onFrame FrameFunc) *Animator {
	if duration <= 0 {
		duration = DefaultTransitionDuration
	}
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	return &Animator{
		duration:      duration,
		frameInterval: frameInterval,
		onFrame:       onFrame,
	}
}

// Begin starts a transition toward target, superseding any transition in
// flight. The current displayed set becomes the start set; vehicles present
// in target but not in the start set appear directly at their target
// position. If nothing has been displayed since the last Reset, the target
// is shown immediately with no transition.
func (a *Animator) Begin(target []transit.VehicleSnapshot) {
	a.mu.Lock()

	a.gen++
	gen := a.gen

	if !a.seeded {
		a.seeded = true
		a.displayed = copySet(target)
		a.confirmed = copySet(target)
		a.emitLocked()
		a.mu.Unlock()
		return
	}

	start := copySet(a.displayed)
	a.mu.Unlock()

	go a.run(gen, start, copySet(target))
}

// Cancel stops any transition in flight. No further frames are emitted; the
// displayed set stays at whatever the last emitted frame was.
func (a *Animator) Cancel() {
	a.mu.Lock()
	a.gen++
	a.mu.Unlock()
}

// Reset cancels any transition in flight and clears all vehicle state, so
// the next Begin seeds the display directly. Used on route switches to
// prevent carry-over interpolation between unrelated vehicle sets.
func (a *Animator) Reset() {
	a.mu.Lock()
	a.gen++
	a.seeded = false
	a.displayed = nil
	a.confirmed = nil
	a.mu.Unlock()
}

// Displayed returns a copy of the current animation frame.
func (a *Animator) Displayed() []transit.VehicleSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copySet(a.displayed)
}

// Confirmed returns a copy of the last fully-settled fetch target.
func (a *Animator) Confirmed() []transit.VehicleSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copySet(a.confirmed)
}

// run drives one transition until completion or supersession.
func (a *Animator) run(gen uint64, start, target []transit.VehicleSnapshot) {
	startByID := make(map[string]transit.VehicleSnapshot, len(start))
	for _, v := range start {
		startByID[v.ID] = v
	}

	startTime := time.Now()
	ticker := time.NewTicker(a.frameInterval)
	defer ticker.Stop()

	for range ticker.C {
		progress := float64(time.Since(startTime)) / float64(a.duration)
		if progress > 1.0 {
			progress = 1.0
		}
		final := progress >= 1.0
		eased := EaseOutCubic(progress)

		frame := make([]transit.VehicleSnapshot, 0, len(target))
		for _, tv := range target {
			if final {
				// Emit the target exactly, no residual
				// interpolation error
				frame = append(frame, tv)
				continue
			}
			if sv, ok := startByID[tv.ID]; ok {
				frame = append(frame, Interpolate(sv, tv, eased))
			} else {
				// New vehicle, no interpolation source
				frame = append(frame, tv)
			}
		}

		a.mu.Lock()
		if a.gen != gen {
			// Superseded or canceled; this frame must not apply
			a.mu.Unlock()
			return
		}
		a.displayed = frame
		if final {
			a.confirmed = copySet(target)
		}
		a.emitLocked()
		a.mu.Unlock()

		if final {
			return
		}
	}
}

// emitLocked delivers the current displayed frame to the frame callback.
// Caller holds a.mu.
func (a *Animator) emitLocked() {
	if a.onFrame != nil {
		a.onFrame(copySet(a.displayed))
	}
}

// copySet returns a defensive copy of a snapshot set. A nil input yields an
// empty, non-nil slice so consumers can range without nil checks.
func copySet(set []transit.VehicleSnapshot) []transit.VehicleSnapshot {
	out := make([]transit.VehicleSnapshot, len(set))
	copy(out, set)
	return out
}
