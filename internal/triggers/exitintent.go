package triggers

import (
	"time"

	"github.com/popgate/popgate/internal/engine"
)

// ExitIntentConfig tunes the exit-intent detector.
type ExitIntentConfig struct {
	// Sensitivity is the distance from the top edge, in pixels, the cursor
	// must be projected to reach for a leave to count as exit intent.
	Sensitivity int
	// BufferSize bounds the recent cursor sample ring. Default 30.
	BufferSize int
	// MinPageTime is the minimum active page age before firing.
	MinPageTime time.Duration
	// DisableOnMobile suppresses the trigger for mobile sessions.
	DisableOnMobile bool
}

// PointerSample is one observed cursor position.
type PointerSample struct {
	X, Y int
	At   time.Time
}

// ExitIntent fires once when the cursor leaves the document root with
// enough upward velocity to be headed for the top of the viewport. After
// firing it stops observing for the remainder of the session.
type ExitIntent struct {
	cfg     ExitIntentConfig
	clock   Clock
	publish engine.PublishFunc

	state     State
	startedAt time.Time
	mobile    bool
	buf       []PointerSample
}

// NewExitIntent creates an idle detector.
func NewExitIntent(cfg ExitIntentConfig, clock Clock, publish engine.PublishFunc) *ExitIntent {
	if cfg.Sensitivity == 0 {
		cfg.Sensitivity = 20
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 30
	}
	if clock == nil {
		clock = RealClock()
	}
	return &ExitIntent{
		cfg:     cfg,
		clock:   clock,
		publish: publish,
		state:   StateIdle,
		buf:     make([]PointerSample, 0, cfg.BufferSize),
	}
}

// Start arms the detector. mobile marks the session as a touch device.
func (x *ExitIntent) Start(mobile bool) {
	if x.state != StateIdle {
		return
	}
	x.state = StateArmed
	x.mobile = mobile
	x.startedAt = x.clock.Now()
}

// State returns the current lifecycle phase.
func (x *ExitIntent) State() State { return x.state }

// ObservePointer records a cursor sample into the bounded ring.
func (x *ExitIntent) ObservePointer(px, py int) {
	if x.state != StateArmed {
		return
	}
	if len(x.buf) == x.cfg.BufferSize {
		copy(x.buf, x.buf[1:])
		x.buf = x.buf[:len(x.buf)-1]
	}
	x.buf = append(x.buf, PointerSample{X: px, Y: py, At: x.clock.Now()})
}

// PointerLeave handles the cursor leaving an element. target is the DOM
// element the leave event reported; only leaving the document root can
// fire. Fires at most once, iff the final movement was upward and its
// projected position reaches the sensitivity band at the top.
func (x *ExitIntent) PointerLeave(target string) {
	if x.state != StateArmed {
		return
	}
	if x.mobile && x.cfg.DisableOnMobile {
		return
	}
	if target != "document" && target != "html" {
		return
	}
	if x.clock.Now().Sub(x.startedAt) < x.cfg.MinPageTime {
		return
	}
	if len(x.buf) < 2 {
		return
	}

	prev := x.buf[len(x.buf)-2]
	last := x.buf[len(x.buf)-1]
	velocity := prev.Y - last.Y // px per sample, positive = upward
	if velocity <= 0 {
		return
	}
	projected := last.Y - velocity
	if projected > x.cfg.Sensitivity {
		return
	}

	x.state = StateFired
	x.buf = nil // stop accumulating; the signal persists for the session
	x.publish(engine.TriggerExitIntent, engine.Signal{
		Triggered: true,
		FiredAt:   x.clock.Now(),
		Velocity:  float64(velocity),
	})
}

// Reset returns an armed or fired detector to idle and clears its buffer.
func (x *ExitIntent) Reset() {
	x.state = StateIdle
	x.buf = x.buf[:0]
}
