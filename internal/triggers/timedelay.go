package triggers

import (
	"time"

	"github.com/popgate/popgate/internal/engine"
)

// TimeDelayConfig tunes the time-delay source.
type TimeDelayConfig struct {
	// Delay is the active (page visible) time that must elapse before
	// firing. Default 5s.
	Delay time.Duration
}

// TimeDelay fires once after the configured amount of active time. The
// countdown pauses while the page is hidden, so only time the visitor
// could actually see the page counts.
type TimeDelay struct {
	cfg     TimeDelayConfig
	clock   Clock
	publish engine.PublishFunc

	state        State
	timer        Timer
	startedAt    time.Time
	segmentStart time.Time     // start of the current visible segment
	activeAccum  time.Duration // active time from completed segments
	hidden       bool
}

// NewTimeDelay creates an idle source.
func NewTimeDelay(cfg TimeDelayConfig, clock Clock, publish engine.PublishFunc) *TimeDelay {
	if cfg.Delay == 0 {
		cfg.Delay = 5 * time.Second
	}
	if clock == nil {
		clock = RealClock()
	}
	return &TimeDelay{cfg: cfg, clock: clock, publish: publish, state: StateIdle}
}

// Start arms the source and begins the countdown.
func (t *TimeDelay) Start() {
	if t.state != StateIdle {
		return
	}
	t.state = StateArmed
	now := t.clock.Now()
	t.startedAt = now
	t.segmentStart = now
	t.timer = t.clock.AfterFunc(t.cfg.Delay, t.fire)
}

// State returns the current lifecycle phase.
func (t *TimeDelay) State() State { return t.state }

// PageHidden pauses the countdown.
func (t *TimeDelay) PageHidden() {
	if t.state != StateArmed || t.hidden {
		return
	}
	t.hidden = true
	t.activeAccum += t.clock.Now().Sub(t.segmentStart)
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// PageVisible resumes the countdown with the remaining active time.
func (t *TimeDelay) PageVisible() {
	if t.state != StateArmed || !t.hidden {
		return
	}
	t.hidden = false
	t.segmentStart = t.clock.Now()
	t.timer = t.clock.AfterFunc(t.cfg.Delay-t.activeAccum, t.fire)
}

// Elapsed is wall time since Start.
func (t *TimeDelay) Elapsed() time.Duration {
	if t.startedAt.IsZero() {
		return 0
	}
	return t.clock.Now().Sub(t.startedAt)
}

// ActiveElapsed is accumulated page-visible time since Start.
func (t *TimeDelay) ActiveElapsed() time.Duration {
	active := t.activeAccum
	if t.state == StateArmed && !t.hidden {
		active += t.clock.Now().Sub(t.segmentStart)
	}
	return active
}

// Remaining is the active time left before firing; zero once fired.
func (t *TimeDelay) Remaining() time.Duration {
	if t.state == StateFired {
		return 0
	}
	rem := t.cfg.Delay - t.ActiveElapsed()
	if rem < 0 {
		rem = 0
	}
	return rem
}

func (t *TimeDelay) fire() {
	if t.state != StateArmed || t.hidden {
		return
	}
	t.activeAccum += t.clock.Now().Sub(t.segmentStart)
	t.state = StateFired
	t.timer = nil
	t.publish(engine.TriggerTimeDelay, engine.Signal{
		Triggered: true,
		FiredAt:   t.clock.Now(),
		Delay:     t.cfg.Delay,
	})
}

// Stop cancels the pending timer, idempotently.
func (t *TimeDelay) Stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.state == StateArmed {
		t.state = StateIdle
	}
}
