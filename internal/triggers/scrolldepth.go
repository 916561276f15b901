package triggers

import (
	"slices"
	"time"

	"github.com/popgate/popgate/internal/engine"
)

// ScrollDepthConfig tunes the scroll-depth tracker.
type ScrollDepthConfig struct {
	// Thresholds are the depth percentages that each fire their own signal.
	// Default [25, 50, 75, 100].
	Thresholds []int
	// IncludeViewport counts the visible viewport as scrolled-past content.
	IncludeViewport bool
	// Throttle drops samples arriving closer together than this. Default 100ms.
	Throttle time.Duration
	// TrackMetrics enables velocity, direction-change and engagement
	// metrics computed from a trailing sample window.
	TrackMetrics bool
	// MetricsWindow bounds the trailing sample window. Default 10.
	MetricsWindow int
}

type scrollSample struct {
	top int
	at  time.Time
}

// ScrollDepth observes throttled scroll and resize samples and fires a
// progressive signal for each threshold newly crossed. The crossed set only
// grows; a threshold fires exactly once.
type ScrollDepth struct {
	cfg     ScrollDepthConfig
	clock   Clock
	publish engine.PublishFunc

	state      State
	startedAt  time.Time
	lastSample time.Time
	crossed    map[int]bool
	window     []scrollSample
	lastDelta  int
	dirChanges int
}

// NewScrollDepth creates an idle tracker.
func NewScrollDepth(cfg ScrollDepthConfig, clock Clock, publish engine.PublishFunc) *ScrollDepth {
	if len(cfg.Thresholds) == 0 {
		cfg.Thresholds = []int{25, 50, 75, 100}
	}
	cfg.Thresholds = slices.Clone(cfg.Thresholds)
	slices.Sort(cfg.Thresholds)
	if cfg.Throttle == 0 {
		cfg.Throttle = 100 * time.Millisecond
	}
	if cfg.MetricsWindow == 0 {
		cfg.MetricsWindow = 10
	}
	if clock == nil {
		clock = RealClock()
	}
	return &ScrollDepth{
		cfg:     cfg,
		clock:   clock,
		publish: publish,
		state:   StateIdle,
		crossed: make(map[int]bool),
	}
}

// Start arms the tracker.
func (s *ScrollDepth) Start() {
	if s.state != StateIdle {
		return
	}
	s.state = StateArmed
	s.startedAt = s.clock.Now()
}

// State returns the current lifecycle phase. Unlike one-shot sources the
// tracker keeps observing after firing; fired means at least one threshold
// has been crossed.
func (s *ScrollDepth) State() State { return s.state }

// Crossed returns the sorted crossed-threshold set.
func (s *ScrollDepth) Crossed() []int {
	out := make([]int, 0, len(s.crossed))
	for t := range s.crossed {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Observe handles one scroll or resize sample. Samples inside the throttle
// interval are dropped. Each newly crossed threshold publishes its own
// signal, in ascending order.
func (s *ScrollDepth) Observe(scrollTop, viewportHeight, docHeight int) {
	if s.state == StateIdle {
		return
	}
	now := s.clock.Now()
	if !s.lastSample.IsZero() && now.Sub(s.lastSample) < s.cfg.Throttle {
		return
	}
	s.lastSample = now

	if s.cfg.TrackMetrics {
		s.track(scrollTop, now)
	}

	pct := s.percent(scrollTop, viewportHeight, docHeight)
	for _, threshold := range s.cfg.Thresholds {
		if pct < threshold || s.crossed[threshold] {
			continue
		}
		s.crossed[threshold] = true
		s.state = StateFired
		sig := engine.Signal{
			Triggered:  true,
			FiredAt:    now,
			Threshold:  threshold,
			Thresholds: s.Crossed(),
		}
		if s.cfg.TrackMetrics {
			sig.Velocity = s.velocity()
			sig.DirectionChanges = s.dirChanges
			sig.Engagement = s.engagement(now)
		}
		s.publish(engine.TriggerScrollDepth, sig)
	}
}

// percent computes scrolled depth 0..100. Viewport-inclusive counts the
// visible area as seen content; exclusive measures scroll offset against
// the scrollable range.
func (s *ScrollDepth) percent(scrollTop, viewportHeight, docHeight int) int {
	if docHeight <= 0 {
		return 100
	}
	var pct int
	if s.cfg.IncludeViewport {
		pct = (scrollTop + viewportHeight) * 100 / docHeight
	} else {
		scrollable := docHeight - viewportHeight
		if scrollable <= 0 {
			return 100
		}
		pct = scrollTop * 100 / scrollable
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

func (s *ScrollDepth) track(scrollTop int, now time.Time) {
	if len(s.window) > 0 {
		delta := scrollTop - s.window[len(s.window)-1].top
		if delta != 0 {
			if s.lastDelta != 0 && (delta > 0) != (s.lastDelta > 0) {
				s.dirChanges++
			}
			s.lastDelta = delta
		}
	}
	s.window = append(s.window, scrollSample{top: scrollTop, at: now})
	if len(s.window) > s.cfg.MetricsWindow {
		s.window = s.window[len(s.window)-s.cfg.MetricsWindow:]
	}
}

// velocity is the mean speed across the trailing window, px/s.
func (s *ScrollDepth) velocity() float64 {
	if len(s.window) < 2 {
		return 0
	}
	first := s.window[0]
	last := s.window[len(s.window)-1]
	dt := last.at.Sub(first.at).Seconds()
	if dt <= 0 {
		return 0
	}
	dist := last.top - first.top
	if dist < 0 {
		dist = -dist
	}
	return float64(dist) / dt
}

// engagement blends depth coverage with dwell time into a 0..1 score.
func (s *ScrollDepth) engagement(now time.Time) float64 {
	depth := float64(len(s.crossed)) / float64(len(s.cfg.Thresholds))
	dwell := now.Sub(s.startedAt).Seconds() / 30
	if dwell > 1 {
		dwell = 1
	}
	return 0.6*depth + 0.4*dwell
}

// Reset returns the tracker to idle and clears the crossed set.
func (s *ScrollDepth) Reset() {
	s.state = StateIdle
	s.crossed = make(map[int]bool)
	s.window = nil
	s.lastSample = time.Time{}
	s.lastDelta = 0
	s.dirChanges = 0
}
