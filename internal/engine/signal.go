package engine

import (
	"slices"
	"time"
)

// Signal is the cumulative state of one trigger within a session. One-shot
// triggers latch Triggered; scroll-depth's Thresholds set only grows.
type Signal struct {
	Triggered bool      `json:"triggered"`
	FiredAt   time.Time `json:"firedAt,omitempty"`

	// Scroll-depth: last crossed threshold and the full crossed set.
	Threshold  int   `json:"threshold,omitempty"`
	Thresholds []int `json:"thresholds,omitempty"`

	// Scroll-depth advanced metrics.
	Velocity         float64 `json:"velocity,omitempty"`
	DirectionChanges int     `json:"directionChanges,omitempty"`
	Engagement       float64 `json:"engagement,omitempty"`

	// Page-visits counters.
	VisitCount    int  `json:"visitCount,omitempty"`
	LifetimeCount int  `json:"lifetimeCount,omitempty"`
	FirstVisit    bool `json:"firstVisit,omitempty"`

	// Time-delay: the configured active delay that elapsed.
	Delay time.Duration `json:"delay,omitempty"`
}

// PublishFunc is how signal sources hand a signal to the bus.
type PublishFunc func(name string, sig Signal)

// mergeSignal folds an incoming signal into the accumulated one. Triggered
// latches true, FiredAt keeps the first firing, the threshold set unions,
// counters never move backwards, and point-in-time metrics overwrite.
func mergeSignal(old, in Signal) Signal {
	out := old
	if in.Triggered {
		out.Triggered = true
	}
	if out.FiredAt.IsZero() {
		out.FiredAt = in.FiredAt
	}
	if in.Threshold != 0 {
		out.Threshold = in.Threshold
	}
	if len(in.Thresholds) > 0 {
		out.Thresholds = unionSorted(out.Thresholds, in.Thresholds)
	}
	if in.Velocity != 0 {
		out.Velocity = in.Velocity
	}
	if in.DirectionChanges > out.DirectionChanges {
		out.DirectionChanges = in.DirectionChanges
	}
	if in.Engagement != 0 {
		out.Engagement = in.Engagement
	}
	if in.VisitCount > out.VisitCount {
		out.VisitCount = in.VisitCount
	}
	if in.LifetimeCount > out.LifetimeCount {
		out.LifetimeCount = in.LifetimeCount
	}
	if in.FirstVisit {
		out.FirstVisit = true
	}
	if in.Delay != 0 {
		out.Delay = in.Delay
	}
	return out
}

func unionSorted(a, b []int) []int {
	out := slices.Clone(a)
	for _, v := range b {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}

// cloneSignal returns a value copy with its own threshold slice, so context
// snapshots cannot alias the orchestrator's cumulative state.
func cloneSignal(s Signal) Signal {
	s.Thresholds = slices.Clone(s.Thresholds)
	return s
}
