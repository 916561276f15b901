package triggers_test

import (
	"testing"
	"time"

	"github.com/popgate/popgate/internal/triggers"
)

func TestScrollDepth_CrossesThresholdsAscending(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	s := triggers.NewScrollDepth(triggers.ScrollDepthConfig{}, clock, publish)

	s.Start()
	// 1460 of a 2000px scrollable range is 73%: crosses 25 and 50.
	s.Observe(1460, 800, 2800)

	if len(*got) != 2 {
		t.Fatalf("expected signals for 25 and 50, got %d", len(*got))
	}
	if (*got)[0].sig.Threshold != 25 || (*got)[1].sig.Threshold != 50 {
		t.Errorf("thresholds must fire ascending, got %d then %d",
			(*got)[0].sig.Threshold, (*got)[1].sig.Threshold)
	}
	if set := (*got)[1].sig.Thresholds; len(set) != 2 || set[0] != 25 || set[1] != 50 {
		t.Errorf("second signal must carry the full crossed set, got %v", set)
	}
	if s.State() != triggers.StateFired {
		t.Errorf("expected fired state, got %v", s.State())
	}
}

func TestScrollDepth_EachThresholdFiresOnce(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	s := triggers.NewScrollDepth(triggers.ScrollDepthConfig{}, clock, publish)

	s.Start()
	s.Observe(1460, 800, 2800) // 73%
	clock.Advance(time.Second)
	s.Observe(600, 800, 2800) // scrolled back up to 30%
	clock.Advance(time.Second)
	s.Observe(1460, 800, 2800) // back down to 73%

	if len(*got) != 2 {
		t.Errorf("re-crossing must not re-fire, got %d signals", len(*got))
	}
	if crossed := s.Crossed(); len(crossed) != 2 || crossed[0] != 25 || crossed[1] != 50 {
		t.Errorf("crossed set must only grow, got %v", crossed)
	}
}

func TestScrollDepth_ThrottleDropsRapidSamples(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	s := triggers.NewScrollDepth(triggers.ScrollDepthConfig{}, clock, publish)

	s.Start()
	s.Observe(600, 800, 2800) // 30%, crosses 25
	clock.Advance(50 * time.Millisecond)
	s.Observe(1100, 800, 2800) // inside the throttle window, dropped
	clock.Advance(100 * time.Millisecond)
	s.Observe(1100, 800, 2800) // 55%, crosses 50

	if len(*got) != 2 {
		t.Fatalf("expected 2 signals with the throttled sample dropped, got %d", len(*got))
	}
	if (*got)[1].sig.Threshold != 50 {
		t.Errorf("expected 50%% after the throttle interval, got %d", (*got)[1].sig.Threshold)
	}
}

func TestScrollDepth_ShortDocumentIsFullyScrolled(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	s := triggers.NewScrollDepth(triggers.ScrollDepthConfig{}, clock, publish)

	s.Start()
	// Document shorter than the viewport: nothing to scroll, depth is 100.
	s.Observe(0, 800, 600)

	if len(*got) != 4 {
		t.Errorf("a short document crosses every threshold, got %d signals", len(*got))
	}
}

func TestScrollDepth_ViewportInclusivePercent(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	s := triggers.NewScrollDepth(triggers.ScrollDepthConfig{IncludeViewport: true}, clock, publish)

	s.Start()
	// (0 + 800) / 3200 = 25% seen before any scrolling.
	s.Observe(0, 800, 3200)

	if len(*got) != 1 || (*got)[0].sig.Threshold != 25 {
		t.Errorf("viewport-inclusive depth counts the visible area, got %v", *got)
	}
}

func TestScrollDepth_CustomThresholdsSorted(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	s := triggers.NewScrollDepth(triggers.ScrollDepthConfig{Thresholds: []int{90, 10}}, clock, publish)

	s.Start()
	s.Observe(2000, 800, 2800) // 100%

	if len(*got) != 2 || (*got)[0].sig.Threshold != 10 || (*got)[1].sig.Threshold != 90 {
		t.Errorf("custom thresholds must fire in ascending order, got %v", *got)
	}
}

func TestScrollDepth_MetricsTracked(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	s := triggers.NewScrollDepth(triggers.ScrollDepthConfig{
		Thresholds:   []int{80},
		TrackMetrics: true,
	}, clock, publish)

	s.Start()
	s.Observe(200, 800, 2800)
	clock.Advance(time.Second)
	s.Observe(100, 800, 2800) // scrolled back up
	clock.Advance(time.Second)
	s.Observe(1700, 800, 2800) // 85%, crosses 80

	if len(*got) != 1 {
		t.Fatalf("expected one signal, got %d", len(*got))
	}
	sig := (*got)[0].sig
	// 1500px net over 2s across the trailing window.
	if sig.Velocity != 750 {
		t.Errorf("expected velocity 750 px/s, got %v", sig.Velocity)
	}
	if sig.DirectionChanges != 1 {
		t.Errorf("expected 1 direction change, got %d", sig.DirectionChanges)
	}
	if sig.Engagement <= 0 || sig.Engagement > 1 {
		t.Errorf("engagement must be a 0..1 score, got %v", sig.Engagement)
	}
}

func TestScrollDepth_IdleIgnoresSamples(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	s := triggers.NewScrollDepth(triggers.ScrollDepthConfig{}, clock, publish)

	s.Observe(2000, 800, 2800)
	if len(*got) != 0 {
		t.Errorf("an idle tracker must ignore samples, got %v", *got)
	}
	if s.State() != triggers.StateIdle {
		t.Errorf("expected idle, got %v", s.State())
	}
}
