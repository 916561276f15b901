package triggers_test

import (
	"testing"
	"time"

	"github.com/popgate/popgate/internal/engine"
	"github.com/popgate/popgate/internal/triggers"
)

func TestTimeDelay_FiresAfterDelay(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	d := triggers.NewTimeDelay(triggers.TimeDelayConfig{Delay: 5 * time.Second}, clock, publish)

	d.Start()
	clock.Advance(4 * time.Second)
	if len(*got) != 0 {
		t.Fatal("must not fire before the delay elapses")
	}
	clock.Advance(time.Second)

	if len(*got) != 1 {
		t.Fatalf("expected one signal, got %d", len(*got))
	}
	sig := (*got)[0]
	if sig.name != engine.TriggerTimeDelay || sig.sig.Delay != 5*time.Second {
		t.Errorf("unexpected signal %+v", sig)
	}
	if d.State() != triggers.StateFired {
		t.Errorf("expected fired state, got %v", d.State())
	}
	if d.Remaining() != 0 {
		t.Errorf("remaining must be zero once fired, got %v", d.Remaining())
	}
}

func TestTimeDelay_HiddenTimeDoesNotCount(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	d := triggers.NewTimeDelay(triggers.TimeDelayConfig{Delay: 5 * time.Second}, clock, publish)

	d.Start()
	clock.Advance(2 * time.Second)
	d.PageHidden()
	clock.Advance(time.Hour)
	if len(*got) != 0 {
		t.Fatal("hidden time must not advance the countdown")
	}
	if d.ActiveElapsed() != 2*time.Second {
		t.Errorf("expected 2s of active time, got %v", d.ActiveElapsed())
	}

	d.PageVisible()
	clock.Advance(2 * time.Second)
	if len(*got) != 0 {
		t.Fatal("only 4s of active time has passed")
	}
	if d.Remaining() != time.Second {
		t.Errorf("expected 1s remaining, got %v", d.Remaining())
	}

	clock.Advance(time.Second)
	if len(*got) != 1 {
		t.Errorf("expected fire after 5s of active time, got %d signals", len(*got))
	}
	if d.Elapsed() != time.Hour+5*time.Second {
		t.Errorf("wall elapsed should include hidden time, got %v", d.Elapsed())
	}
}

func TestTimeDelay_DoubleHiddenVisibleIsIdempotent(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	d := triggers.NewTimeDelay(triggers.TimeDelayConfig{Delay: 3 * time.Second}, clock, publish)

	d.Start()
	d.PageHidden()
	d.PageHidden()
	d.PageVisible()
	d.PageVisible()
	clock.Advance(3 * time.Second)

	if len(*got) != 1 {
		t.Errorf("expected exactly one fire, got %d", len(*got))
	}
}

func TestTimeDelay_StopCancels(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	d := triggers.NewTimeDelay(triggers.TimeDelayConfig{Delay: 3 * time.Second}, clock, publish)

	d.Start()
	d.Stop()
	clock.Advance(time.Minute)

	if len(*got) != 0 {
		t.Errorf("a stopped source must not fire, got %v", *got)
	}
	if d.State() != triggers.StateIdle {
		t.Errorf("stop must return to idle, got %v", d.State())
	}
	d.Stop() // idempotent
}

func TestTimeDelay_DefaultDelay(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	d := triggers.NewTimeDelay(triggers.TimeDelayConfig{}, clock, publish)

	d.Start()
	clock.Advance(5 * time.Second)

	if len(*got) != 1 || (*got)[0].sig.Delay != 5*time.Second {
		t.Errorf("expected the 5s default delay, got %v", *got)
	}
}
