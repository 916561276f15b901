package triggers_test

import (
	"testing"
	"time"

	"github.com/popgate/popgate/internal/engine"
	"github.com/popgate/popgate/internal/triggers"
)

type published struct {
	name string
	sig  engine.Signal
}

func recorder() (*[]published, engine.PublishFunc) {
	var got []published
	return &got, func(name string, sig engine.Signal) {
		got = append(got, published{name: name, sig: sig})
	}
}

func testStart() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestExitIntent_UpwardLeaveAtTopFires(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	x := triggers.NewExitIntent(triggers.ExitIntentConfig{}, clock, publish)

	x.Start(false)
	x.ObservePointer(400, 200)
	x.ObservePointer(400, 5)
	x.PointerLeave("document")

	if len(*got) != 1 {
		t.Fatalf("expected one signal, got %d", len(*got))
	}
	sig := (*got)[0]
	if sig.name != engine.TriggerExitIntent || !sig.sig.Triggered {
		t.Errorf("unexpected signal %+v", sig)
	}
	if sig.sig.Velocity != 195 {
		t.Errorf("expected upward velocity 195, got %v", sig.sig.Velocity)
	}
	if x.State() != triggers.StateFired {
		t.Errorf("expected fired state, got %v", x.State())
	}
}

func TestExitIntent_DownwardMovementNeverFires(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	x := triggers.NewExitIntent(triggers.ExitIntentConfig{}, clock, publish)

	x.Start(false)
	x.ObservePointer(400, 5)
	x.ObservePointer(400, 200)
	x.PointerLeave("document")

	if len(*got) != 0 {
		t.Errorf("downward movement must not fire, got %v", *got)
	}
	if x.State() != triggers.StateArmed {
		t.Errorf("detector must stay armed, got %v", x.State())
	}
}

func TestExitIntent_SlowUpwardOutsideSensitivityBand(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	x := triggers.NewExitIntent(triggers.ExitIntentConfig{Sensitivity: 20}, clock, publish)

	x.Start(false)
	x.ObservePointer(400, 300)
	x.ObservePointer(400, 290)
	x.PointerLeave("document")

	// Velocity 10 from y=290 projects to 280, far from the top edge.
	if len(*got) != 0 {
		t.Errorf("slow drift must not count as exit intent, got %v", *got)
	}
}

func TestExitIntent_OnlyDocumentRootLeaveCounts(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	x := triggers.NewExitIntent(triggers.ExitIntentConfig{}, clock, publish)

	x.Start(false)
	x.ObservePointer(400, 200)
	x.ObservePointer(400, 5)
	x.PointerLeave("div")
	if len(*got) != 0 {
		t.Fatalf("leaving an inner element must not fire, got %v", *got)
	}

	x.PointerLeave("html")
	if len(*got) != 1 {
		t.Errorf("leaving the html root must fire, got %d signals", len(*got))
	}
}

func TestExitIntent_MinPageTimeGate(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	x := triggers.NewExitIntent(triggers.ExitIntentConfig{MinPageTime: 3 * time.Second}, clock, publish)

	x.Start(false)
	x.ObservePointer(400, 200)
	x.ObservePointer(400, 5)
	x.PointerLeave("document")
	if len(*got) != 0 {
		t.Fatal("a leave before the minimum page age must not fire")
	}

	clock.Advance(3 * time.Second)
	x.PointerLeave("document")
	if len(*got) != 1 {
		t.Errorf("expected fire after the minimum page age, got %d signals", len(*got))
	}
}

func TestExitIntent_NeedsTwoSamples(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	x := triggers.NewExitIntent(triggers.ExitIntentConfig{}, clock, publish)

	x.Start(false)
	x.ObservePointer(400, 5)
	x.PointerLeave("document")

	if len(*got) != 0 {
		t.Errorf("a single sample has no trajectory, got %v", *got)
	}
}

func TestExitIntent_FiresOnce(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	x := triggers.NewExitIntent(triggers.ExitIntentConfig{}, clock, publish)

	x.Start(false)
	x.ObservePointer(400, 200)
	x.ObservePointer(400, 5)
	x.PointerLeave("document")
	x.ObservePointer(400, 200)
	x.ObservePointer(400, 5)
	x.PointerLeave("document")

	if len(*got) != 1 {
		t.Errorf("a fired detector must not fire again, got %d signals", len(*got))
	}
}

func TestExitIntent_DisabledOnMobile(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	x := triggers.NewExitIntent(triggers.ExitIntentConfig{DisableOnMobile: true}, clock, publish)

	x.Start(true)
	x.ObservePointer(400, 200)
	x.ObservePointer(400, 5)
	x.PointerLeave("document")

	if len(*got) != 0 {
		t.Errorf("mobile sessions must not fire when disabled, got %v", *got)
	}
}

func TestExitIntent_ResetRearms(t *testing.T) {
	clock := triggers.NewFakeClock(testStart())
	got, publish := recorder()
	x := triggers.NewExitIntent(triggers.ExitIntentConfig{}, clock, publish)

	x.Start(false)
	x.ObservePointer(400, 200)
	x.ObservePointer(400, 5)
	x.PointerLeave("document")

	x.Reset()
	if x.State() != triggers.StateIdle {
		t.Fatalf("reset must return to idle, got %v", x.State())
	}
	x.Start(false)
	x.ObservePointer(400, 200)
	x.ObservePointer(400, 5)
	x.PointerLeave("document")

	if len(*got) != 2 {
		t.Errorf("a reset detector fires again, got %d signals", len(*got))
	}
}
