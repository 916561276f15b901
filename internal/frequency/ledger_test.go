package frequency_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/popgate/popgate/internal/frequency"
)

type mapKV struct {
	data    map[string]string
	getErr  error
	setErr  error
	setKeys []string
}

func newMapKV() *mapKV {
	return &mapKV{data: make(map[string]string)}
}

func (kv *mapKV) GetValue(ctx context.Context, key string) (string, bool, error) {
	if kv.getErr != nil {
		return "", false, kv.getErr
	}
	v, found := kv.data[key]
	return v, found, nil
}

func (kv *mapKV) SetValue(ctx context.Context, key, value string) error {
	if kv.setErr != nil {
		return kv.setErr
	}
	kv.data[key] = value
	kv.setKeys = append(kv.setKeys, key)
	return nil
}

func advancingClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func TestSessionWindow_CountsLifetime(t *testing.T) {
	l := frequency.NewLedger(nil)

	if l.HasReachedCap("promo", 2, frequency.WindowSession) {
		t.Error("fresh ledger must not be capped")
	}
	l.RecordImpression("promo", frequency.WindowSession)
	if l.HasReachedCap("promo", 2, frequency.WindowSession) {
		t.Error("one impression must not reach a cap of 2")
	}
	l.RecordImpression("promo", frequency.WindowSession)
	if !l.HasReachedCap("promo", 2, frequency.WindowSession) {
		t.Error("two impressions must reach a cap of 2")
	}
}

func TestDayWindow_CapBoundary(t *testing.T) {
	now, _ := advancingClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	l := frequency.NewLedger(newMapKV(), frequency.WithClock(now))

	const k = 3
	for i := 0; i < k; i++ {
		l.RecordImpression("promo", frequency.WindowDay)
	}
	if !l.HasReachedCap("promo", k, frequency.WindowDay) {
		t.Errorf("cap of %d must be reached after %d impressions", k, k)
	}
	if l.HasReachedCap("promo", k+1, frequency.WindowDay) {
		t.Errorf("cap of %d must not be reached after %d impressions", k+1, k)
	}
}

func TestDayWindow_SlidesPastOldImpressions(t *testing.T) {
	now, advance := advancingClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	l := frequency.NewLedger(newMapKV(), frequency.WithClock(now))

	l.RecordImpression("promo", frequency.WindowDay)
	if !l.HasReachedCap("promo", 1, frequency.WindowDay) {
		t.Fatal("cap must be reached right after the impression")
	}

	advance(25 * time.Hour)
	if l.HasReachedCap("promo", 1, frequency.WindowDay) {
		t.Error("an impression 25h old must fall out of the day window")
	}
}

func TestWeekWindow_SlidesAtSevenDays(t *testing.T) {
	now, advance := advancingClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	l := frequency.NewLedger(newMapKV(), frequency.WithClock(now))

	l.RecordImpression("promo", frequency.WindowWeek)
	advance(6 * 24 * time.Hour)
	if !l.HasReachedCap("promo", 1, frequency.WindowWeek) {
		t.Error("a six-day-old impression is still inside the week window")
	}
	advance(2 * 24 * time.Hour)
	if l.HasReachedCap("promo", 1, frequency.WindowWeek) {
		t.Error("an eight-day-old impression is outside the week window")
	}
}

func TestRecordImpression_PrunesOldTimestamps(t *testing.T) {
	now, advance := advancingClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	l := frequency.NewLedger(newMapKV(), frequency.WithClock(now))

	l.RecordImpression("promo", frequency.WindowWeek)
	advance(8 * 24 * time.Hour)
	l.RecordImpression("promo", frequency.WindowWeek)

	rec := l.Record("promo", frequency.WindowWeek)
	if rec.Count != 2 {
		t.Errorf("lifetime count must survive pruning, got %d", rec.Count)
	}
	if len(rec.Impressions) != 1 {
		t.Errorf("expected the stale timestamp pruned, got %d entries", len(rec.Impressions))
	}
}

func TestPersistentWindows_RoundTripThroughKV(t *testing.T) {
	kv := newMapKV()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	l1 := frequency.NewLedger(kv, frequency.WithClock(func() time.Time { return now }))
	l1.RecordImpression("promo", frequency.WindowDay)

	// A fresh ledger over the same store sees the impression.
	l2 := frequency.NewLedger(kv, frequency.WithClock(func() time.Time { return now }))
	if !l2.HasReachedCap("promo", 1, frequency.WindowDay) {
		t.Error("day-window impressions must persist across ledgers")
	}

	// Session impressions never hit the store.
	l1.RecordImpression("promo", frequency.WindowSession)
	for _, key := range kv.setKeys {
		if key == frequency.Key(frequency.WindowSession, "promo") {
			t.Error("session records must stay in process memory")
		}
	}
}

func TestKVFailure_FallsBackInMemory(t *testing.T) {
	kv := newMapKV()
	kv.getErr = errors.New("disk gone")
	l := frequency.NewLedger(kv)

	// Capping keeps working through the in-memory fallback.
	l.RecordImpression("promo", frequency.WindowDay)
	if !l.HasReachedCap("promo", 1, frequency.WindowDay) {
		t.Error("fallback ledger must keep counting after a storage failure")
	}

	// Once degraded the store is never retried, even if it recovers.
	kv.getErr = nil
	if !l.HasReachedCap("promo", 1, frequency.WindowDay) {
		t.Error("degraded ledger must keep serving from memory")
	}
	if len(kv.setKeys) != 0 {
		t.Errorf("degraded ledger must not write to the store, wrote %v", kv.setKeys)
	}
}

func TestKey_EmptyIDIsDistinct(t *testing.T) {
	if got := frequency.Key(frequency.WindowDay, ""); got != "freq:day:" {
		t.Errorf("expected the empty id to form its own key, got %q", got)
	}
	if frequency.Key(frequency.WindowDay, "") == frequency.Key(frequency.WindowWeek, "") {
		t.Error("windows must namespace keys even for the empty id")
	}

	l := frequency.NewLedger(nil)
	l.RecordImpression("", frequency.WindowSession)
	if !l.HasReachedCap("", 1, frequency.WindowSession) {
		t.Error("the empty id must be a valid ledger key")
	}
	if l.HasReachedCap("promo", 1, frequency.WindowSession) {
		t.Error("the empty id must not collide with real ids")
	}
}

func TestParseWindow(t *testing.T) {
	for _, valid := range []string{"session", "day", "week"} {
		if _, err := frequency.ParseWindow(valid); err != nil {
			t.Errorf("ParseWindow(%q) returned error: %v", valid, err)
		}
	}
	if _, err := frequency.ParseWindow("month"); err == nil {
		t.Error("ParseWindow must reject unknown windows")
	}
}
