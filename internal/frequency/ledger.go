// Package frequency is the impression ledger: it counts how often each
// experience has been shown and answers cap-reached queries over sliding
// session, day and week windows.
package frequency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Window scopes a frequency cap.
type Window string

const (
	WindowSession Window = "session"
	WindowDay     Window = "day"
	WindowWeek    Window = "week"
)

// ParseWindow validates a window name.
func ParseWindow(s string) (Window, error) {
	switch Window(s) {
	case WindowSession, WindowDay, WindowWeek:
		return Window(s), nil
	}
	return "", fmt.Errorf("invalid frequency window %q (want session, day or week)", s)
}

// pruneHorizon is how far back impression timestamps are kept. Anything
// older can never influence a day or week count.
const pruneHorizon = 7 * 24 * time.Hour

// Record is the persisted impression log for one namespaced key.
// Invariant: len(Impressions) <= Count; Count is lifetime, Impressions are
// pruned to the trailing seven days on every write.
type Record struct {
	Count          int     `json:"count"`
	LastImpression int64   `json:"lastImpression"` // epoch ms
	Impressions    []int64 `json:"impressions"`    // epoch ms
}

// KV is the persistence surface the ledger writes through. Implemented by
// the SQLite store; failures flip the ledger to an in-memory fallback.
type KV interface {
	GetValue(ctx context.Context, key string) (string, bool, error)
	SetValue(ctx context.Context, key, value string) error
}

// Ledger tracks impressions per experience. Session-window records live in
// process memory for the life of the ledger; day and week records persist
// through the KV store, best-effort.
type Ledger struct {
	kv       KV
	now      func() time.Time
	log      *slog.Logger
	session  map[string]*Record
	fallback map[string]*Record // used once kv has failed
	degraded bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock injects a clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger sets the warning logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// NewLedger creates a ledger. A nil kv starts in-memory from the outset.
func NewLedger(kv KV, opts ...Option) *Ledger {
	l := &Ledger{
		kv:       kv,
		now:      time.Now,
		log:      slog.Default(),
		session:  make(map[string]*Record),
		fallback: make(map[string]*Record),
		degraded: kv == nil,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Key builds the namespaced storage key for a window and experience id.
// The empty id is a valid, distinct key.
func Key(w Window, id string) string {
	return "freq:" + string(w) + ":" + id
}

// HasReachedCap reports whether the experience has exhausted its cap for
// the window. Session caps compare the lifetime count of the session
// record; day and week caps count impressions within the trailing 24h/7d.
func (l *Ledger) HasReachedCap(id string, max int, w Window) bool {
	rec := l.load(w, id)
	if w == WindowSession {
		return rec.Count >= max
	}
	cutoff := l.now().Add(-windowDuration(w)).UnixMilli()
	within := 0
	for _, ts := range rec.Impressions {
		if ts > cutoff {
			within++
		}
	}
	return within >= max
}

// RecordImpression increments the lifetime count, appends the current
// timestamp, prunes entries older than seven days and persists the record.
func (l *Ledger) RecordImpression(id string, w Window) {
	rec := l.load(w, id)
	nowMs := l.now().UnixMilli()
	rec.Count++
	rec.LastImpression = nowMs
	rec.Impressions = append(rec.Impressions, nowMs)
	rec.Impressions = prune(rec.Impressions, nowMs-pruneHorizon.Milliseconds())
	l.save(w, id, rec)
}

// Record returns a copy of the current record for inspection.
func (l *Ledger) Record(id string, w Window) Record {
	rec := l.load(w, id)
	out := *rec
	out.Impressions = append([]int64(nil), rec.Impressions...)
	return out
}

func (l *Ledger) load(w Window, id string) *Record {
	key := Key(w, id)
	if w == WindowSession {
		return ensure(l.session, key)
	}
	if l.degraded {
		return ensure(l.fallback, key)
	}
	raw, found, err := l.kv.GetValue(context.Background(), key)
	if err != nil {
		l.degrade(err)
		return ensure(l.fallback, key)
	}
	rec := &Record{}
	if found {
		if err := json.Unmarshal([]byte(raw), rec); err != nil {
			// A corrupt record starts over rather than failing evaluation.
			l.log.Warn("frequency record corrupt, resetting", "key", key, "error", err)
			rec = &Record{}
		}
	}
	return rec
}

func (l *Ledger) save(w Window, id string, rec *Record) {
	key := Key(w, id)
	if w == WindowSession {
		l.session[key] = rec
		return
	}
	if !l.degraded {
		raw, err := json.Marshal(rec)
		if err == nil {
			err = l.kv.SetValue(context.Background(), key, string(raw))
		}
		if err == nil {
			return
		}
		l.degrade(err)
	}
	l.fallback[key] = rec
}

// degrade switches to the in-memory store. Capping stays correct for the
// session; cross-session persistence is lost.
func (l *Ledger) degrade(err error) {
	if l.degraded {
		return
	}
	l.degraded = true
	l.log.Warn("frequency storage unavailable, falling back to in-memory ledger", "error", err)
}

func ensure(m map[string]*Record, key string) *Record {
	rec, found := m[key]
	if !found {
		rec = &Record{}
		m[key] = rec
	}
	return rec
}

func prune(impressions []int64, cutoff int64) []int64 {
	out := impressions[:0]
	for _, ts := range impressions {
		if ts >= cutoff {
			out = append(out, ts)
		}
	}
	return out
}

func windowDuration(w Window) time.Duration {
	if w == WindowWeek {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}
