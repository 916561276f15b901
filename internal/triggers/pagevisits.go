package triggers

import (
	"encoding/json"
	"time"

	"github.com/popgate/popgate/internal/engine"
)

// VisitStore persists the lifetime visit counter independently of the
// frequency ledger. Implementations are best-effort; a missing value is a
// first visit.
type VisitStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// MemoryVisitStore is the in-process fallback VisitStore.
type MemoryVisitStore struct {
	values map[string]string
}

func NewMemoryVisitStore() *MemoryVisitStore {
	return &MemoryVisitStore{values: make(map[string]string)}
}

func (m *MemoryVisitStore) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryVisitStore) Set(key, value string) {
	m.values[key] = value
}

// PageVisitsConfig tunes the page-visit counter.
type PageVisitsConfig struct {
	// Key namespaces the persisted lifetime counter. Default "popgate:visits".
	Key string
	// DoNotTrack disables counting entirely when the visitor opted out.
	DoNotTrack bool
	// Expiration resets the lifetime counter when the first recorded visit
	// is older than this horizon. Zero means never.
	Expiration time.Duration
}

type visitRecord struct {
	Count      int   `json:"count"`
	FirstVisit int64 `json:"firstVisit"` // epoch ms
}

// PageVisits counts page loads: a session counter held in memory and a
// lifetime counter persisted through the VisitStore. A visit is a first
// visit iff the lifetime count was zero before the increment.
type PageVisits struct {
	cfg     PageVisitsConfig
	clock   Clock
	publish engine.PublishFunc
	store   VisitStore

	state   State
	session int
}

// NewPageVisits creates an idle counter. A nil store counts in memory only.
func NewPageVisits(cfg PageVisitsConfig, store VisitStore, clock Clock, publish engine.PublishFunc) *PageVisits {
	if cfg.Key == "" {
		cfg.Key = "popgate:visits"
	}
	if store == nil {
		store = NewMemoryVisitStore()
	}
	if clock == nil {
		clock = RealClock()
	}
	return &PageVisits{cfg: cfg, clock: clock, publish: publish, store: store, state: StateIdle}
}

// State returns the current lifecycle phase.
func (p *PageVisits) State() State { return p.state }

// SessionCount returns visits observed by this instance.
func (p *PageVisits) SessionCount() int { return p.session }

// Observe records one page load and publishes the updated counters. With
// do-not-track set the source stays idle and publishes nothing.
func (p *PageVisits) Observe() {
	if p.cfg.DoNotTrack {
		return
	}
	now := p.clock.Now()
	p.session++

	rec := p.loadLifetime()
	if p.cfg.Expiration > 0 && rec.FirstVisit > 0 {
		age := now.Sub(time.UnixMilli(rec.FirstVisit))
		if age > p.cfg.Expiration {
			rec = visitRecord{}
		}
	}
	firstVisit := rec.Count == 0
	rec.Count++
	if rec.FirstVisit == 0 {
		rec.FirstVisit = now.UnixMilli()
	}
	p.saveLifetime(rec)

	p.state = StateFired
	p.publish(engine.TriggerPageVisits, engine.Signal{
		Triggered:     true,
		FiredAt:       now,
		VisitCount:    p.session,
		LifetimeCount: rec.Count,
		FirstVisit:    firstVisit,
	})
}

func (p *PageVisits) loadLifetime() visitRecord {
	raw, found := p.store.Get(p.cfg.Key)
	if !found {
		return visitRecord{}
	}
	var rec visitRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return visitRecord{}
	}
	return rec
}

func (p *PageVisits) saveLifetime(rec visitRecord) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	p.store.Set(p.cfg.Key, string(raw))
}
