package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/popgate/popgate/internal/engine"
	"github.com/popgate/popgate/internal/frequency"
	"github.com/popgate/popgate/internal/store"
	"github.com/popgate/popgate/internal/triggers"
)

// session hosts one visitor's engine: an orchestrator, its frequency
// ledger, and the four signal sources fed from beacon events. All access
// goes through mu; the engine itself stays single-threaded.
type session struct {
	id string
	mu sync.Mutex

	srv    *Server
	eng    *engine.Engine
	exit   *triggers.ExitIntent
	scroll *triggers.ScrollDepth
	delay  *triggers.TimeDelay
	visits *triggers.PageVisits

	pending  []engine.Decision // show=true decisions awaiting delivery
	loaded   bool
	lastSeen time.Time
}

func (s *Server) newSession(id string) (*session, error) {
	sess := &session{id: id, srv: s, lastSeen: time.Now()}

	ledger := frequency.NewLedger(sessionKV{store: s.store, sessionID: id}, frequency.WithLogger(s.log))
	sess.eng = engine.New(engine.Config{Logger: s.log, HistoryLimit: s.cfg.HistoryLimit}, ledger)
	if err := sess.eng.Init(); err != nil {
		return nil, err
	}

	exps, err := s.store.ListExperiences(context.Background())
	if err != nil {
		return nil, err
	}
	for _, exp := range exps {
		sess.eng.Register(exp.ID, exp.Engine())
	}

	// Persist every emitted decision to the audit log, best-effort, and
	// queue shown ones for delivery in the next beacon response.
	sess.eng.On(engine.EventDecision, func(payload any) {
		dec, ok := payload.(engine.Decision)
		if !ok {
			return
		}
		if dec.Show {
			sess.pending = append(sess.pending, dec)
		}
		row := &store.DecisionRow{
			ID:           dec.ID,
			SessionID:    id,
			ExperienceID: dec.ExperienceID,
			Shown:        dec.Show,
			URL:          dec.Context.URL,
			Reasons:      dec.Reasons,
			Trace:        dec.Trace,
			EvaluatedAt:  dec.EvaluatedAt,
			Duration:     dec.Duration,
		}
		if err := s.store.AppendDecision(context.Background(), row); err != nil {
			s.log.Warn("decision audit append failed", "session", id, "error", err)
		}
	})

	publish := sess.eng.Bus().Publish
	clock := triggers.RealClock()
	sess.exit = triggers.NewExitIntent(triggers.ExitIntentConfig{
		MinPageTime:     time.Second,
		DisableOnMobile: true,
	}, clock, publish)
	sess.scroll = triggers.NewScrollDepth(triggers.ScrollDepthConfig{TrackMetrics: true}, clock, publish)
	sess.delay = triggers.NewTimeDelay(triggers.TimeDelayConfig{}, clock, publish)
	sess.visits = triggers.NewPageVisits(triggers.PageVisitsConfig{
		Key: "visits:" + id,
	}, kvVisitStore{store: s.store}, clock, publish)

	return sess, nil
}

// drainPending returns and clears the queued shown decisions.
func (sess *session) drainPending() []engine.Decision {
	out := sess.pending
	sess.pending = nil
	return out
}

// close tears the session down: bus before sources, so a late timer
// callback cannot reach a dead orchestrator.
func (sess *session) close() {
	sess.eng.Destroy()
	sess.delay.Stop()
	sess.exit.Reset()
	sess.scroll.Reset()
}

// sessionKV scopes day/week frequency records per visitor session id.
type sessionKV struct {
	store     store.Store
	sessionID string
}

func (kv sessionKV) GetValue(ctx context.Context, key string) (string, bool, error) {
	return kv.store.GetValue(ctx, kv.sessionID+":"+key)
}

func (kv sessionKV) SetValue(ctx context.Context, key, value string) error {
	return kv.store.SetValue(ctx, kv.sessionID+":"+key, value)
}

// kvVisitStore adapts the persistent store to the VisitStore surface.
// Errors degrade to "not found" so visit counting never fails a beacon.
type kvVisitStore struct {
	store store.Store
}

func (kv kvVisitStore) Get(key string) (string, bool) {
	v, found, err := kv.store.GetValue(context.Background(), key)
	if err != nil {
		return "", false
	}
	return v, found
}

func (kv kvVisitStore) Set(key, value string) {
	_ = kv.store.SetValue(context.Background(), key, value)
}

// sessionRegistry tracks live sessions and evicts idle ones.
type sessionRegistry struct {
	srv   *Server
	mu    sync.Mutex
	byID  map[string]*session
	stop  chan struct{}
	doneC chan struct{}
}

func newSessionRegistry(srv *Server) *sessionRegistry {
	return &sessionRegistry{srv: srv, byID: make(map[string]*session)}
}

// acquire returns the session for id, creating one (and minting an id if
// empty) as needed.
func (r *sessionRegistry) acquire(id string) (*session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" {
		if sess, found := r.byID[id]; found {
			sess.lastSeen = time.Now()
			return sess, nil
		}
	} else {
		id = uuid.NewString()
	}
	sess, err := r.srv.newSession(id)
	if err != nil {
		return nil, err
	}
	r.byID[id] = sess
	return sess, nil
}

func (r *sessionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *sessionRegistry) startSweeper(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	r.stop = make(chan struct{})
	r.doneC = make(chan struct{})
	go func() {
		defer close(r.doneC)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweep(ttl)
			case <-r.stop:
				return
			}
		}
	}()
}

func (r *sessionRegistry) stopSweeper() {
	if r.stop != nil {
		close(r.stop)
		<-r.doneC
	}
}

func (r *sessionRegistry) sweep(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	// lastSeen is only written under the registry lock, held here.
	for id, sess := range r.byID {
		if sess.lastSeen.Before(cutoff) {
			sess.mu.Lock()
			sess.close()
			sess.mu.Unlock()
			delete(r.byID, id)
		}
	}
}
