// Package engine is the decision-evaluation core: it decides whether a
// registered experience should be shown to the current visitor right now,
// and records why. Evaluation is synchronous and single-threaded; an Engine
// must not be shared across goroutines without external locking.
package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/popgate/popgate/internal/frequency"
)

// Ledger answers frequency-cap queries and records impressions. It is a
// gate applied after a rule match; it never participates in matching.
type Ledger interface {
	HasReachedCap(id string, max int, window frequency.Window) bool
	RecordImpression(id string, window frequency.Window)
}

// Config holds engine construction options.
type Config struct {
	// Location is the default context URL when an evaluation supplies none.
	Location string
	// HistoryLimit bounds the decision history. Defaults to 100.
	HistoryLimit int
	// Clock stamps contexts, decisions and trace steps. Defaults to time.Now.
	Clock func() time.Time
	// Logger receives engine warnings. Defaults to slog.Default.
	Logger *slog.Logger
}

// Snapshot is the result of State.
type Snapshot struct {
	Initialized bool
	Experiences []Experience
	Decisions   []Decision
	Config      Config
}

// Engine is the runtime orchestrator. Lifecycle: uninitialized (New) →
// initialized (Init) → destroyed (Destroy); a destroyed engine is not
// reusable, construct a fresh one.
type Engine struct {
	cfg       Config
	now       func() time.Time
	log       *slog.Logger
	ledger    Ledger
	evaluator *RuleEvaluator
	bus       *Bus
	em        emitter

	order    []string
	registry map[string]*Experience
	triggers map[string]Signal
	history  []Decision

	initialized bool
	destroyed   bool
}

// New constructs an uninitialized engine. A nil ledger disables frequency
// gating (every cap check passes).
func New(cfg Config, ledger Ledger) *Engine {
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 100
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	e := &Engine{
		cfg:       cfg,
		now:       cfg.Clock,
		log:       cfg.Logger,
		ledger:    ledger,
		evaluator: NewRuleEvaluator(cfg.Clock),
		registry:  make(map[string]*Experience),
		triggers:  make(map[string]Signal),
	}
	e.bus = &Bus{eng: e}
	return e
}

// Init transitions the engine to initialized and wires the impression
// reactor. Calling it twice, or after Destroy, is a no-op plus a warning.
func (e *Engine) Init() error {
	if e.destroyed {
		e.log.Warn("engine init after destroy ignored; construct a fresh engine")
		return nil
	}
	if e.initialized {
		e.log.Warn("engine already initialized, init ignored")
		return nil
	}
	e.initialized = true

	// Impression recording reacts to show=true decisions downstream of
	// evaluation, keeping the rule evaluator side-effect free.
	e.em.on(EventDecision, func(payload any) {
		dec, ok := payload.(Decision)
		if !ok || !dec.Show {
			return
		}
		if exp, found := e.registry[dec.ExperienceID]; found && exp.Frequency != nil && e.ledger != nil {
			e.ledger.RecordImpression(exp.ID, exp.Frequency.Per)
		}
		e.em.emit(EventImpression, dec)
	})
	return nil
}

// Bus returns the trigger event bus signal sources publish to.
func (e *Engine) Bus() *Bus {
	return e.bus
}

// SetLocation updates the default context URL, typically on navigation.
func (e *Engine) SetLocation(url string) {
	e.cfg.Location = url
}

// Register adds or overwrites an experience. Duplicate ids keep their
// original registration slot (last write wins on the definition only).
func (e *Engine) Register(id string, exp Experience) {
	if e.destroyed {
		return
	}
	exp.ID = id
	if _, exists := e.registry[id]; !exists {
		e.order = append(e.order, id)
	}
	e.registry[id] = &exp
	e.em.emit(EventRegistered, exp)
}

// Evaluate runs a single-best-match pass: experiences are tried in
// registration order and the first one that matches its targeting and is
// not suppressed by its frequency cap wins. Exactly one Decision is
// recorded and emitted.
func (e *Engine) Evaluate(partial *Context) Decision {
	start := e.now()
	ctx := e.buildContext(partial)

	var reasons []string
	var trace []TraceStep
	var winner *Experience
	evaluated := 0

	for _, id := range e.order {
		exp := e.registry[id]
		evaluated++
		matched, rs, tr := e.evaluator.Evaluate(*exp, ctx)
		reasons = append(reasons, prefixReasons(exp.ID, rs)...)
		trace = append(trace, tr...)
		if !matched {
			continue
		}
		capped, capReason, capStep := e.checkFrequency(exp)
		if capStep != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %s", exp.ID, capReason))
			trace = append(trace, *capStep)
		}
		if capped {
			continue
		}
		winner = exp
		break
	}

	dec := Decision{
		ID:                   uuid.NewString(),
		Show:                 winner != nil,
		Reasons:              reasons,
		Trace:                trace,
		Context:              ctx,
		EvaluatedAt:          start,
		Duration:             e.now().Sub(start),
		ExperiencesEvaluated: evaluated,
	}
	if winner != nil {
		dec.ExperienceID = winner.ID
		dec.Kind = winner.Kind
	}
	e.recordDecision(dec)
	e.em.emit(EventDecision, dec)
	return dec
}

// EvaluateAll runs a multi-match pass over every registered experience in
// stable priority-descending order (ties broken by registration order).
// Each experience yields one Decision; matched ones are emitted
// individually.
func (e *Engine) EvaluateAll(partial *Context) []Decision {
	ctx := e.buildContext(partial)

	decisions := make([]Decision, 0, len(e.order))
	for _, id := range e.priorityOrder() {
		exp := e.registry[id]
		dec := e.evaluateOne(exp, ctx)
		e.recordDecision(dec)
		if dec.Show {
			e.em.emit(EventDecision, dec)
		}
		decisions = append(decisions, dec)
	}
	return decisions
}

// Explain evaluates one experience against the current context with zero
// history side effects: no decision is appended, no impression recorded,
// nothing emitted. Unknown ids return nil.
func (e *Engine) Explain(id string, partial *Context) *Decision {
	exp, found := e.registry[id]
	if !found {
		return nil
	}
	ctx := e.buildContext(partial)
	dec := e.evaluateOne(exp, ctx)
	return &dec
}

// evaluateOne independently rule- and frequency-evaluates one experience.
func (e *Engine) evaluateOne(exp *Experience, ctx Context) Decision {
	start := e.now()
	matched, reasons, trace := e.evaluator.Evaluate(*exp, ctx)

	show := matched
	if matched {
		capped, capReason, capStep := e.checkFrequency(exp)
		if capStep != nil {
			reasons = append(reasons, capReason)
			trace = append(trace, *capStep)
		}
		if capped {
			show = false
		}
	}

	dec := Decision{
		ID:                   uuid.NewString(),
		Show:                 show,
		ExperienceID:         exp.ID,
		Kind:                 exp.Kind,
		Reasons:              reasons,
		Trace:                trace,
		Context:              ctx,
		EvaluatedAt:          start,
		Duration:             e.now().Sub(start),
		ExperiencesEvaluated: 1,
	}
	return dec
}

// checkFrequency gates a matched experience against its cap. The returned
// step is nil when no cap is configured.
func (e *Engine) checkFrequency(exp *Experience) (capped bool, reason string, step *TraceStep) {
	if exp.Frequency == nil || e.ledger == nil {
		return false, "", nil
	}
	start := e.now()
	capped = e.ledger.HasReachedCap(exp.ID, exp.Frequency.Max, exp.Frequency.Per)
	if capped {
		reason = fmt.Sprintf("frequency cap reached (max %d per %s)", exp.Frequency.Max, exp.Frequency.Per)
	} else {
		reason = fmt.Sprintf("within frequency cap (max %d per %s)", exp.Frequency.Max, exp.Frequency.Per)
	}
	end := e.now()
	return capped, reason, &TraceStep{
		Experience: exp.ID,
		Step:       "frequency",
		At:         start,
		Duration:   end.Sub(start),
		Input:      map[string]any{"max": exp.Frequency.Max, "window": exp.Frequency.Per},
		Output:     map[string]any{"capped": capped},
		Passed:     !capped,
	}
}

// priorityOrder returns ids sorted by priority descending, stable over
// registration order.
func (e *Engine) priorityOrder() []string {
	ids := make([]string, len(e.order))
	copy(ids, e.order)
	sort.SliceStable(ids, func(i, j int) bool {
		return e.registry[ids[i]].Priority > e.registry[ids[j]].Priority
	})
	return ids
}

// absorbSignal merges a published signal into the cumulative trigger map.
func (e *Engine) absorbSignal(name string, sig Signal) {
	e.triggers[name] = mergeSignal(e.triggers[name], sig)
}

// On subscribes a handler to an event and returns its unsubscribe function.
func (e *Engine) On(ev Event, h Handler) func() {
	return e.em.on(ev, h)
}

// State returns a defensive snapshot of the engine.
func (e *Engine) State() Snapshot {
	snap := Snapshot{
		Initialized: e.initialized,
		Experiences: make([]Experience, 0, len(e.order)),
		Decisions:   make([]Decision, len(e.history)),
		Config:      e.cfg,
	}
	for _, id := range e.order {
		snap.Experiences = append(snap.Experiences, *e.registry[id])
	}
	copy(snap.Decisions, e.history)
	return snap
}

// Destroy tears the engine down: the bus closes first so late source
// callbacks cannot reach it, then observers, registry, trigger state and
// decision history are cleared.
func (e *Engine) Destroy() {
	if e.destroyed {
		return
	}
	e.bus.close()
	e.em.clear()
	e.order = nil
	e.registry = make(map[string]*Experience)
	e.triggers = make(map[string]Signal)
	e.history = nil
	e.initialized = false
	e.destroyed = true
}

func prefixReasons(id string, reasons []string) []string {
	out := make([]string, len(reasons))
	for i, r := range reasons {
		out[i] = fmt.Sprintf("%s: %s", id, r)
	}
	return out
}
