package engine

// Event names observable via Engine.On.
type Event string

const (
	EventRegistered Event = "experience:registered"
	EventDecision   Event = "decision"
	EventImpression Event = "impression"
)

// Handler receives event payloads: Experience for registrations, Decision
// for decisions and impressions.
type Handler func(payload any)

type subscription struct {
	id      int
	event   Event
	handler Handler
}

// emitter is a synchronous observer list. Handlers run in subscription
// order on the caller's goroutine.
type emitter struct {
	nextID int
	subs   []subscription
}

func (em *emitter) on(ev Event, h Handler) func() {
	em.nextID++
	id := em.nextID
	em.subs = append(em.subs, subscription{id: id, event: ev, handler: h})
	return func() {
		for i, s := range em.subs {
			if s.id == id {
				em.subs = append(em.subs[:i], em.subs[i+1:]...)
				return
			}
		}
	}
}

func (em *emitter) emit(ev Event, payload any) {
	// Snapshot so handlers can unsubscribe mid-emit.
	snapshot := make([]subscription, len(em.subs))
	copy(snapshot, em.subs)
	for _, s := range snapshot {
		if s.event == ev {
			s.handler(payload)
		}
	}
}

func (em *emitter) clear() {
	em.subs = nil
}
