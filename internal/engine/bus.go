package engine

// Bus is the synchronous trigger channel between signal sources and the
// orchestrator. Each published signal is merged into the cumulative trigger
// map and then drives exactly one full re-evaluation pass. Signals
// published while a pass is running queue FIFO; passes never interleave.
type Bus struct {
	eng      *Engine
	queue    []queuedSignal
	draining bool
	closed   bool
}

type queuedSignal struct {
	name string
	sig  Signal
}

// Publish hands a signal to the orchestrator. Safe to call from inside a
// running pass; the signal is processed after the current pass completes.
// Publishing on a closed bus is a no-op, so late source callbacks cannot
// reach a destroyed orchestrator.
func (b *Bus) Publish(name string, sig Signal) {
	if b.closed {
		return
	}
	b.queue = append(b.queue, queuedSignal{name: name, sig: sig})
	if b.draining {
		return
	}
	b.draining = true
	defer func() { b.draining = false }()
	for len(b.queue) > 0 && !b.closed {
		next := b.queue[0]
		b.queue = b.queue[1:]
		b.eng.absorbSignal(next.name, next.sig)
		b.eng.EvaluateAll(nil)
	}
}

func (b *Bus) close() {
	b.closed = true
	b.queue = nil
}
