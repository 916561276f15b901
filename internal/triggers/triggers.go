// Package triggers implements the four behavioral signal sources: exit
// intent, scroll depth, time delay and page visits. Each is a small state
// machine over {idle, armed, fired} driven by injected browser events and a
// Clock. Sources only publish signals to the engine bus; they never call
// the rule evaluator or the frequency ledger.
package triggers

// State is a source's lifecycle phase.
type State string

const (
	StateIdle  State = "idle"
	StateArmed State = "armed"
	StateFired State = "fired"
)
