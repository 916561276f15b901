package engine

import (
	"time"
)

// Context is the immutable evaluation snapshot. Trigger state is copied in
// by value from the orchestrator's cumulative map at build time.
type Context struct {
	URL       string            `json:"url"`
	Timestamp time.Time         `json:"timestamp"`
	User      map[string]any    `json:"user,omitempty"`
	Custom    map[string]any    `json:"custom,omitempty"`
	Triggers  map[string]Signal `json:"triggers,omitempty"`
}

// buildContext assembles a snapshot from an optional partial context.
// Defaults: URL from the engine's configured location, Timestamp from the
// clock, Triggers from the cumulative trigger map. Partial trigger entries
// merge over the cumulative ones per name.
func (e *Engine) buildContext(partial *Context) Context {
	ctx := Context{
		URL:       e.cfg.Location,
		Timestamp: e.now(),
		Triggers:  make(map[string]Signal, len(e.triggers)),
	}
	for name, sig := range e.triggers {
		ctx.Triggers[name] = cloneSignal(sig)
	}
	if partial == nil {
		return ctx
	}
	if partial.URL != "" {
		ctx.URL = partial.URL
	}
	if !partial.Timestamp.IsZero() {
		ctx.Timestamp = partial.Timestamp
	}
	if len(partial.User) > 0 {
		ctx.User = cloneBag(partial.User)
	}
	if len(partial.Custom) > 0 {
		ctx.Custom = cloneBag(partial.Custom)
	}
	for name, sig := range partial.Triggers {
		ctx.Triggers[name] = mergeSignal(ctx.Triggers[name], sig)
	}
	return ctx
}

func cloneBag(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
