package engine

import (
	"github.com/popgate/popgate/internal/frequency"
)

// Kind identifies the rendering surface an experience addresses. The core
// never branches on it for targeting or frequency decisions.
type Kind string

const (
	KindBanner  Kind = "banner"
	KindModal   Kind = "modal"
	KindInline  Kind = "inline"
	KindTooltip Kind = "tooltip"
)

// ValidKind reports whether k is one of the closed set of kinds.
func ValidKind(k Kind) bool {
	switch k {
	case KindBanner, KindModal, KindInline, KindTooltip:
		return true
	}
	return false
}

// Canonical trigger names, as published by the signal sources and referenced
// by display-trigger rules.
const (
	TriggerExitIntent  = "exit-intent"
	TriggerScrollDepth = "scroll-depth"
	TriggerTimeDelay   = "time-delay"
	TriggerPageVisits  = "page-visits"
)

// URLRule matches the context URL. When multiple properties are set the
// strictest one wins: equals, then contains, then pattern. A rule with no
// properties matches every URL.
type URLRule struct {
	Equals   string `json:"equals,omitempty" yaml:"equals,omitempty"`
	Contains string `json:"contains,omitempty" yaml:"contains,omitempty"`
	Pattern  string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// Empty reports whether no property is set.
func (r URLRule) Empty() bool {
	return r.Equals == "" && r.Contains == "" && r.Pattern == ""
}

// TriggerRule requires a named trigger signal to have fired. Threshold only
// applies to scroll-depth, where the signal's last crossed threshold must
// equal it exactly.
type TriggerRule struct {
	Name      string `json:"name" yaml:"name"`
	Threshold *int   `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// Predicate is an optional caller-supplied custom match function. A panic
// inside a predicate is recovered and treated as a non-match.
type Predicate func(Context) bool

// Targeting is the full rule set for one experience. Nil sub-rules are not
// configured and do not constrain the match.
type Targeting struct {
	URL     *URLRule     `json:"url,omitempty" yaml:"url,omitempty"`
	Custom  Predicate    `json:"-" yaml:"-"`
	Trigger *TriggerRule `json:"trigger,omitempty" yaml:"trigger,omitempty"`
}

// Frequency caps how often an experience may be shown within a window.
type Frequency struct {
	Max int              `json:"max" yaml:"max"`
	Per frequency.Window `json:"per" yaml:"per"`
}

// Experience is a registrable unit of targeted content plus its targeting
// and frequency metadata. Content is opaque to the core.
type Experience struct {
	ID        string         `json:"id" yaml:"id"`
	Kind      Kind           `json:"kind" yaml:"kind"`
	Targeting Targeting      `json:"targeting" yaml:"targeting"`
	Content   map[string]any `json:"content,omitempty" yaml:"content,omitempty"`
	Frequency *Frequency     `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	Priority  int            `json:"priority" yaml:"priority"`
}
