package engine

import (
	"time"
)

// TraceStep records one sub-rule check for explainability. It never drives
// control flow.
type TraceStep struct {
	Experience string        `json:"experience,omitempty"`
	Step       string        `json:"step"`
	At         time.Time     `json:"at"`
	Duration   time.Duration `json:"duration"`
	Input      any           `json:"input,omitempty"`
	Output     any           `json:"output,omitempty"`
	Passed     bool          `json:"passed"`
}

// Decision is the immutable output of one evaluation pass for one
// experience (or, for single-match evaluation, the pass as a whole).
type Decision struct {
	ID                   string        `json:"id"`
	Show                 bool          `json:"show"`
	ExperienceID         string        `json:"experienceId,omitempty"`
	Kind                 Kind          `json:"kind,omitempty"`
	Reasons              []string      `json:"reasons"`
	Trace                []TraceStep   `json:"trace"`
	Context              Context       `json:"context"`
	EvaluatedAt          time.Time     `json:"evaluatedAt"`
	Duration             time.Duration `json:"duration"`
	ExperiencesEvaluated int           `json:"experiencesEvaluated"`
}

// recordDecision appends to the bounded history, evicting the oldest entry
// once the limit is reached.
func (e *Engine) recordDecision(d Decision) {
	e.history = append(e.history, d)
	if limit := e.cfg.HistoryLimit; limit > 0 && len(e.history) > limit {
		e.history = e.history[len(e.history)-limit:]
	}
}
