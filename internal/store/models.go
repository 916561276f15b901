package store

import (
	"time"

	"github.com/popgate/popgate/internal/engine"
	"github.com/popgate/popgate/internal/frequency"
)

// Experience is the persisted form of an experience definition. Custom
// predicates are code, not data, and are not persisted.
type Experience struct {
	ID        string
	Kind      string
	Priority  int
	Position  int // registration order, stable across overwrites
	Targeting engine.Targeting
	Content   map[string]any
	Frequency *engine.Frequency
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Engine converts the stored definition into the engine model.
func (e *Experience) Engine() engine.Experience {
	return engine.Experience{
		ID:        e.ID,
		Kind:      engine.Kind(e.Kind),
		Targeting: e.Targeting,
		Content:   e.Content,
		Frequency: e.Frequency,
		Priority:  e.Priority,
	}
}

// frequencyWindow maps a stored window name back to the typed form.
// Unknown values degrade to the session window rather than failing a read.
func frequencyWindow(s string) frequency.Window {
	w, err := frequency.ParseWindow(s)
	if err != nil {
		return frequency.WindowSession
	}
	return w
}

// ExperienceStats aggregates the audit log per experience.
type ExperienceStats struct {
	ExperienceID string
	Evaluations  int
	Shown        int
}

// DecisionRow is one entry of the persisted decision audit log.
type DecisionRow struct {
	ID           string
	SessionID    string
	ExperienceID string
	Shown        bool
	URL          string
	Reasons      []string
	Trace        []engine.TraceStep
	EvaluatedAt  time.Time
	Duration     time.Duration
}
