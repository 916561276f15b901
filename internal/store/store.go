package store

import "context"

// Store defines the persistence surface for experience definitions, the
// namespaced key/value records used by the frequency ledger and visit
// counters, and the decision audit log.
type Store interface {
	// Experience definitions
	UpsertExperience(ctx context.Context, exp *Experience) error
	GetExperience(ctx context.Context, id string) (*Experience, error)
	ListExperiences(ctx context.Context) ([]*Experience, error)
	DeleteExperience(ctx context.Context, id string) error

	// Key/value records (frequency ledger, visit counters)
	GetValue(ctx context.Context, key string) (string, bool, error)
	SetValue(ctx context.Context, key, value string) error

	// Decision audit log
	AppendDecision(ctx context.Context, row *DecisionRow) error
	ListDecisions(ctx context.Context, limit int) ([]*DecisionRow, error)
	GetDecisionStats(ctx context.Context) ([]ExperienceStats, error)

	// Lifecycle
	Close() error
}
