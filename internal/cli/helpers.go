package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/popgate/popgate/internal/engine"
	"github.com/popgate/popgate/internal/frequency"
	"github.com/popgate/popgate/internal/store"
)

// withStore opens the database, executes the function, and handles cleanup.
func withStore(fn func(*store.SQLiteStore) error) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	return fn(s)
}

// loadEngine builds an initialized engine from the stored experience
// definitions, with its frequency ledger backed by the same store.
func loadEngine(ctx context.Context, s store.Store, location string) (*engine.Engine, error) {
	ledger := frequency.NewLedger(s)
	eng := engine.New(engine.Config{Location: location}, ledger)
	if err := eng.Init(); err != nil {
		return nil, err
	}

	exps, err := s.ListExperiences(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiences: %w", err)
	}
	for _, exp := range exps {
		eng.Register(exp.ID, exp.Engine())
	}
	return eng, nil
}

// parseKeyValues turns repeated k=v flags into a bag.
func parseKeyValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", pair)
		}
		out[key] = value
	}
	return out, nil
}
