package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used when the SQLite database cannot
// be opened, and in tests. Capping stays session-correct; nothing survives
// the process.
type MemoryStore struct {
	mu          sync.Mutex
	nextPos     int
	experiences map[string]*Experience
	values      map[string]string
	decisions   []*DecisionRow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		experiences: make(map[string]*Experience),
		values:      make(map[string]string),
	}
}

func (m *MemoryStore) UpsertExperience(_ context.Context, exp *Experience) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *exp
	if existing, found := m.experiences[exp.ID]; found {
		cp.Position = existing.Position
		cp.CreatedAt = existing.CreatedAt
	} else {
		m.nextPos++
		cp.Position = m.nextPos
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = time.Now()
	m.experiences[exp.ID] = &cp
	return nil
}

func (m *MemoryStore) GetExperience(_ context.Context, id string) (*Experience, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, found := m.experiences[id]
	if !found {
		return nil, ErrNotFound
	}
	cp := *exp
	return &cp, nil
}

func (m *MemoryStore) ListExperiences(_ context.Context) ([]*Experience, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Experience, 0, len(m.experiences))
	for _, exp := range m.experiences {
		cp := *exp
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *MemoryStore) DeleteExperience(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, found := m.experiences[id]; !found {
		return ErrNotFound
	}
	delete(m.experiences, id)
	return nil
}

func (m *MemoryStore) GetValue(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, found := m.values[key]
	return v, found, nil
}

func (m *MemoryStore) SetValue(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

func (m *MemoryStore) AppendDecision(_ context.Context, row *DecisionRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *row
	m.decisions = append(m.decisions, &cp)
	return nil
}

func (m *MemoryStore) ListDecisions(_ context.Context, limit int) ([]*DecisionRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	out := make([]*DecisionRow, 0, limit)
	for i := len(m.decisions) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *m.decisions[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) GetDecisionStats(_ context.Context) ([]ExperienceStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID := make(map[string]*ExperienceStats)
	for _, row := range m.decisions {
		if row.ExperienceID == "" {
			continue
		}
		st, found := byID[row.ExperienceID]
		if !found {
			st = &ExperienceStats{ExperienceID: row.ExperienceID}
			byID[row.ExperienceID] = st
		}
		st.Evaluations++
		if row.Shown {
			st.Shown++
		}
	}

	out := make([]ExperienceStats, 0, len(byID))
	for _, st := range byID {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExperienceID < out[j].ExperienceID })
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
