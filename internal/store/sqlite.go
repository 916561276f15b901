package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/popgate/popgate/internal/engine"
)

var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS experiences (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 0,
    position INTEGER NOT NULL,
    targeting TEXT NOT NULL,
    content TEXT,
    freq_max INTEGER,
    freq_window TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_experiences_position ON experiences(position);

CREATE TABLE IF NOT EXISTS kv_records (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL DEFAULT '',
    experience_id TEXT,
    shown INTEGER NOT NULL,
    url TEXT,
    reasons TEXT,
    trace TEXT,
    evaluated_at INTEGER NOT NULL,
    duration_us INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_evaluated ON decisions(evaluated_at);
CREATE INDEX IF NOT EXISTS idx_decisions_experience ON decisions(experience_id);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertExperience(ctx context.Context, exp *Experience) error {
	targetingJSON, err := json.Marshal(exp.Targeting)
	if err != nil {
		return fmt.Errorf("failed to marshal targeting: %w", err)
	}

	var contentJSON []byte
	if len(exp.Content) > 0 {
		contentJSON, err = json.Marshal(exp.Content)
		if err != nil {
			return fmt.Errorf("failed to marshal content: %w", err)
		}
	}

	var freqMax sql.NullInt64
	var freqWindow sql.NullString
	if exp.Frequency != nil {
		freqMax = sql.NullInt64{Int64: int64(exp.Frequency.Max), Valid: true}
		freqWindow = sql.NullString{String: string(exp.Frequency.Per), Valid: true}
	}

	now := time.Now().Unix()
	// New rows take the next position; overwrites keep their original slot
	// so registration order is stable under last-write-wins.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO experiences (id, kind, priority, position, targeting, content, freq_max, freq_window, created_at, updated_at)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM experiences), ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			priority = excluded.priority,
			targeting = excluded.targeting,
			content = excluded.content,
			freq_max = excluded.freq_max,
			freq_window = excluded.freq_window,
			updated_at = excluded.updated_at`,
		exp.ID, exp.Kind, exp.Priority, string(targetingJSON), nullableString(contentJSON), freqMax, freqWindow, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert experience: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetExperience(ctx context.Context, id string) (*Experience, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, priority, position, targeting, content, freq_max, freq_window, created_at, updated_at
		FROM experiences WHERE id = ?`, id)

	exp, err := scanExperience(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get experience: %w", err)
	}
	return exp, nil
}

func (s *SQLiteStore) ListExperiences(ctx context.Context) ([]*Experience, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, priority, position, targeting, content, freq_max, freq_window, created_at, updated_at
		FROM experiences ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiences: %w", err)
	}
	defer rows.Close()

	var exps []*Experience
	for rows.Next() {
		exp, err := scanExperience(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan experience: %w", err)
		}
		exps = append(exps, exp)
	}
	return exps, rows.Err()
}

func (s *SQLiteStore) DeleteExperience(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM experiences WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete experience: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_records WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get value: %w", err)
	}
	return value, true, nil
}

func (s *SQLiteStore) SetValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_records (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to set value: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendDecision(ctx context.Context, row *DecisionRow) error {
	reasonsJSON, err := json.Marshal(row.Reasons)
	if err != nil {
		return fmt.Errorf("failed to marshal reasons: %w", err)
	}
	traceJSON, err := json.Marshal(row.Trace)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, session_id, experience_id, shown, url, reasons, trace, evaluated_at, duration_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.SessionID, row.ExperienceID, boolToInt(row.Shown), row.URL,
		string(reasonsJSON), string(traceJSON), row.EvaluatedAt.UnixMilli(), row.Duration.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to append decision: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, limit int) ([]*DecisionRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, experience_id, shown, url, reasons, trace, evaluated_at, duration_us
		FROM decisions ORDER BY evaluated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var out []*DecisionRow
	for rows.Next() {
		var row DecisionRow
		var expID sql.NullString
		var url sql.NullString
		var shown int
		var reasonsJSON, traceJSON sql.NullString
		var evaluatedAt, durationUs int64

		err := rows.Scan(&row.ID, &row.SessionID, &expID, &shown, &url, &reasonsJSON, &traceJSON, &evaluatedAt, &durationUs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}

		row.ExperienceID = expID.String
		row.URL = url.String
		row.Shown = shown != 0
		if reasonsJSON.Valid && reasonsJSON.String != "" {
			if err := json.Unmarshal([]byte(reasonsJSON.String), &row.Reasons); err != nil {
				return nil, fmt.Errorf("failed to unmarshal reasons: %w", err)
			}
		}
		if traceJSON.Valid && traceJSON.String != "" {
			if err := json.Unmarshal([]byte(traceJSON.String), &row.Trace); err != nil {
				return nil, fmt.Errorf("failed to unmarshal trace: %w", err)
			}
		}
		row.EvaluatedAt = time.UnixMilli(evaluatedAt)
		row.Duration = time.Duration(durationUs) * time.Microsecond

		out = append(out, &row)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetDecisionStats(ctx context.Context) ([]ExperienceStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT experience_id, COUNT(*), COALESCE(SUM(shown), 0)
		FROM decisions
		WHERE experience_id IS NOT NULL AND experience_id != ''
		GROUP BY experience_id
		ORDER BY experience_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get decision stats: %w", err)
	}
	defer rows.Close()

	var stats []ExperienceStats
	for rows.Next() {
		var st ExperienceStats
		if err := rows.Scan(&st.ExperienceID, &st.Evaluations, &st.Shown); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExperience(sc scanner) (*Experience, error) {
	var exp Experience
	var targetingJSON string
	var contentJSON sql.NullString
	var freqMax sql.NullInt64
	var freqWindow sql.NullString
	var createdAt, updatedAt int64

	err := sc.Scan(&exp.ID, &exp.Kind, &exp.Priority, &exp.Position, &targetingJSON, &contentJSON, &freqMax, &freqWindow, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(targetingJSON), &exp.Targeting); err != nil {
		return nil, fmt.Errorf("failed to unmarshal targeting: %w", err)
	}
	if contentJSON.Valid && contentJSON.String != "" {
		if err := json.Unmarshal([]byte(contentJSON.String), &exp.Content); err != nil {
			return nil, fmt.Errorf("failed to unmarshal content: %w", err)
		}
	}
	if freqMax.Valid && freqWindow.Valid {
		exp.Frequency = &engine.Frequency{
			Max: int(freqMax.Int64),
			Per: frequencyWindow(freqWindow.String),
		}
	}
	exp.CreatedAt = time.Unix(createdAt, 0)
	exp.UpdatedAt = time.Unix(updatedAt, 0)
	return &exp, nil
}

func nullableString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
