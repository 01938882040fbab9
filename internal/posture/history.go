package posture

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// History persists per-run posture scores for time-series comparison.
// Records are append-only: one row per run, keyed by run id and timestamp.
type History interface {
	Append(ctx context.Context, score Score) error
	List(ctx context.Context, limit int) ([]Score, error)
	Close() error
}

// SQLiteHistory implements History over a SQLite database.
type SQLiteHistory struct {
	db *sql.DB
}

var _ History = (*SQLiteHistory)(nil)

const historySchema = `
CREATE TABLE IF NOT EXISTS posture_history (
	run_id TEXT PRIMARY KEY,
	score REAL NOT NULL,
	findings_penalty REAL NOT NULL,
	coverage_bonus REAL NOT NULL,
	resilience_bonus REAL NOT NULL,
	level TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posture_created ON posture_history(created_at);
`

// OpenHistory opens (creating if needed) a SQLite-backed posture history.
func OpenHistory(path string) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, types.WrapError(types.STORE_OPEN_FAILED, "failed to open posture history", err)
	}

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, types.WrapError(types.STORE_OPEN_FAILED, "failed to initialize posture schema", err)
	}

	return &SQLiteHistory{db: db}, nil
}

// NewHistoryWithDB wraps an existing database handle, ensuring the schema.
func NewHistoryWithDB(db *sql.DB) (*SQLiteHistory, error) {
	if _, err := db.Exec(historySchema); err != nil {
		return nil, types.WrapError(types.STORE_OPEN_FAILED, "failed to initialize posture schema", err)
	}
	return &SQLiteHistory{db: db}, nil
}

// Append records one run's score. A run id can only be recorded once.
func (h *SQLiteHistory) Append(ctx context.Context, score Score) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO posture_history (run_id, score, findings_penalty, coverage_bonus, resilience_bonus, level, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		score.RunID.String(), score.Value,
		score.Breakdown.FindingsPenalty, score.Breakdown.CoverageBonus, score.Breakdown.ResilienceBonus,
		score.Level, score.CreatedAt.UTC())
	if err != nil {
		return types.WrapError(types.STORE_QUERY_FAILED, "failed to append posture score", err)
	}
	return nil
}

// List returns the most recent scores, newest first.
func (h *SQLiteHistory) List(ctx context.Context, limit int) ([]Score, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT run_id, score, findings_penalty, coverage_bonus, resilience_bonus, level, created_at
		FROM posture_history ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to query posture history", err)
	}
	defer rows.Close()

	var out []Score
	for rows.Next() {
		var s Score
		var runID string
		var createdAt time.Time
		if err := rows.Scan(&runID, &s.Value,
			&s.Breakdown.FindingsPenalty, &s.Breakdown.CoverageBonus, &s.Breakdown.ResilienceBonus,
			&s.Level, &createdAt); err != nil {
			return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to scan posture row", err)
		}
		s.RunID = types.ID(runID)
		s.CreatedAt = createdAt
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "posture row iteration failed", err)
	}

	return out, nil
}

// Close releases the underlying database handle.
func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}
