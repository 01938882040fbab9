package finding

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// Store persists run findings.
type Store interface {
	SaveAll(ctx context.Context, findings []*Finding) error
	ListByRun(ctx context.Context, runID types.ID) ([]*Finding, error)
	Close() error
}

// SQLiteStore implements Store over a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

const findingSchema = `
CREATE TABLE IF NOT EXISTS findings (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	category TEXT NOT NULL,
	judge_category TEXT,
	signature TEXT NOT NULL,
	severity TEXT NOT NULL,
	rationale TEXT,
	confidence REAL NOT NULL,
	prompt TEXT,
	response TEXT,
	occurrence_count INTEGER NOT NULL,
	first_seen TIMESTAMP NOT NULL,
	last_seen TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_findings_run_signature ON findings(run_id, signature);
`

// OpenStore opens (creating if needed) a SQLite-backed finding store.
// Use ":memory:" for tests.
func OpenStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, types.WrapError(types.STORE_OPEN_FAILED, "failed to open finding store", err)
	}

	if _, err := db.Exec(findingSchema); err != nil {
		db.Close()
		return nil, types.WrapError(types.STORE_OPEN_FAILED, "failed to initialize finding schema", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewStoreWithDB wraps an existing database handle, ensuring the schema.
func NewStoreWithDB(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(findingSchema); err != nil {
		return nil, types.WrapError(types.STORE_OPEN_FAILED, "failed to initialize finding schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveAll upserts the findings of a run in one transaction.
func (s *SQLiteStore) SaveAll(ctx context.Context, findings []*Finding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.WrapError(types.STORE_QUERY_FAILED, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO findings (id, run_id, category, judge_category, signature, severity, rationale, confidence, prompt, response, occurrence_count, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, signature) DO UPDATE SET
			judge_category = excluded.judge_category,
			severity = excluded.severity,
			rationale = excluded.rationale,
			confidence = excluded.confidence,
			occurrence_count = excluded.occurrence_count,
			last_seen = excluded.last_seen`)
	if err != nil {
		return types.WrapError(types.STORE_QUERY_FAILED, "failed to prepare insert", err)
	}
	defer stmt.Close()

	for _, f := range findings {
		_, err := stmt.ExecContext(ctx,
			f.ID.String(), f.RunID.String(), f.Category, f.JudgeCategory, f.Signature,
			f.Severity.String(), f.Rationale, f.Confidence,
			f.Prompt, f.Response, f.OccurrenceCount,
			f.FirstSeen.UTC(), f.LastSeen.UTC())
		if err != nil {
			return types.WrapError(types.STORE_QUERY_FAILED, "failed to insert finding", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return types.WrapError(types.STORE_QUERY_FAILED, "failed to commit findings", err)
	}
	return nil
}

// ListByRun returns a run's findings ordered by severity then first-seen.
func (s *SQLiteStore) ListByRun(ctx context.Context, runID types.ID) ([]*Finding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, category, judge_category, signature, severity, rationale, confidence, prompt, response, occurrence_count, first_seen, last_seen
		FROM findings WHERE run_id = ?
		ORDER BY first_seen`, runID.String())
	if err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to query findings", err)
	}
	defer rows.Close()

	var out []*Finding
	for rows.Next() {
		var f Finding
		var id, rid, severity string
		var firstSeen, lastSeen time.Time
		if err := rows.Scan(&id, &rid, &f.Category, &f.JudgeCategory, &f.Signature, &severity, &f.Rationale,
			&f.Confidence, &f.Prompt, &f.Response, &f.OccurrenceCount, &firstSeen, &lastSeen); err != nil {
			return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to scan finding", err)
		}

		f.ID = types.ID(id)
		f.RunID = types.ID(rid)
		sev, err := types.ParseSeverity(severity)
		if err != nil {
			return nil, types.WrapError(types.STORE_QUERY_FAILED, "corrupt severity in store", err)
		}
		f.Severity = sev
		f.FirstSeen = firstSeen
		f.LastSeen = lastSeen
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "finding row iteration failed", err)
	}

	return out, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
