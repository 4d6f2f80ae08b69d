package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/rxresolve/pkg/rxresolve/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and
// creates the schema if needed.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	sources INTEGER DEFAULT 0,
	source_errors INTEGER DEFAULT 0,
	records INTEGER DEFAULT 0,
	parse_errors INTEGER DEFAULT 0,
	mentions INTEGER DEFAULT 0,
	matched INTEGER DEFAULT 0,
	unknown INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS unknown_terms (
	run_id TEXT NOT NULL,
	term TEXT NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY(run_id, term),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_unknown_terms_count ON unknown_terms(run_id, count DESC);

CREATE TABLE IF NOT EXISTS synonyms (
	alias TEXT PRIMARY KEY,
	target TEXT NOT NULL,
	source TEXT NOT NULL,
	run_id TEXT
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// CreateRun inserts a run row
func (s *sqliteStore) CreateRun(ctx context.Context, r store.Run) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, started_at) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET started_at=excluded.started_at;
`, r.ID, formatTime(r.StartedAt))
	return err
}

// FinishRun stores the final counts of a run
func (s *sqliteStore) FinishRun(ctx context.Context, r store.Run) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, started_at, finished_at, sources, source_errors, records, parse_errors, mentions, matched, unknown)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	finished_at=excluded.finished_at,
	sources=excluded.sources,
	source_errors=excluded.source_errors,
	records=excluded.records,
	parse_errors=excluded.parse_errors,
	mentions=excluded.mentions,
	matched=excluded.matched,
	unknown=excluded.unknown;
`,
		r.ID,
		formatTime(r.StartedAt),
		formatTime(r.FinishedAt),
		r.Sources,
		r.SourceErrors,
		r.Records,
		r.ParseErrors,
		r.Mentions,
		r.Matched,
		r.Unknown,
	)
	return err
}

// GetRun loads a run by ID
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	row := s.db.QueryRowContext(ctx, runColumns+` WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return store.Run{}, false, nil
	}
	if err != nil {
		return store.Run{}, false, err
	}
	return r, true, nil
}

// ListRuns returns the most recent runs first
func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, runColumns+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const runColumns = `SELECT id, started_at, COALESCE(finished_at, ''), sources, source_errors, records, parse_errors, mentions, matched, unknown FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (store.Run, error) {
	var (
		r                 store.Run
		started, finished string
	)
	err := row.Scan(&r.ID, &started, &finished, &r.Sources, &r.SourceErrors, &r.Records, &r.ParseErrors, &r.Mentions, &r.Matched, &r.Unknown)
	if err != nil {
		return store.Run{}, err
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	return r, nil
}

// UpsertUnknowns writes unknown term counts for a run in one transaction
func (s *sqliteStore) UpsertUnknowns(ctx context.Context, runID string, unknowns []store.Unknown) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO unknown_terms (run_id, term, count) VALUES (?, ?, ?)
ON CONFLICT(run_id, term) DO UPDATE SET count=excluded.count;
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, u := range unknowns {
		if _, err := stmt.ExecContext(ctx, runID, u.Term, u.Count); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// TopUnknowns returns the k most frequent unknown terms of a run
func (s *sqliteStore) TopUnknowns(ctx context.Context, runID string, k int) ([]store.Unknown, error) {
	if k <= 0 {
		k = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT term, count FROM unknown_terms
WHERE run_id = ?
ORDER BY count DESC, term ASC
LIMIT ?;
`, runID, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Unknown
	for rows.Next() {
		var u store.Unknown
		if err := rows.Scan(&u.Term, &u.Count); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpsertSynonym inserts or replaces a learned synonym
func (s *sqliteStore) UpsertSynonym(ctx context.Context, syn store.Synonym) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO synonyms (alias, target, source, run_id) VALUES (?, ?, ?, ?)
ON CONFLICT(alias) DO UPDATE SET target=excluded.target, source=excluded.source, run_id=excluded.run_id;
`, syn.Alias, syn.Target, syn.Source, nullString(syn.RunID))
	return err
}

// Synonyms returns every learned synonym ordered by alias
func (s *sqliteStore) Synonyms(ctx context.Context) ([]store.Synonym, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT alias, target, source, COALESCE(run_id, '') FROM synonyms ORDER BY alias`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Synonym
	for rows.Next() {
		var syn store.Synonym
		if err := rows.Scan(&syn.Alias, &syn.Target, &syn.Source, &syn.RunID); err != nil {
			return nil, err
		}
		out = append(out, syn)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
