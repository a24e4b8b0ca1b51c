// Package catalog records partition runs and the corpus entries they produced
// in SQLite, so a corpus can be audited without walking it.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ttscorpus/pkg/corpus"
	"ttscorpus/pkg/db"
)

// FileName is the default catalog file inside an output root.
const FileName = "catalog.db"

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new store.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d}
}

// Open initializes the database at path and wraps it.
func Open(path string) (*SQLiteStore, error) {
	d, err := db.Init(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStore(d), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Runs ---

// SaveRun stores a run with its entries and failures in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, r *Run, entries []Entry, failures []Failure) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, source_root, output_root, seed, train_ratio, profile, written, failed, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SourceRoot, r.OutputRoot, int64(r.Seed), r.TrainRatio, r.Profile,
		r.Written, r.Failed, r.StartedAt.UTC(), r.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	entryStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (run_id, split, label, stem, source, source_rate, source_channels, duration_s)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer entryStmt.Close()

	for _, e := range entries {
		if _, err := entryStmt.ExecContext(ctx, r.ID, string(e.Split), e.Label, e.Stem, e.Source,
			e.SourceRate, e.SourceChannels, e.Duration); err != nil {
			return fmt.Errorf("insert entry %s/%s: %w", e.Label, e.Stem, err)
		}
	}

	for _, f := range failures {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO failures (run_id, split, label, source, kind, message) VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, string(f.Split), f.Label, f.Source, f.Kind, f.Message); err != nil {
			return fmt.Errorf("insert failure: %w", err)
		}
	}

	return tx.Commit()
}

// LatestRun returns the most recently finished run, or nil if none exists.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_root, output_root, seed, train_ratio, profile, written, failed, started_at, finished_at
		 FROM runs ORDER BY finished_at DESC, rowid DESC LIMIT 1`)

	var r Run
	var seed int64
	err := row.Scan(&r.ID, &r.SourceRoot, &r.OutputRoot, &seed, &r.TrainRatio, &r.Profile,
		&r.Written, &r.Failed, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	r.Seed = uint64(seed)
	return &r, nil
}

// PruneRuns keeps the newest keep runs.
func (s *SQLiteStore) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.db.PruneRuns(keep)
}

// --- Entries ---

func (s *SQLiteStore) Entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT split, label, stem, source, source_rate, source_channels, duration_s
		 FROM entries WHERE run_id = ? ORDER BY split DESC, label, stem`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var split string
		var rate, channels sql.NullInt64
		var dur sql.NullFloat64
		if err := rows.Scan(&split, &e.Label, &e.Stem, &e.Source, &rate, &channels, &dur); err != nil {
			return nil, err
		}
		e.Split = corpus.Split(split)
		e.SourceRate = int(rate.Int64)
		e.SourceChannels = int(channels.Int64)
		e.Duration = dur.Float64
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Failures(ctx context.Context, runID string) ([]Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT split, label, source, kind, message FROM failures WHERE run_id = ? ORDER BY label, source`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Failure
	for rows.Next() {
		var f Failure
		var split string
		var msg sql.NullString
		if err := rows.Scan(&split, &f.Label, &f.Source, &f.Kind, &msg); err != nil {
			return nil, err
		}
		f.Split = corpus.Split(split)
		f.Message = msg.String
		out = append(out, f)
	}
	return out, rows.Err()
}

// Counts returns per label and split entry counts of a run. Splits with no
// entries for a label are omitted.
func (s *SQLiteStore) Counts(ctx context.Context, runID string) ([]Count, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT label, split, count(*) FROM entries WHERE run_id = ?
		 GROUP BY label, split ORDER BY label, split DESC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Count
	for rows.Next() {
		var c Count
		var split string
		if err := rows.Scan(&c.Label, &split, &c.Files); err != nil {
			return nil, err
		}
		c.Split = corpus.Split(split)
		out = append(out, c)
	}
	return out, rows.Err()
}
