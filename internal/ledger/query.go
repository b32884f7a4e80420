// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/artifact-organizer/pkg/types"
)

// ErrNoRuns is returned when a lookup needs a run and the ledger has none.
var ErrNoRuns = errors.New("ledger has no runs")

// Run is one organize run as stored in the ledger.
type Run struct {
	ID         string        `json:"id" yaml:"id"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	SourceDir  string        `json:"source_dir" yaml:"source_dir"`
	DestDir    string        `json:"dest_dir" yaml:"dest_dir"`
	Summary    types.Summary `json:"summary" yaml:"summary"`
}

// Finished reports whether the run completed.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// FileEntry is one written file with its provenance.
type FileEntry struct {
	types.WrittenFile `yaml:",inline"`

	RunID     string    `json:"run_id" yaml:"run_id"`
	Document  string    `json:"document" yaml:"document"`
	WrittenAt time.Time `json:"written_at" yaml:"written_at"`
}

// FileQuery filters file listings. Zero fields do not filter.
type FileQuery struct {
	// RunID restricts results to one run.
	RunID string

	// Path matches relative marker paths containing this substring.
	Path string

	// Document restricts results to files produced by one source document.
	Document string

	// Limit caps the result count. Zero uses DefaultLimit.
	Limit int
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, source_dir, dest_dir, documents, empty, failed, files
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.SourceDir, &r.DestDir,
			&r.Summary.Documents, &r.Summary.Empty, &r.Summary.Failed, &r.Summary.Files); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = parseTime(started)
		if finished.Valid {
			r.FinishedAt = parseTime(finished.String)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	runs, err := s.Runs(ctx, 1)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, ErrNoRuns
	}
	return runs[0], nil
}

// Files returns recorded files matching q in the order they were written.
func (s *Store) Files(ctx context.Context, q FileQuery) ([]FileEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT run_id, document, path, output_path, bytes, sha256, written_at
		 FROM files WHERE 1=1`)

	if q.RunID != "" {
		qb.WriteString(` AND run_id = ?`)
		args = append(args, q.RunID)
	}
	if q.Path != "" {
		qb.WriteString(` AND path LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(q.Path)+"%")
	}
	if q.Document != "" {
		qb.WriteString(` AND document = ?`)
		args = append(args, q.Document)
	}

	qb.WriteString(` ORDER BY id LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	var entries []FileEntry
	for rows.Next() {
		var (
			e       FileEntry
			written string
		)
		if err := rows.Scan(&e.RunID, &e.Document, &e.Path, &e.OutputPath,
			&e.Bytes, &e.SHA256, &written); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		e.WrittenAt = parseTime(written)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
