package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/urmzd/linkhub/pkg/jobs"
)

var ErrJobRunNotFound = errors.New("job run not found")

// JobRunStore keeps the history of finished jobs.
type JobRunStore interface {
	Record(ctx context.Context, houseID int64, r jobs.Result) error
	Get(ctx context.Context, id string) (jobs.Result, error)
	List(ctx context.Context, houseID int64, limit int) ([]jobs.Result, error)
}

// JobRuns returns a JobRunStore for this database.
func (db *DB) JobRuns() JobRunStore {
	return &jobRunStore{db: db}
}

type jobRunStore struct {
	db *DB
}

const jobRunColumns = `id, kind, state, success, cancelled, processed, total, failures, error, started_at, completed_at`

func (s *jobRunStore) Record(ctx context.Context, houseID int64, r jobs.Result) error {
	failures, err := json.Marshal(r.Failures)
	if err != nil {
		return err
	}
	if r.Failures == nil {
		failures = []byte("[]")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO job_runs (house_id, `+jobRunColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, houseID, r.JobID, string(r.Kind), string(r.State), r.Success, r.Cancelled, r.Processed, r.Total,
		string(failures), r.Error, r.StartedAt.UTC().Format(time.RFC3339Nano), r.CompletedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record job %s: %w", r.JobID, err)
	}
	return nil
}

func scanJobRun(row scanner) (jobs.Result, error) {
	var (
		r                      jobs.Result
		kind, state, failures  string
		startedAt, completedAt string
	)
	if err := row.Scan(&r.JobID, &kind, &state, &r.Success, &r.Cancelled, &r.Processed, &r.Total,
		&failures, &r.Error, &startedAt, &completedAt); err != nil {
		return r, err
	}
	r.Kind = jobs.Kind(kind)
	r.State = jobs.State(state)
	if err := json.Unmarshal([]byte(failures), &r.Failures); err != nil {
		return r, fmt.Errorf("job %s failures: %w", r.JobID, err)
	}
	if len(r.Failures) == 0 {
		r.Failures = nil
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	r.CompletedAt, _ = time.Parse(time.RFC3339Nano, completedAt)
	return r, nil
}

func (s *jobRunStore) Get(ctx context.Context, id string) (jobs.Result, error) {
	r, err := scanJobRun(s.db.QueryRowContext(ctx, `SELECT `+jobRunColumns+` FROM job_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrJobRunNotFound
	}
	return r, err
}

// List returns the most recent runs first. A limit of zero or less means 50.
func (s *jobRunStore) List(ctx context.Context, houseID int64, limit int) ([]jobs.Result, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobRunColumns+` FROM job_runs
		WHERE house_id = ? ORDER BY completed_at DESC LIMIT ?
	`, houseID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []jobs.Result
	for rows.Next() {
		r, err := scanJobRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
