package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sqlc-dev/pqtype"

	"lpgen/internal/jobs"
	"lpgen/internal/migrate"
	"lpgen/internal/model"
)

var ErrNotFound = errors.New("job not found in store")

// Store mirrors job snapshots into a SQL database so they survive a
// restart for inspection. The in-memory registry stays the source of
// truth; the mirror is write-behind only.
type Store struct {
	DB     *sql.DB
	sqlite bool
}

// New creates a new Store that uses a shared *sql.DB with pooling.
func New(database *sql.DB, driver string) *Store {
	sqlDriver, _, _ := migrate.Dialect(driver)
	return &Store{DB: database, sqlite: sqlDriver == "sqlite3"}
}

// Open connects to the configured database.
func Open(driver, dsn string) (*Store, error) {
	sqlDriver, _, err := migrate.Dialect(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if sqlDriver == "sqlite3" {
		// sqlite serialises writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	return New(db, driver), nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// rebind turns $N placeholders into ? for sqlite.
func (s *Store) rebind(q string) string {
	if !s.sqlite {
		return q
	}
	var b strings.Builder
	for i := 0; i < len(q); i++ {
		if q[i] == '$' && i+1 < len(q) && q[i+1] >= '0' && q[i+1] <= '9' {
			j := i + 1
			for j < len(q) && q[j] >= '0' && q[j] <= '9' {
				j++
			}
			b.WriteByte('?')
			i = j - 1
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func nullRaw(v any) (pqtype.NullRawMessage, error) {
	if v == nil {
		return pqtype.NullRawMessage{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

const upsertJobSQL = `
INSERT INTO generation_jobs (
    id, status, progress, current_step, steps, error, result,
    original_request, retry_of, created_at, updated_at, started_at, finished_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET
    status = excluded.status,
    progress = excluded.progress,
    current_step = excluded.current_step,
    steps = excluded.steps,
    error = excluded.error,
    result = excluded.result,
    original_request = excluded.original_request,
    retry_of = excluded.retry_of,
    updated_at = excluded.updated_at,
    started_at = excluded.started_at,
    finished_at = excluded.finished_at`

// UpsertJob writes the latest snapshot of job.
func (s *Store) UpsertJob(ctx context.Context, job jobs.Job) error {
	steps, err := json.Marshal(job.Steps)
	if err != nil {
		return err
	}
	var result, brief pqtype.NullRawMessage
	if job.Result != nil {
		if result, err = nullRaw(job.Result); err != nil {
			return err
		}
	}
	if job.OriginalRequest != nil {
		if brief, err = nullRaw(job.OriginalRequest); err != nil {
			return err
		}
	}

	_, err = s.DB.ExecContext(ctx, s.rebind(upsertJobSQL),
		job.ID,
		string(job.Status),
		job.Progress,
		job.CurrentStep,
		string(steps),
		nullString(job.Error),
		result,
		brief,
		nullString(job.RetryOf),
		job.CreatedAt.UTC(),
		job.UpdatedAt.UTC(),
		nullTime(job.StartedAt),
		nullTime(job.FinishedAt),
	)
	return err
}

const getJobSQL = `
SELECT id, status, progress, current_step, steps, error, result,
       original_request, retry_of, created_at, updated_at, started_at, finished_at
FROM generation_jobs WHERE id = $1`

// GetJob loads a mirrored snapshot.
func (s *Store) GetJob(ctx context.Context, id string) (jobs.Job, error) {
	var (
		job                   jobs.Job
		status                string
		steps                 string
		errMsg, result, brief sql.NullString
		retryOf               sql.NullString
		startedAt, finishedAt sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx, s.rebind(getJobSQL), id).Scan(
		&job.ID, &status, &job.Progress, &job.CurrentStep, &steps, &errMsg, &result,
		&brief, &retryOf, &job.CreatedAt, &job.UpdatedAt, &startedAt, &finishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return jobs.Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return jobs.Job{}, err
	}

	job.Status = jobs.Status(status)
	job.Error = errMsg.String
	job.RetryOf = retryOf.String
	if err := json.Unmarshal([]byte(steps), &job.Steps); err != nil {
		return jobs.Job{}, fmt.Errorf("decode steps: %w", err)
	}
	if result.Valid {
		var r model.Result
		if err := json.Unmarshal([]byte(result.String), &r); err != nil {
			return jobs.Job{}, fmt.Errorf("decode result: %w", err)
		}
		job.Result = &r
	}
	if brief.Valid {
		var b model.Brief
		if err := json.Unmarshal([]byte(brief.String), &b); err != nil {
			return jobs.Job{}, fmt.Errorf("decode original request: %w", err)
		}
		job.OriginalRequest = &b
	}
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		job.FinishedAt = &t
	}
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return job, nil
}

// DeleteJob removes a mirrored job. Deleting a missing job is not an error.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, s.rebind(`DELETE FROM generation_jobs WHERE id = $1`), id)
	return err
}

// Observer returns a registry observer that mirrors every snapshot.
// Mirror failures are reported through onErr and never fail the job.
func (s *Store) Observer(timeout time.Duration, onErr func(jobID string, err error)) jobs.Observer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return func(job jobs.Job) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.UpsertJob(ctx, job); err != nil && onErr != nil {
			onErr(job.ID, err)
		}
	}
}
