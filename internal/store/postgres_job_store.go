package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/chartflow/internal/domain"
	_ "github.com/lib/pq"
)

const jobSchemaSQL = `
CREATE TABLE IF NOT EXISTS chart_jobs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	format TEXT NOT NULL,
	chart JSONB NOT NULL,
	webhook_url TEXT NOT NULL DEFAULT '',
	object_key TEXT NOT NULL DEFAULT '',
	bytes INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS chart_jobs_status_idx ON chart_jobs (status, updated_at);
`

const selectJobSQL = `SELECT id, status, width, height, format, chart, webhook_url, object_key, bytes, error, created_at, updated_at
	FROM chart_jobs
	WHERE id = $1`

type PostgresJobStore struct {
	db *sql.DB
}

func NewPostgresJobStore(ctx context.Context, dsn string) (*PostgresJobStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresJobStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresJobStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, jobSchemaSQL); err != nil {
		return fmt.Errorf("ensure chart_jobs schema: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) Close() error {
	return s.db.Close()
}

func (s *PostgresJobStore) Create(ctx context.Context, job domain.Job) error {
	chartJSON, err := json.Marshal(job.Chart)
	if err != nil {
		return fmt.Errorf("marshal job chart: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO chart_jobs (id, status, width, height, format, chart, webhook_url, object_key, bytes, error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID,
		job.Status,
		job.Width,
		job.Height,
		job.Format,
		chartJSON,
		job.WebhookURL,
		job.ObjectKey,
		job.Bytes,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	return nil
}

func (s *PostgresJobStore) Get(ctx context.Context, id string) (domain.Job, bool, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, selectJobSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, false, nil
	}
	if err != nil {
		return domain.Job{}, false, err
	}
	return job, true, nil
}

func (s *PostgresJobStore) UpdateStatus(ctx context.Context, id, status string) (domain.Job, error) {
	return s.exec(ctx, id,
		`UPDATE chart_jobs
		 SET status = $1, updated_at = $2
		 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
}

func (s *PostgresJobStore) Complete(ctx context.Context, id, objectKey string, bytes int) (domain.Job, error) {
	return s.exec(ctx, id,
		`UPDATE chart_jobs
		 SET status = $1, object_key = $2, bytes = $3, error = '', updated_at = $4
		 WHERE id = $5`,
		domain.JobStatusSucceeded, objectKey, bytes, time.Now().UTC(), id,
	)
}

func (s *PostgresJobStore) Fail(ctx context.Context, id, reason string) (domain.Job, error) {
	return s.exec(ctx, id,
		`UPDATE chart_jobs
		 SET status = $1, error = $2, updated_at = $3
		 WHERE id = $4`,
		domain.JobStatusFailed, reason, time.Now().UTC(), id,
	)
}

// exec runs an UPDATE and returns the row as it stands afterwards.
func (s *PostgresJobStore) exec(ctx context.Context, id, query string, args ...any) (domain.Job, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Job{}, fmt.Errorf("update job %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Job{}, ErrJobNotFound
	}

	job, ok, err := s.Get(ctx, id)
	if err != nil {
		return domain.Job{}, err
	}
	if !ok {
		return domain.Job{}, ErrJobNotFound
	}
	return job, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (domain.Job, error) {
	var (
		job       domain.Job
		chartJSON []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.Status,
		&job.Width,
		&job.Height,
		&job.Format,
		&chartJSON,
		&job.WebhookURL,
		&job.ObjectKey,
		&job.Bytes,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Job{}, err
		}
		return domain.Job{}, fmt.Errorf("query job: %w", err)
	}

	if err := json.Unmarshal(chartJSON, &job.Chart); err != nil {
		return domain.Job{}, fmt.Errorf("unmarshal job chart: %w", err)
	}
	return job, nil
}
