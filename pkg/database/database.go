// Package database is the system of record for job rows. Status updates are
// serialized through conditional UPDATEs so a job can never regress out of a
// terminal state and at most one worker holds it in processing.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"resume-tailor/pkg/errs"
	"resume-tailor/pkg/job"
)

type Client struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

type Config struct {
	URL      string
	MaxConns int32
}

func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "resume-tailor"

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{pool: pool, logger: logger}, nil
}

func (c *Client) Close() {
	c.pool.Close()
}

// InitSchema creates the necessary tables and types. Idempotent enough for
// local use; production deployments run a migration tool.
func (c *Client) InitSchema(ctx context.Context) error {
	schema := `
    DO $$ BEGIN
        CREATE TYPE resume_job_status AS ENUM ('pending', 'processing', 'completed', 'failed');
    EXCEPTION WHEN duplicate_object THEN NULL; END $$;

    CREATE TABLE IF NOT EXISTS resume_jobs (
        id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
        owner_id TEXT NOT NULL DEFAULT '',
        status resume_job_status NOT NULL DEFAULT 'pending',
        resume_content TEXT NOT NULL,
        resume_format TEXT NOT NULL DEFAULT 'text',
        job_description TEXT NOT NULL,
        is_jd_url BOOLEAN NOT NULL DEFAULT FALSE,
        output_format TEXT NOT NULL DEFAULT 'text',
        optimization_preset TEXT NOT NULL DEFAULT '',
        profiler_model TEXT NOT NULL DEFAULT '',
        researcher_model TEXT NOT NULL DEFAULT '',
        strategist_model TEXT NOT NULL DEFAULT '',
        attempts INTEGER NOT NULL DEFAULT 0,
        result TEXT,
        error TEXT,
        formatted_result BYTEA,
        result_mime TEXT,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        completed_at TIMESTAMPTZ,
        processing_deadline TIMESTAMPTZ
    );
    CREATE INDEX IF NOT EXISTS idx_resume_jobs_status ON resume_jobs (status);

    -- Outbox table for transactional outbox pattern
    CREATE TABLE IF NOT EXISTS resume_job_outbox (
        id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
        job_id UUID NOT NULL REFERENCES resume_jobs(id) ON DELETE CASCADE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );
    `
	_, err := c.pool.Exec(ctx, schema)
	return err
}

const jobColumns = `id, owner_id, status, resume_content, resume_format, job_description,
    is_jd_url, output_format, optimization_preset, profiler_model, researcher_model,
    strategist_model, attempts, COALESCE(result, ''), COALESCE(error, ''),
    formatted_result, COALESCE(result_mime, ''), created_at, completed_at, processing_deadline`

func scanJob(row pgx.Row) (*job.Job, error) {
	j := &job.Job{}
	err := row.Scan(
		&j.ID, &j.OwnerID, &j.Status, &j.ResumeContent, &j.ResumeFormat, &j.JobDescription,
		&j.IsJobDescriptionURL, &j.OutputFormat, &j.OptimizationPreset, &j.ProfilerModel,
		&j.ResearcherModel, &j.StrategistModel, &j.Attempts, &j.Result, &j.Error,
		&j.FormattedResult, &j.ResultMIME, &j.CreatedAt, &j.CompletedAt, &j.ProcessingDeadline,
	)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// CreateJobAndOutboxMessage inserts the job row and its outbox message in a
// single transaction, so a submitted job cannot exist without a pending
// publication and vice versa.
func (c *Client) CreateJobAndOutboxMessage(ctx context.Context, req *job.SubmissionRequest) (string, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return "", errs.Database("begin submit transaction", err)
	}
	defer tx.Rollback(ctx)

	var jobID string
	insertJob := `INSERT INTO resume_jobs
        (owner_id, resume_content, resume_format, job_description, is_jd_url,
         output_format, optimization_preset, profiler_model, researcher_model, strategist_model)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	if err := tx.QueryRow(ctx, insertJob,
		req.OwnerID, req.ResumeContent, req.ResumeFormat, req.JobDescription,
		req.IsJobDescriptionURL, req.OutputFormat, req.OptimizationPreset,
		req.ProfilerModel, req.ResearcherModel, req.StrategistModel,
	).Scan(&jobID); err != nil {
		return "", errs.Database("insert job", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO resume_job_outbox (job_id) VALUES ($1)`, jobID); err != nil {
		return "", errs.Database("insert outbox message", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", errs.Database("commit submit transaction", err)
	}
	return jobID, nil
}

// GetJob returns the job or a NotFound-shaped error when the id is unknown.
func (c *Client) GetJob(ctx context.Context, jobID string) (*job.Job, error) {
	row := c.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM resume_jobs WHERE id = $1`, jobID)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.Database("get job", err)
	}
	return j, nil
}

// ClaimJob atomically moves a pending job into processing and stamps its
// processing deadline. Returns nil if another worker got there first or the
// job already reached a terminal state.
func (c *Client) ClaimJob(ctx context.Context, jobID string, processingTimeout time.Duration) (*job.Job, error) {
	query := `
        UPDATE resume_jobs
        SET status = 'processing', processing_deadline = NOW() + $2
        WHERE id = $1 AND status = 'pending'
        RETURNING ` + jobColumns
	j, err := scanJob(c.pool.QueryRow(ctx, query, jobID, processingTimeout))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.Database("claim job", err)
	}
	return j, nil
}

// CompleteJob records the terminal success payload. The write is retried
// internally: losing a terminal-state write would corrupt the job's visible
// lifecycle.
func (c *Client) CompleteJob(ctx context.Context, jobID string, res job.Result) error {
	return c.terminalWrite(ctx, jobID, `
        UPDATE resume_jobs
        SET status = 'completed', result = $2, formatted_result = $3, result_mime = $4,
            attempts = attempts + 1, completed_at = NOW(), processing_deadline = NULL
        WHERE id = $1 AND status = 'processing'`,
		jobID, res.Text, res.Formatted, res.MIMEType)
}

// FailJob records the terminal failure message, with the same write retry.
func (c *Client) FailJob(ctx context.Context, jobID string, msg string) error {
	return c.terminalWrite(ctx, jobID, `
        UPDATE resume_jobs
        SET status = 'failed', error = $2, attempts = attempts + 1,
            completed_at = NOW(), processing_deadline = NULL
        WHERE id = $1 AND status = 'processing'`,
		jobID, msg)
}

func (c *Client) terminalWrite(ctx context.Context, jobID string, query string, args ...any) error {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if _, lastErr = c.pool.Exec(ctx, query, args...); lastErr == nil {
			return nil
		}
		c.logger.Error("terminal state write failed, retrying",
			"job_id", jobID, "attempt", attempt, "error", lastErr)
		select {
		case <-ctx.Done():
			return errs.Database("terminal state write interrupted", ctx.Err())
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return errs.Database("terminal state write exhausted retries", lastErr)
}

// MarkPendingForRetry pushes a processing job back to pending, counting the
// finished execution attempt and recording its error.
func (c *Client) MarkPendingForRetry(ctx context.Context, jobID string, msg string) error {
	_, err := c.pool.Exec(ctx, `
        UPDATE resume_jobs
        SET status = 'pending', error = $2, attempts = attempts + 1, processing_deadline = NULL
        WHERE id = $1 AND status = 'processing'`,
		jobID, msg)
	if err != nil {
		return errs.Database("mark job for retry", err)
	}
	return nil
}

// RequeueJob returns a processing job to pending without counting an attempt.
// Used when the execution was rejected by an open circuit before doing work.
func (c *Client) RequeueJob(ctx context.Context, jobID string) error {
	_, err := c.pool.Exec(ctx, `
        UPDATE resume_jobs
        SET status = 'pending', processing_deadline = NULL
        WHERE id = $1 AND status = 'processing'`,
		jobID)
	if err != nil {
		return errs.Database("requeue job", err)
	}
	return nil
}

// RecoverAbandoned flips expired processing jobs back to pending and returns
// their ids so they can be re-enqueued. A job lands here when a worker died
// without committing a terminal state.
func (c *Client) RecoverAbandoned(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx, `
        UPDATE resume_jobs
        SET status = 'pending', processing_deadline = NULL
        WHERE status = 'processing' AND processing_deadline < NOW()
        RETURNING id`)
	if err != nil {
		return nil, errs.Database("recover abandoned jobs", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Database("scan recovered job id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// OutboxMessage represents a row in the resume_job_outbox table.
type OutboxMessage struct {
	ID    string
	JobID string
}

// FetchOutboxMessages retrieves up to 'limit' outbox messages ordered by creation time.
func (c *Client) FetchOutboxMessages(ctx context.Context, limit int) ([]OutboxMessage, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, job_id FROM resume_job_outbox ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, errs.Database("fetch outbox messages", err)
	}
	defer rows.Close()

	var messages []OutboxMessage
	for rows.Next() {
		var m OutboxMessage
		if err := rows.Scan(&m.ID, &m.JobID); err != nil {
			return nil, errs.Database("scan outbox message", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// DeleteOutboxMessage removes an outbox message after successful publish.
func (c *Client) DeleteOutboxMessage(ctx context.Context, id string) error {
	if _, err := c.pool.Exec(ctx, `DELETE FROM resume_job_outbox WHERE id = $1`, id); err != nil {
		return errs.Database("delete outbox message", err)
	}
	return nil
}
