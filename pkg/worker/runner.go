// Package worker contains the generic job runner: it claims a job, executes
// an injected pipeline function under the job timeout, and applies the
// job-level retry policy using the shared error classifier. The runner is
// composed from interfaces so the queue and store can be swapped for test
// doubles.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"resume-tailor/pkg/errs"
	"resume-tailor/pkg/job"
	"resume-tailor/pkg/observability"
)

// Store is the subset of the job store the runner needs.
type Store interface {
	ClaimJob(ctx context.Context, jobID string, processingTimeout time.Duration) (*job.Job, error)
	CompleteJob(ctx context.Context, jobID string, res job.Result) error
	FailJob(ctx context.Context, jobID string, msg string) error
	MarkPendingForRetry(ctx context.Context, jobID string, msg string) error
	RequeueJob(ctx context.Context, jobID string) error
	RecoverAbandoned(ctx context.Context) ([]string, error)
}

// Queue is the publish side of the job queue.
type Queue interface {
	PublishJob(ctx context.Context, jobID string) error
	PublishToRetry(ctx context.Context, jobID string, delay time.Duration) error
}

// ProcessFunc runs the pipeline for one claimed job.
type ProcessFunc func(ctx context.Context, j *job.Job) (*job.Result, error)

// Outcome tells the consumer loop what to do with the queue message.
type Outcome int

const (
	// OutcomeAck: the message is fully handled (job terminal, retried via
	// the retry queue, or claimed by someone else).
	OutcomeAck Outcome = iota
	// OutcomeRequeue: a transient infrastructure error prevented handling;
	// redeliver the same message.
	OutcomeRequeue
)

type Config struct {
	MaxAttempts       int
	BackoffBase       time.Duration
	ProcessingTimeout time.Duration
}

type Runner struct {
	store   Store
	queue   Queue
	process ProcessFunc
	cfg     Config
	logger  *slog.Logger
}

func NewRunner(store Store, queue Queue, process ProcessFunc, cfg Config, logger *slog.Logger) *Runner {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 5 * time.Second
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{store: store, queue: queue, process: process, cfg: cfg, logger: logger}
}

// Handle executes one delivered job id end to end.
func (r *Runner) Handle(ctx context.Context, jobID string) Outcome {
	log := r.logger.With("job_id", jobID)

	claimed, err := r.store.ClaimJob(ctx, jobID, r.cfg.ProcessingTimeout)
	if err != nil {
		log.Error("failed to claim job", "error", err)
		return OutcomeRequeue
	}
	if claimed == nil {
		// Another worker holds it, or it already reached a terminal state.
		log.Info("job not claimable, skipping")
		return OutcomeAck
	}
	log.Info("job claimed", "attempt", claimed.Attempts+1)

	start := time.Now()
	procCtx, cancel := context.WithTimeout(ctx, r.cfg.ProcessingTimeout)
	res, procErr := r.process(procCtx, claimed)
	cancel()

	if procErr == nil {
		if err := r.store.CompleteJob(ctx, jobID, *res); err != nil {
			// The store already retried the write; requeue so the claim
			// eventually recovers through the processing deadline.
			log.Error("failed to record completion", "error", err)
			return OutcomeRequeue
		}
		observability.JobsProcessed.WithLabelValues("completed").Inc()
		observability.JobDuration.WithLabelValues("completed").Observe(time.Since(start).Seconds())
		log.Info("job completed", "duration_ms", time.Since(start).Milliseconds())
		return OutcomeAck
	}

	log.Error("job processing failed", "error", procErr)
	return r.handleFailure(ctx, log, claimed, procErr)
}

func (r *Runner) handleFailure(ctx context.Context, log *slog.Logger, j *job.Job, procErr error) Outcome {
	// A fast-fail from an open circuit did no work; put the job back
	// without burning an attempt and let the retry queue pace it.
	if errs.KindOf(procErr) == errs.KindCircuitOpen {
		if err := r.store.RequeueJob(ctx, j.ID); err != nil {
			log.Error("failed to requeue job after circuit fast-fail", "error", err)
			return OutcomeRequeue
		}
		if err := r.queue.PublishToRetry(ctx, j.ID, r.cfg.BackoffBase); err != nil {
			log.Error("failed to publish circuit-open retry", "error", err)
			return OutcomeRequeue
		}
		observability.JobsProcessed.WithLabelValues("requeued").Inc()
		log.Warn("job requeued without attempt, circuit open")
		return OutcomeAck
	}

	decision := errs.Classify(procErr)
	attemptsAfter := j.Attempts + 1

	if decision != errs.DecisionFatal && attemptsAfter < r.cfg.MaxAttempts {
		delay := r.backoffDelay(attemptsAfter, procErr)
		if err := r.store.MarkPendingForRetry(ctx, j.ID, procErr.Error()); err != nil {
			log.Error("failed to mark job for retry", "error", err)
			return OutcomeRequeue
		}
		if err := r.queue.PublishToRetry(ctx, j.ID, delay); err != nil {
			log.Error("failed to publish retry", "error", err)
			return OutcomeRequeue
		}
		observability.JobsProcessed.WithLabelValues("retried").Inc()
		log.Info("job scheduled for retry",
			"attempt", attemptsAfter, "max_attempts", r.cfg.MaxAttempts,
			"delay", delay.String(), "decision", decision.String())
		return OutcomeAck
	}

	if err := r.store.FailJob(ctx, j.ID, procErr.Error()); err != nil {
		log.Error("failed to record job failure", "error", err)
		return OutcomeRequeue
	}
	observability.JobsProcessed.WithLabelValues("failed").Inc()
	log.Warn("job permanently failed",
		"attempts", attemptsAfter, "decision", decision.String())
	return OutcomeAck
}

// backoffDelay computes the exponential job-level backoff. A rate-limit
// Retry-After hint is honored as the floor.
func (r *Runner) backoffDelay(attempt int, procErr error) time.Duration {
	delay := r.cfg.BackoffBase * (1 << (attempt - 1))
	if ra := errs.RetryAfterOf(procErr); ra > delay {
		delay = ra
	}
	return delay
}

// RunReaper periodically recovers jobs abandoned in processing past their
// deadline (a worker crashed without committing a terminal state) and feeds
// them back into the queue.
func (r *Runner) RunReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.reapOnce(ctx); err != nil {
				r.logger.Error("abandoned job sweep failed", "error", err)
			}
		}
	}
}

func (r *Runner) reapOnce(ctx context.Context) error {
	ids, err := r.store.RecoverAbandoned(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := r.queue.PublishJob(ctx, id); err != nil {
			return fmt.Errorf("republish recovered job %s: %w", id, err)
		}
		observability.JobsProcessed.WithLabelValues("recovered").Inc()
		r.logger.Warn("recovered abandoned job", "job_id", id)
	}
	return nil
}
