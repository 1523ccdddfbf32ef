package ai

import (
	"context"
	"log/slog"
	"time"

	"resume-tailor/pkg/breaker"
	"resume-tailor/pkg/errs"
	"resume-tailor/pkg/observability"
)

// Client executes chat completions against a named external service. Every
// call first consults the service's circuit breaker, then runs the provider
// with bounded retries. Rate-limit responses are surfaced to the caller's
// retry policy rather than retried here.
type Client struct {
	provider    Provider
	breakers    *breaker.Registry
	maxRetries  int
	backoffBase time.Duration
	logger      *slog.Logger

	// sleep is swappable in tests to observe backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(provider Provider, breakers *breaker.Registry, maxRetries int, backoffBase time.Duration, logger *slog.Logger) *Client {
	if maxRetries < 0 {
		maxRetries = 2
	}
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		provider:    provider,
		breakers:    breakers,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// Execute runs one logical completion for the named service. Transient
// provider failures are retried with exponential backoff; the final outcome
// feeds the circuit breaker.
func (c *Client) Execute(ctx context.Context, service string, req Request) (string, error) {
	if err := c.breakers.Allow(service); err != nil {
		observability.AIRequests.WithLabelValues(service, "circuit_open").Inc()
		c.logger.Warn("ai.call.rejected", "service", service, "reason", "circuit_open")
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		content, err := c.provider.Complete(ctx, req)
		if err == nil {
			c.breakers.Success(service)
			observability.AIRequests.WithLabelValues(service, "success").Inc()
			c.logger.Info("ai.call.ok", "service", service, "model", req.Model, "attempt", attempt)
			return content, nil
		}

		lastErr = err
		c.logger.Warn("ai.call.failed",
			"service", service, "model", req.Model, "attempt", attempt,
			"decision", errs.Classify(err).String(), "error", err)
		observability.AIRequests.WithLabelValues(service, "failure").Inc()

		if errs.Classify(err) != errs.DecisionRetry || attempt > c.maxRetries {
			break
		}
		delay := c.backoffBase * (1 << (attempt - 1))
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = errs.Timeout("backoff interrupted", err)
			break
		}
	}

	c.breakers.Failure(service)
	return "", lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
