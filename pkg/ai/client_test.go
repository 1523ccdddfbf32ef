package ai

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-tailor/pkg/breaker"
	"resume-tailor/pkg/errs"
)

// scriptedProvider returns the queued errors in order, then succeeds.
type scriptedProvider struct {
	failures []error
	calls    int
	content  string
}

func (p *scriptedProvider) Complete(_ context.Context, _ Request) (string, error) {
	p.calls++
	if len(p.failures) > 0 {
		err := p.failures[0]
		p.failures = p.failures[1:]
		return "", err
	}
	return p.content, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func newTestClient(p Provider, reg *breaker.Registry) (*Client, *[]time.Duration) {
	c := NewClient(p, reg, 2, time.Second, testLogger())
	delays := &[]time.Duration{}
	c.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return c, delays
}

func TestRetryThenSuccess(t *testing.T) {
	p := &scriptedProvider{
		failures: []error{errs.UpstreamServer(500, "boom"), errs.Network("refused", nil)},
		content:  "tailored resume",
	}
	reg := breaker.NewRegistry(breaker.Config{Threshold: 5}, testLogger())
	c, delays := newTestClient(p, reg)

	out, err := c.Execute(context.Background(), "profiler", Request{Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "tailored resume", out)
	assert.Equal(t, 3, p.calls)

	// Exactly two backoff delays, exponentially non-decreasing.
	require.Len(t, *delays, 2)
	assert.Equal(t, time.Second, (*delays)[0])
	assert.Equal(t, 2*time.Second, (*delays)[1])

	// Success resets the breaker's failure streak.
	state, failures := reg.StateOf("profiler")
	assert.Equal(t, breaker.Closed, state)
	assert.Zero(t, failures)
}

func TestRetryExhaustion(t *testing.T) {
	p := &scriptedProvider{failures: []error{
		errs.UpstreamServer(503, "down"),
		errs.UpstreamServer(503, "down"),
		errs.UpstreamServer(503, "down"),
	}}
	reg := breaker.NewRegistry(breaker.Config{Threshold: 5}, testLogger())
	c, _ := newTestClient(p, reg)

	_, err := c.Execute(context.Background(), "profiler", Request{})
	require.Error(t, err)
	assert.Equal(t, errs.KindUpstreamServer, errs.KindOf(err))
	assert.Equal(t, 3, p.calls, "initial attempt plus two retries")

	// Exhaustion counts as one breaker failure, not three.
	_, failures := reg.StateOf("profiler")
	assert.Equal(t, 1, failures)
}

func TestFatalErrorNotRetried(t *testing.T) {
	p := &scriptedProvider{failures: []error{errs.Unauthorized(401)}}
	reg := breaker.NewRegistry(breaker.Config{Threshold: 5}, testLogger())
	c, delays := newTestClient(p, reg)

	_, err := c.Execute(context.Background(), "profiler", Request{})
	require.Error(t, err)
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))
	assert.Equal(t, 1, p.calls)
	assert.Empty(t, *delays)
}

func TestRateLimitSurfacedNotRetried(t *testing.T) {
	p := &scriptedProvider{failures: []error{errs.RateLimited(42 * time.Second)}}
	reg := breaker.NewRegistry(breaker.Config{Threshold: 5}, testLogger())
	c, delays := newTestClient(p, reg)

	_, err := c.Execute(context.Background(), "researcher", Request{})
	require.Error(t, err)
	assert.Equal(t, errs.KindRateLimited, errs.KindOf(err))
	assert.Equal(t, 42*time.Second, errs.RetryAfterOf(err))
	assert.Equal(t, 1, p.calls)
	assert.Empty(t, *delays)
}

func TestOpenCircuitIssuesNoCalls(t *testing.T) {
	p := &scriptedProvider{content: "unused"}
	reg := breaker.NewRegistry(breaker.Config{Threshold: 1, ResetTimeout: time.Hour}, testLogger())
	c, _ := newTestClient(p, reg)

	reg.Failure("strategist") // threshold 1: circuit opens

	_, err := c.Execute(context.Background(), "strategist", Request{})
	require.Error(t, err)
	assert.Equal(t, errs.KindCircuitOpen, errs.KindOf(err))
	assert.Zero(t, p.calls, "open circuit must short-circuit before the provider")
}

func TestHalfOpenTrialClosesOnSuccess(t *testing.T) {
	p := &scriptedProvider{content: "ok"}
	reg := breaker.NewRegistry(breaker.Config{Threshold: 1, ResetTimeout: time.Hour}, testLogger())
	c, _ := newTestClient(p, reg)

	reg.Failure("strategist")
	reg.Reset("strategist") // operator intervention reopens traffic

	out, err := c.Execute(context.Background(), "strategist", Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	state, _ := reg.StateOf("strategist")
	assert.Equal(t, breaker.Closed, state)
}
