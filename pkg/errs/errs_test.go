package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Decision
	}{
		{"validation", Validation("empty resume"), DecisionFatal},
		{"parsing", Parsing("bad pdf", nil), DecisionFatal},
		{"unsupported format", UnsupportedFormat("docx"), DecisionFatal},
		{"corrupt document", CorruptDocument("empty body"), DecisionFatal},
		{"unauthorized", Unauthorized(401), DecisionFatal},
		{"upstream 4xx", UpstreamClient(422, "bad request"), DecisionFatal},
		{"no content extracted", NoContent("nothing scraped"), DecisionFatal},
		{"rate limited", RateLimited(10 * time.Second), DecisionRateLimited},
		{"timeout", Timeout("call deadline", nil), DecisionRetry},
		{"upstream 5xx", UpstreamServer(503, "unavailable"), DecisionRetry},
		{"network", Network("conn refused", nil), DecisionRetry},
		{"database", Database("write failed", nil), DecisionRetry},
		{"circuit open", CircuitOpen("profiler"), DecisionRetry},
		{"context deadline", context.DeadlineExceeded, DecisionRetry},
		{"unknown", errors.New("boom"), DecisionRetry},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestClassifyWrapped(t *testing.T) {
	wrapped := fmt.Errorf("stage research: %w", UpstreamServer(500, "boom"))
	assert.Equal(t, DecisionRetry, Classify(wrapped))
	assert.Equal(t, KindUpstreamServer, KindOf(wrapped))
}

func TestRetryAfterOf(t *testing.T) {
	err := fmt.Errorf("call failed: %w", RateLimited(30*time.Second))
	assert.Equal(t, 30*time.Second, RetryAfterOf(err))
	assert.Zero(t, RetryAfterOf(UpstreamServer(500, "boom")))
	assert.Zero(t, RetryAfterOf(errors.New("plain")))
}

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Network("provider unreachable", cause)
	assert.Contains(t, err.Error(), "network")
	assert.Contains(t, err.Error(), "provider unreachable")
	assert.ErrorIs(t, err, cause)
}
