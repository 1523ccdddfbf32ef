package errs

import (
	"context"
	"errors"
)

// Decision is the retry verdict for a failure.
type Decision int

const (
	// DecisionFatal means retrying cannot succeed: bad input, broken
	// documents, or misconfigured credentials.
	DecisionFatal Decision = iota
	// DecisionRetry covers transient upstream and infrastructure failures.
	DecisionRetry
	// DecisionRateLimited is retryable but the carried Retry-After value
	// must be honored as the minimum backoff.
	DecisionRateLimited
)

func (d Decision) String() string {
	switch d {
	case DecisionRetry:
		return "retry"
	case DecisionRateLimited:
		return "rate_limited"
	default:
		return "fatal"
	}
}

// Classify maps an error to its retry decision. It matches over the closed
// variant set, never over message text.
func Classify(err error) Decision {
	switch KindOf(err) {
	case KindValidation, KindParsing, KindUnsupportedFormat, KindCorruptDocument,
		KindUnauthorized, KindUpstreamClient, KindNoContent:
		return DecisionFatal
	case KindRateLimited:
		return DecisionRateLimited
	case KindTimeout, KindUpstreamServer, KindNetwork, KindDatabase, KindCircuitOpen:
		return DecisionRetry
	}
	// Untagged error: a cancelled or expired context is transient, anything
	// else is retried too since the attempt ceiling bounds the damage.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return DecisionRetry
	}
	return DecisionRetry
}
