// Package errs defines the tagged error variants produced at the edges of the
// system and the shared classification table that decides whether a failure is
// worth retrying. Both the per-call retry loop in pkg/ai and the per-job retry
// policy in pkg/worker consult the same table.
package errs

import (
	"errors"
	"fmt"
	"time"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindParsing
	KindUnsupportedFormat
	KindCorruptDocument
	KindTimeout
	KindRateLimited
	KindUnauthorized
	KindUpstreamServer
	KindUpstreamClient
	KindNetwork
	KindNoContent
	KindCircuitOpen
	KindDatabase
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindParsing:
		return "parsing"
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindCorruptDocument:
		return "corrupt_document"
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	case KindUnauthorized:
		return "unauthorized"
	case KindUpstreamServer:
		return "upstream_server"
	case KindUpstreamClient:
		return "upstream_client"
	case KindNetwork:
		return "network"
	case KindNoContent:
		return "no_content"
	case KindCircuitOpen:
		return "circuit_open"
	case KindDatabase:
		return "database"
	default:
		return "unknown"
	}
}

// Error is the single error type crossing package boundaries. Status is only
// set for upstream HTTP failures, RetryAfter only for rate limits.
type Error struct {
	Kind       Kind
	Msg        string
	Status     int
	RetryAfter time.Duration
	Cause      error
}

func (e *Error) Error() string {
	switch {
	case e.Cause != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}

func Parsing(msg string, cause error) *Error {
	return &Error{Kind: KindParsing, Msg: msg, Cause: cause}
}

func UnsupportedFormat(format string) *Error {
	return &Error{Kind: KindUnsupportedFormat, Msg: "unsupported document format: " + format}
}

func CorruptDocument(msg string) *Error {
	return &Error{Kind: KindCorruptDocument, Msg: msg}
}

func Timeout(msg string, cause error) *Error {
	return &Error{Kind: KindTimeout, Msg: msg, Cause: cause}
}

func RateLimited(retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Msg: "upstream rate limit", Status: 429, RetryAfter: retryAfter}
}

func Unauthorized(status int) *Error {
	return &Error{Kind: KindUnauthorized, Msg: "upstream rejected credentials", Status: status}
}

func UpstreamServer(status int, msg string) *Error {
	return &Error{Kind: KindUpstreamServer, Msg: msg, Status: status}
}

func UpstreamClient(status int, msg string) *Error {
	return &Error{Kind: KindUpstreamClient, Msg: msg, Status: status}
}

func Network(msg string, cause error) *Error {
	return &Error{Kind: KindNetwork, Msg: msg, Cause: cause}
}

func NoContent(msg string) *Error {
	return &Error{Kind: KindNoContent, Msg: msg}
}

func CircuitOpen(service string) *Error {
	return &Error{Kind: KindCircuitOpen, Msg: "circuit open for service " + service}
}

func Database(msg string, cause error) *Error {
	return &Error{Kind: KindDatabase, Msg: msg, Cause: cause}
}

// KindOf unwraps err to the tagged variant. Returns KindUnknown for errors
// produced outside this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// RetryAfterOf returns the rate-limit hint carried by err, zero otherwise.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindRateLimited {
		return e.RetryAfter
	}
	return 0
}
