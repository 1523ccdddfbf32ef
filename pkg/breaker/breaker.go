// Package breaker implements a per-service circuit breaker registry. The
// registry is an injected dependency shared by every worker in the process;
// transitions are serialized by a single mutex so concurrent callers of the
// same service never race a read-then-write update.
package breaker

import (
	"log/slog"
	"sync"
	"time"

	"resume-tailor/pkg/errs"
	"resume-tailor/pkg/observability"
)

type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

type Config struct {
	// Threshold is the number of consecutive failures that opens the circuit.
	Threshold int
	// ResetTimeout is how long an open circuit blocks calls before allowing
	// a single half-open trial.
	ResetTimeout time.Duration
}

type circuit struct {
	state               State
	consecutiveFailures int
	lastFailureTime     time.Time
	lastSuccessTime     time.Time
	trialInFlight       bool
}

type Registry struct {
	mu       sync.Mutex
	cfg      Config
	circuits map[string]*circuit
	logger   *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg,
		circuits: make(map[string]*circuit),
		logger:   logger,
		now:      time.Now,
	}
}

// circuitFor returns the named circuit, creating it lazily. Caller holds mu.
func (r *Registry) circuitFor(service string) *circuit {
	c, ok := r.circuits[service]
	if !ok {
		c = &circuit{state: Closed}
		r.circuits[service] = c
	}
	return c
}

// Allow reports whether a call to the named service may proceed. While the
// circuit is open and the reset timeout has not elapsed it fails immediately
// with a CircuitOpen error and no call is issued. Once the timeout elapses the
// circuit moves to half-open and exactly one trial call is let through.
func (r *Registry) Allow(service string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.circuitFor(service)
	switch c.state {
	case Closed:
		return nil
	case Open:
		if r.now().Sub(c.lastFailureTime) < r.cfg.ResetTimeout {
			return errs.CircuitOpen(service)
		}
		c.state = HalfOpen
		c.trialInFlight = true
		r.setGauge(service, c.state)
		r.logger.Info("circuit half-open, allowing trial call", "service", service)
		return nil
	default: // HalfOpen
		if c.trialInFlight {
			return errs.CircuitOpen(service)
		}
		c.trialInFlight = true
		return nil
	}
}

// Success records a successful call: failures reset to zero and a half-open
// circuit closes.
func (r *Registry) Success(service string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.circuitFor(service)
	c.consecutiveFailures = 0
	c.lastSuccessTime = r.now()
	c.trialInFlight = false
	if c.state != Closed {
		r.logger.Info("circuit closed", "service", service)
	}
	c.state = Closed
	r.setGauge(service, c.state)
}

// Failure records a final call failure. A half-open trial failure reopens the
// circuit; a closed circuit opens once the failure threshold is crossed.
func (r *Registry) Failure(service string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.circuitFor(service)
	c.consecutiveFailures++
	c.lastFailureTime = r.now()
	c.trialInFlight = false

	switch c.state {
	case HalfOpen:
		c.state = Open
		r.logger.Warn("trial call failed, circuit reopened", "service", service)
	case Closed:
		if c.consecutiveFailures >= r.cfg.Threshold {
			c.state = Open
			r.logger.Warn("failure threshold crossed, circuit opened",
				"service", service, "consecutive_failures", c.consecutiveFailures)
		}
	}
	r.setGauge(service, c.state)
}

// Reset manually closes the named circuit and clears its failure count.
func (r *Registry) Reset(service string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.circuitFor(service)
	c.state = Closed
	c.consecutiveFailures = 0
	c.trialInFlight = false
	r.setGauge(service, c.state)
	r.logger.Info("circuit manually reset", "service", service)
}

// StateOf returns the current state and consecutive failure count.
func (r *Registry) StateOf(service string) (State, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.circuitFor(service)
	return c.state, c.consecutiveFailures
}

func (r *Registry) setGauge(service string, s State) {
	observability.BreakerState.WithLabelValues(service).Set(float64(s))
}
