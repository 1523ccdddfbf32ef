package breaker

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-tailor/pkg/errs"
)

func newTestRegistry(threshold int, reset time.Duration) (*Registry, *time.Time) {
	r := NewRegistry(Config{Threshold: threshold, ResetTimeout: reset},
		slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	return r, &now
}

func TestOpensAfterThreshold(t *testing.T) {
	r, _ := newTestRegistry(3, 30*time.Second)

	for i := 0; i < 2; i++ {
		require.NoError(t, r.Allow("profiler"))
		r.Failure("profiler")
	}
	state, failures := r.StateOf("profiler")
	assert.Equal(t, Closed, state)
	assert.Equal(t, 2, failures)

	require.NoError(t, r.Allow("profiler"))
	r.Failure("profiler")

	state, failures = r.StateOf("profiler")
	assert.Equal(t, Open, state)
	assert.Equal(t, 3, failures)

	err := r.Allow("profiler")
	require.Error(t, err)
	assert.Equal(t, errs.KindCircuitOpen, errs.KindOf(err))
}

func TestHalfOpenSingleTrial(t *testing.T) {
	r, now := newTestRegistry(1, 30*time.Second)

	require.NoError(t, r.Allow("researcher"))
	r.Failure("researcher")
	state, _ := r.StateOf("researcher")
	require.Equal(t, Open, state)

	// Before the reset timeout the circuit stays shut.
	*now = now.Add(10 * time.Second)
	assert.Error(t, r.Allow("researcher"))

	// After the timeout exactly one trial is admitted.
	*now = now.Add(25 * time.Second)
	require.NoError(t, r.Allow("researcher"))
	assert.Error(t, r.Allow("researcher"), "second concurrent trial must be rejected")

	r.Success("researcher")
	state, failures := r.StateOf("researcher")
	assert.Equal(t, Closed, state)
	assert.Zero(t, failures)
	assert.NoError(t, r.Allow("researcher"))
}

func TestHalfOpenTrialFailureReopens(t *testing.T) {
	r, now := newTestRegistry(1, 30*time.Second)

	require.NoError(t, r.Allow("strategist"))
	r.Failure("strategist")

	*now = now.Add(time.Minute)
	require.NoError(t, r.Allow("strategist"))
	r.Failure("strategist")

	state, _ := r.StateOf("strategist")
	assert.Equal(t, Open, state)
	assert.Error(t, r.Allow("strategist"))
}

func TestSuccessResetsFailureCount(t *testing.T) {
	r, _ := newTestRegistry(3, 30*time.Second)

	r.Failure("profiler")
	r.Failure("profiler")
	r.Success("profiler")
	_, failures := r.StateOf("profiler")
	assert.Zero(t, failures)

	// The streak must be consecutive: two more failures do not open.
	r.Failure("profiler")
	r.Failure("profiler")
	state, _ := r.StateOf("profiler")
	assert.Equal(t, Closed, state)
}

func TestManualReset(t *testing.T) {
	r, _ := newTestRegistry(1, time.Hour)

	r.Failure("profiler")
	state, _ := r.StateOf("profiler")
	require.Equal(t, Open, state)

	r.Reset("profiler")
	state, failures := r.StateOf("profiler")
	assert.Equal(t, Closed, state)
	assert.Zero(t, failures)
	assert.NoError(t, r.Allow("profiler"))
}

func TestServicesAreIndependent(t *testing.T) {
	r, _ := newTestRegistry(1, time.Hour)

	r.Failure("profiler")
	assert.Error(t, r.Allow("profiler"))
	assert.NoError(t, r.Allow("researcher"))
}
