package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/appointment-engine/internal/application"
)

type targetStub struct {
	calls atomic.Int32
	err   error
}

func (s *targetStub) Sweep(context.Context) (application.SweepResult, error) {
	s.calls.Add(1)
	return application.SweepResult{CompletedBreaks: 1}, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{}, discardLogger())
	assert.Error(t, err)

	_, err = New(&targetStub{}, Config{Schedule: "every now and then"}, discardLogger())
	assert.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	t.Parallel()

	stub := &targetStub{}
	s, err := New(stub, Config{}, discardLogger())
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, int32(1), stub.calls.Load())

	stub.err = errors.New("store offline")
	assert.ErrorIs(t, s.RunOnce(context.Background()), stub.err)
	assert.Equal(t, int64(2), s.Runs())
}

func TestScheduledRuns(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the cron scheduler")
	}
	t.Parallel()

	stub := &targetStub{}
	s, err := New(stub, Config{Schedule: "@every 1s", Timeout: time.Second}, discardLogger())
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return stub.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	after := stub.calls.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, after, stub.calls.Load(), "no sweeps after Stop")
}
