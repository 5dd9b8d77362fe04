package jobs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type countingDeleter struct {
	calls atomic.Int32
	err   error
}

func (d *countingDeleter) DeleteExpired(ctx context.Context) (int64, error) {
	d.calls.Add(1)
	return 3, d.err
}

func TestSweeperRunsPeriodically(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &countingDeleter{}
	s := NewSweeper(store, 5*time.Millisecond, slog.New(slog.DiscardHandler))
	s.Start()

	require.Eventually(t, func() bool { return store.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Close())
}

func TestSweeperLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	store := &countingDeleter{err: errors.New("connection reset")}
	s := NewSweeper(store, 0, slog.New(slog.NewTextHandler(&buf, nil)))

	assert.Equal(t, DefaultSweepInterval, s.interval)

	s.Sweep(context.Background())
	assert.Equal(t, int32(1), store.calls.Load())
	assert.Contains(t, buf.String(), "failed to delete expired sessions")
}
