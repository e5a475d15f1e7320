package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secevents/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_RunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	runner := RunnerFunc(func(context.Context) (*domain.RunStats, error) {
		if runs.Add(1) == 3 {
			cancel()
		}
		return &domain.RunStats{}, nil
	})

	err := NewScheduler(runner, 5*time.Millisecond, time.Second, testLogger()).Start(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(3), runs.Load())
}

func TestScheduler_ContinuesAfterFailedRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	runner := RunnerFunc(func(context.Context) (*domain.RunStats, error) {
		n := runs.Add(1)
		if n == 2 {
			cancel()
		}
		return nil, fmt.Errorf("%w: upstream 502", domain.ErrSourceFetch)
	})

	err := NewScheduler(runner, 5*time.Millisecond, time.Second, testLogger()).Start(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(2), runs.Load())
}

func TestScheduler_StopsOnConfigurationError(t *testing.T) {
	var runs atomic.Int32
	runner := RunnerFunc(func(context.Context) (*domain.RunStats, error) {
		runs.Add(1)
		return nil, fmt.Errorf("%w: no begin", domain.ErrConfiguration)
	})

	err := NewScheduler(runner, time.Millisecond, time.Second, testLogger()).Start(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_AppliesRunTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sawDeadline atomic.Bool
	runner := RunnerFunc(func(runCtx context.Context) (*domain.RunStats, error) {
		_, ok := runCtx.Deadline()
		sawDeadline.Store(ok)
		cancel()
		return nil, nil
	})

	_ = NewScheduler(runner, time.Hour, time.Minute, testLogger()).Start(ctx)
	assert.True(t, sawDeadline.Load())
}
