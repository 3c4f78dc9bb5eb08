package app_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Amund211/askbox/internal/app"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func TestRunner(t *testing.T) {
	t.Parallel()

	t.Run("tasks outlive the scheduling context", func(t *testing.T) {
		t.Parallel()

		runner := app.NewRunner()

		ctx, cancel := context.WithCancel(context.WithValue(t.Context(), ctxKey{}, "value"))
		release := make(chan struct{})
		result := make(chan string, 1)

		require.NoError(t, runner.Go(ctx, func(ctx context.Context) {
			<-release
			if ctx.Err() != nil {
				result <- "cancelled"
				return
			}
			result <- ctx.Value(ctxKey{}).(string)
		}))

		cancel()
		close(release)
		require.Equal(t, "value", <-result)

		require.NoError(t, runner.Shutdown(t.Context()))
	})

	t.Run("shutdown waits for running tasks", func(t *testing.T) {
		t.Parallel()

		runner := app.NewRunner()

		var finished atomic.Int32
		for range 5 {
			require.NoError(t, runner.Go(t.Context(), func(ctx context.Context) {
				time.Sleep(20 * time.Millisecond)
				finished.Add(1)
			}))
		}

		require.NoError(t, runner.Shutdown(t.Context()))
		require.Equal(t, int32(5), finished.Load())

		require.ErrorIs(t, runner.Go(t.Context(), func(ctx context.Context) {}), app.ErrRunnerClosed)
	})

	t.Run("shutdown timeout cancels running tasks", func(t *testing.T) {
		t.Parallel()

		runner := app.NewRunner()

		cancelled := make(chan struct{})
		require.NoError(t, runner.Go(t.Context(), func(ctx context.Context) {
			<-ctx.Done()
			close(cancelled)
		}))

		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
		defer cancel()

		err := runner.Shutdown(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)

		select {
		case <-cancelled:
		default:
			require.FailNow(t, "task was not cancelled")
		}
	})
}
