package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

var ErrRunnerClosed = errors.New("runner is shut down")

var errShutdownTimedOut = errors.New("shutdown timed out")

// Runner runs background tasks that outlive the request that scheduled them
type Runner struct {
	group *errgroup.Group

	// Cancelled when a graceful shutdown runs out of time
	stopCtx context.Context
	stop    context.CancelCauseFunc

	mu     sync.Mutex
	closed bool
}

func NewRunner() *Runner {
	stopCtx, stop := context.WithCancelCause(context.Background())
	return &Runner{
		group:   &errgroup.Group{},
		stopCtx: stopCtx,
		stop:    stop,
	}
}

// Go runs task in the background.
//
// The task context keeps the values of ctx but not its cancellation. It is only
// cancelled if a Shutdown gives up waiting.
func (r *Runner) Go(ctx context.Context, task func(ctx context.Context)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRunnerClosed
	}

	taskCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	stopAfter := context.AfterFunc(r.stopCtx, func() {
		cancel(context.Cause(r.stopCtx))
	})

	r.group.Go(func() error {
		defer cancel(nil)
		defer stopAfter()

		task(taskCtx)
		return nil
	})
	return nil
}

// Shutdown stops accepting tasks and waits for the running ones.
//
// If ctx is done first the remaining tasks are cancelled and waited for.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = r.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.stop(ErrRunnerClosed)
		return nil
	case <-ctx.Done():
		r.stop(errShutdownTimedOut)
		<-done
		return fmt.Errorf("background tasks cancelled: %w", context.Cause(ctx))
	}
}
