package ratelimiting

import (
	"context"
	"slices"
	"sync"
	"time"
)

// WindowLimiter lets at most `limit` operations start within any sliding window
// of length `window`. Used to stay within the request budget of an upstream API.
type WindowLimiter struct {
	limit     int
	window    time.Duration
	nowFunc   func() time.Time
	afterFunc func(time.Duration) <-chan time.Time

	// At most `limit` callers may be waiting or running at once
	slots chan struct{}

	mu sync.Mutex
	// Start times of the last `limit` operations, oldest first.
	// Slots that are checked out are missing from the slice.
	startedAt []time.Time
}

func NewWindowLimiter(
	limit int,
	window time.Duration,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) *WindowLimiter {
	slots := make(chan struct{}, limit)
	for range limit {
		slots <- struct{}{}
	}

	// Pretend the previous operations happened a full window ago
	startedAt := make([]time.Time, limit)
	longAgo := nowFunc().Add(-window)
	for i := range limit {
		startedAt[i] = longAgo
	}

	return &WindowLimiter{
		limit:     limit,
		window:    window,
		nowFunc:   nowFunc,
		afterFunc: afterFunc,

		slots:     slots,
		startedAt: startedAt,
	}
}

func insertSorted(times []time.Time, t time.Time) []time.Time {
	i, _ := slices.BinarySearchFunc(times, t, func(a, b time.Time) int {
		return a.Compare(b)
	})
	return slices.Insert(times, i, t)
}

// Limit waits until the window allows another operation and runs it.
//
// If ctx has a deadline, Limit gives up immediately when the required wait plus
// maxOperationTime would not fit before it. Returns whether operation ran.
func (l *WindowLimiter) Limit(ctx context.Context, maxOperationTime time.Duration, operation func()) bool {
	if ctx.Err() != nil {
		return false
	}

	select {
	case <-l.slots:
		defer func() {
			l.slots <- struct{}{}
		}()
	case <-ctx.Done():
		return false
	}

	oldest, ok := l.takeOldest(ctx, maxOperationTime)
	if !ok {
		return false
	}
	// Put back the original start time unless the operation actually starts
	toInsert := oldest
	defer func() {
		l.putBack(toInsert)
	}()

	if wait := l.waitFor(oldest); wait > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-l.afterFunc(wait):
		}
	}

	toInsert = l.nowFunc()
	operation()
	return true
}

func (l *WindowLimiter) waitFor(startedAt time.Time) time.Duration {
	return l.window - l.nowFunc().Sub(startedAt)
}

func (l *WindowLimiter) takeOldest(ctx context.Context, maxOperationTime time.Duration) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	oldest := l.startedAt[0]

	if deadline, ok := ctx.Deadline(); ok {
		if l.waitFor(oldest)+maxOperationTime > deadline.Sub(l.nowFunc()) {
			return time.Time{}, false
		}
	}

	l.startedAt = l.startedAt[1:]
	return oldest, true
}

func (l *WindowLimiter) putBack(startedAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.startedAt = insertSorted(l.startedAt, startedAt)
}
