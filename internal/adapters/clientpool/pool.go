package clientpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

var ErrNoCapacity = errors.New("no client capacity available")

type Factory[C any] func(ctx context.Context) (C, error)

// Pool hands out at most `max` clients at a time and reuses returned clients.
// Lease never blocks waiting for capacity.
type Pool[C any] struct {
	max     int
	factory Factory[C]

	// One permit per outstanding lease
	permits *semaphore.Weighted

	mu     sync.Mutex
	idle   []C
	leased int
}

func New[C any](max int, factory Factory[C]) (*Pool[C], error) {
	if max <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", max)
	}
	if factory == nil {
		return nil, fmt.Errorf("pool factory must not be nil")
	}

	return &Pool[C]{
		max:     max,
		factory: factory,
		permits: semaphore.NewWeighted(int64(max)),
		idle:    make([]C, 0, max),
	}, nil
}

type Lease[C any] struct {
	client      C
	pool        *Pool[C]
	releaseOnce sync.Once
}

func (l *Lease[C]) Client() C {
	return l.client
}

// Release returns the client to the pool. Calling it more than once is a no-op.
func (l *Lease[C]) Release() {
	l.releaseOnce.Do(func() {
		l.pool.put(l.client)
	})
}

// Lease returns an idle client, or a newly built one if the pool is not at capacity.
// Returns ErrNoCapacity when `max` clients are already leased.
// Other errors come from the factory.
func (p *Pool[C]) Lease(ctx context.Context) (*Lease[C], error) {
	if !p.permits.TryAcquire(1) {
		return nil, ErrNoCapacity
	}

	if client, ok := p.popIdle(); ok {
		return &Lease[C]{client: client, pool: p}, nil
	}

	client, err := p.factory(ctx)
	if err != nil {
		p.permits.Release(1)
		return nil, fmt.Errorf("failed to build client: %w", err)
	}

	p.mu.Lock()
	p.leased++
	p.mu.Unlock()

	return &Lease[C]{client: client, pool: p}, nil
}

func (p *Pool[C]) popIdle() (C, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.idle) == 0 {
		var empty C
		return empty, false
	}
	p.leased++

	last := len(p.idle) - 1
	client := p.idle[last]
	var empty C
	p.idle[last] = empty
	p.idle = p.idle[:last]

	return client, true
}

func (p *Pool[C]) put(client C) {
	p.mu.Lock()
	p.idle = append(p.idle, client)
	p.leased--
	p.mu.Unlock()

	// Only hand out the permit once the client is visible in the idle set
	p.permits.Release(1)
}

type Stats struct {
	Max    int
	Idle   int
	Leased int
}

func (p *Pool[C]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Max:    p.max,
		Idle:   len(p.idle),
		Leased: p.leased,
	}
}
