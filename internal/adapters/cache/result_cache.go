package cache

import (
	"fmt"
	"sync"

	"github.com/Amund211/askbox/internal/token"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

type State int

const (
	StateAbsent State = iota
	StatePending
	StateComplete
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateComplete:
		return "complete"
	default:
		return "absent"
	}
}

type Lookup[T any] struct {
	State State
	Value T
}

type resultEntry[T any] struct {
	value    T
	complete bool

	// Closed when the entry completes or is evicted
	settled    chan struct{}
	settleOnce sync.Once
}

func newResultEntry[T any]() *resultEntry[T] {
	return &resultEntry[T]{settled: make(chan struct{})}
}

func (e *resultEntry[T]) settle() {
	e.settleOnce.Do(func() {
		close(e.settled)
	})
}

// ResultCache maps tokens to write-once results.
//
// Capacity eviction removes the oldest reservation first, whether it is pending
// or complete. Reads never refresh an entry, so an unclaimed result is lost once
// `limit` newer reservations have been made.
type ResultCache[T any] struct {
	mu sync.Mutex
	// nil when the limit is zero
	entries *simplelru.LRU[string, *resultEntry[T]]

	generate func() string
	onEvict  func(token string, pending bool)
}

type ResultCacheOption func(*resultCacheOptions)

type resultCacheOptions struct {
	generate func() string
	onEvict  func(token string, pending bool)
}

func WithTokenGenerator(generate func() string) ResultCacheOption {
	return func(o *resultCacheOptions) {
		o.generate = generate
	}
}

// WithEvictionHook registers a function called for every entry dropped due to
// capacity. It runs with the cache lock held and must not call back into the cache.
func WithEvictionHook(onEvict func(token string, pending bool)) ResultCacheOption {
	return func(o *resultCacheOptions) {
		o.onEvict = onEvict
	}
}

func NewResultCache[T any](limit int, opts ...ResultCacheOption) (*ResultCache[T], error) {
	if limit < 0 {
		return nil, fmt.Errorf("result cache limit must be non-negative, got %d", limit)
	}

	options := resultCacheOptions{
		generate: token.Generate,
	}
	for _, opt := range opts {
		opt(&options)
	}

	c := &ResultCache[T]{
		generate: options.generate,
		onEvict:  options.onEvict,
	}

	if limit == 0 {
		return c, nil
	}

	entries, err := simplelru.NewLRU[string, *resultEntry[T]](limit, c.evicted)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru: %w", err)
	}
	c.entries = entries

	return c, nil
}

// Called by the lru with c.mu held
func (c *ResultCache[T]) evicted(token string, e *resultEntry[T]) {
	pending := !e.complete
	e.settle()
	if c.onEvict != nil {
		c.onEvict(token, pending)
	}
}

// Reserve inserts a new pending entry and returns its token
func (c *ResultCache[T]) Reserve() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries == nil {
		token := c.generate()
		e := newResultEntry[T]()
		c.evicted(token, e)
		return token
	}

	token := c.generate()
	for c.entries.Contains(token) {
		token = c.generate()
	}

	c.entries.Add(token, newResultEntry[T]())

	return token
}

// Complete stores value for a pending token and wakes its waiters.
// Returns false without modifying anything if the token is unknown (never issued
// or evicted) or already complete.
func (c *ResultCache[T]) Complete(token string, value T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries == nil {
		return false
	}

	e, ok := c.entries.Peek(token)
	if !ok || e.complete {
		return false
	}

	e.value = value
	e.complete = true
	e.settle()

	return true
}

func (c *ResultCache[T]) Get(token string) Lookup[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries == nil {
		return Lookup[T]{State: StateAbsent}
	}

	e, ok := c.entries.Peek(token)
	if !ok {
		return Lookup[T]{State: StateAbsent}
	}
	if !e.complete {
		return Lookup[T]{State: StatePending}
	}
	return Lookup[T]{State: StateComplete, Value: e.value}
}

// WaitHandle returns a channel that is closed when the entry completes or is
// evicted. ok is false if the token is unknown.
func (c *ResultCache[T]) WaitHandle(token string) (<-chan struct{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries == nil {
		return nil, false
	}

	e, ok := c.entries.Peek(token)
	if !ok {
		return nil, false
	}
	return e.settled, true
}

func (c *ResultCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries == nil {
		return 0
	}
	return c.entries.Len()
}
