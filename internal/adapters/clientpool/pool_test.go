package clientpool_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Amund211/askbox/internal/adapters/clientpool"
	"github.com/stretchr/testify/require"
)

type testClient struct {
	id int
}

func countingFactory() (clientpool.Factory[*testClient], *atomic.Int32) {
	built := &atomic.Int32{}
	return func(ctx context.Context) (*testClient, error) {
		id := built.Add(1)
		return &testClient{id: int(id)}, nil
	}, built
}

func TestNew(t *testing.T) {
	t.Parallel()

	factory, _ := countingFactory()

	for _, max := range []int{-1, 0} {
		t.Run(fmt.Sprintf("max %d", max), func(t *testing.T) {
			t.Parallel()

			_, err := clientpool.New(max, factory)
			require.Error(t, err)
		})
	}

	t.Run("nil factory", func(t *testing.T) {
		t.Parallel()

		_, err := clientpool.New[*testClient](1, nil)
		require.Error(t, err)
	})
}

func TestPool(t *testing.T) {
	t.Parallel()

	t.Run("admission", func(t *testing.T) {
		t.Parallel()

		for _, max := range []int{1, 2, 5} {
			t.Run(fmt.Sprintf("max %d", max), func(t *testing.T) {
				t.Parallel()

				ctx := t.Context()
				factory, built := countingFactory()
				pool, err := clientpool.New(max, factory)
				require.NoError(t, err)

				leases := make([]*clientpool.Lease[*testClient], 0, max)
				for range max {
					lease, err := pool.Lease(ctx)
					require.NoError(t, err)
					leases = append(leases, lease)
				}
				require.Equal(t, clientpool.Stats{Max: max, Idle: 0, Leased: max}, pool.Stats())

				_, err = pool.Lease(ctx)
				require.ErrorIs(t, err, clientpool.ErrNoCapacity)

				leases[0].Release()
				require.Equal(t, clientpool.Stats{Max: max, Idle: 1, Leased: max - 1}, pool.Stats())

				lease, err := pool.Lease(ctx)
				require.NoError(t, err)
				require.Same(t, leases[0].Client(), lease.Client(), "released client should be reused")

				_, err = pool.Lease(ctx)
				require.ErrorIs(t, err, clientpool.ErrNoCapacity)

				require.Equal(t, int32(max), built.Load())
			})
		}
	})

	t.Run("release is idempotent", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		factory, built := countingFactory()
		pool, err := clientpool.New(1, factory)
		require.NoError(t, err)

		lease, err := pool.Lease(ctx)
		require.NoError(t, err)

		lease.Release()
		lease.Release()
		require.Equal(t, clientpool.Stats{Max: 1, Idle: 1, Leased: 0}, pool.Stats())

		second, err := pool.Lease(ctx)
		require.NoError(t, err)

		_, err = pool.Lease(ctx)
		require.ErrorIs(t, err, clientpool.ErrNoCapacity, "double release must not create capacity")

		second.Release()
		require.Equal(t, int32(1), built.Load())
	})

	t.Run("construction failure does not consume capacity", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		errMissingKey := errors.New("missing key")
		fail := true
		pool, err := clientpool.New(1, func(ctx context.Context) (*testClient, error) {
			if fail {
				return nil, errMissingKey
			}
			return &testClient{id: 1}, nil
		})
		require.NoError(t, err)

		for range 3 {
			_, err := pool.Lease(ctx)
			require.ErrorIs(t, err, errMissingKey)
			require.NotErrorIs(t, err, clientpool.ErrNoCapacity)
			require.Equal(t, clientpool.Stats{Max: 1, Idle: 0, Leased: 0}, pool.Stats())
		}

		fail = false
		lease, err := pool.Lease(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, lease.Client().id)
	})

	t.Run("concurrent leases never exceed max", func(t *testing.T) {
		t.Parallel()

		const max = 4
		ctx := t.Context()
		factory, built := countingFactory()
		pool, err := clientpool.New(max, factory)
		require.NoError(t, err)

		var holding atomic.Int32
		var peak atomic.Int32
		var admitted atomic.Int32

		wg := sync.WaitGroup{}
		for range 32 {
			wg.Go(func() {
				for range 200 {
					lease, err := pool.Lease(ctx)
					if errors.Is(err, clientpool.ErrNoCapacity) {
						continue
					}
					if err != nil {
						t.Errorf("unexpected error: %v", err)
						return
					}
					admitted.Add(1)

					current := holding.Add(1)
					for {
						old := peak.Load()
						if current <= old || peak.CompareAndSwap(old, current) {
							break
						}
					}
					holding.Add(-1)

					lease.Release()
				}
			})
		}
		wg.Wait()

		require.Positive(t, admitted.Load())
		require.LessOrEqual(t, peak.Load(), int32(max))
		require.LessOrEqual(t, built.Load(), int32(max))

		stats := pool.Stats()
		require.Equal(t, 0, stats.Leased)
		require.Equal(t, int(built.Load()), stats.Idle)
	})
}
