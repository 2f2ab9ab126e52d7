package strata_test

import (
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
)

type item struct{ n int }

func TestMemoize(t *testing.T) {
	cache := strata.NewCache()
	calls := 0
	get := strata.Memoize(cache, "item", func(n int) (*item, error) {
		calls++
		return &item{n: n}, nil
	}, strconv.Itoa)

	a, err := get(1)
	require.NoError(t, err)
	b, err := get(1)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, calls)

	c, err := get(2)
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, cache.Len())

	stats := cache.Stats()
	assert.EqualValues(t, 1, stats.Hits.Load())
	assert.EqualValues(t, 2, stats.Misses.Load())

	t.Run("names do not collide", func(t *testing.T) {
		other := strata.Memoize(cache, "other", func(n int) (*item, error) {
			return &item{n: -n}, nil
		}, strconv.Itoa)
		o, err := other(1)
		require.NoError(t, err)
		assert.Equal(t, -1, o.n)
	})
}

func TestMemoize_Errors(t *testing.T) {
	cache := strata.NewCache()
	calls := 0
	fail := errors.New("boom")
	get := strata.Memoize(cache, "fail", func(n int) (*item, error) {
		calls++
		return nil, fail
	}, strconv.Itoa)

	for i := 0; i < 2; i++ {
		_, err := get(1)
		assert.ErrorIs(t, err, fail)
	}
	assert.Equal(t, 2, calls, "errors are not cached")
	assert.Zero(t, cache.Len())
}

func TestCache_Clear(t *testing.T) {
	cache := strata.NewCache()
	get := strata.Memoize(cache, "item", func(n int) (*item, error) {
		return &item{n: n}, nil
	}, strconv.Itoa)

	before, _ := get(1)
	gen := cache.Generation()
	cache.Clear()
	assert.Equal(t, gen+1, cache.Generation())
	assert.Zero(t, cache.Len())
	assert.EqualValues(t, 1, cache.Stats().Clears.Load())

	after, _ := get(1)
	assert.NotSame(t, before, after)
}

func TestCache_ClearDuringComputation(t *testing.T) {
	cache := strata.NewCache()
	started := make(chan struct{})
	release := make(chan struct{})
	get := strata.Memoize(cache, "slow", func(n int) (*item, error) {
		if n == 1 {
			close(started)
			<-release
		}
		return &item{n: n}, nil
	}, strconv.Itoa)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = get(1)
	}()
	<-started
	cache.Clear()
	close(release)
	wg.Wait()

	assert.Zero(t, cache.Len(), "a result computed before Clear is dropped")
}
