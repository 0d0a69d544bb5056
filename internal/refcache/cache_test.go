package refcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_HitWithinTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[[]string]("test", time.Hour).WithClock(func() time.Time { return now })

	var calls int32
	load := func(context.Context) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		return []string{"p1", "p2"}, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.Get(context.Background(), "products", load)
		require.NoError(t, err)
		assert.Len(t, v, 2)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	now = now.Add(time.Hour)
	_, err := c.Get(context.Background(), "products", load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "expired entry reloads")
}

func TestCache_CoalescesConcurrentLoads(t *testing.T) {
	c := New[int]("test", time.Hour)

	var calls int32
	release := make(chan struct{})
	load := func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(context.Background(), "k", load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestCache_ErrorsNotCached(t *testing.T) {
	c := New[int]("test", time.Hour)
	fail := true
	load := func(context.Context) (int, error) {
		if fail {
			return 0, errors.New("boom")
		}
		return 7, nil
	}

	_, err := c.Get(context.Background(), "k", load)
	require.Error(t, err)

	fail = false
	v, err := c.Get(context.Background(), "k", load)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestCache_Invalidate(t *testing.T) {
	c := New[int]("test", time.Hour)
	n := 0
	load := func(context.Context) (int, error) { n++; return n, nil }

	v, _ := c.Get(context.Background(), "k", load)
	assert.Equal(t, 1, v)
	c.Invalidate("k")
	v, _ = c.Get(context.Background(), "k", load)
	assert.Equal(t, 2, v)
}

func TestNoop_AlwaysLoads(t *testing.T) {
	var c Getter[int] = Noop[int]{}
	n := 0
	load := func(context.Context) (int, error) { n++; return n, nil }

	_, _ = c.Get(context.Background(), "k", load)
	_, _ = c.Get(context.Background(), "k", load)
	assert.Equal(t, 2, n)
}
