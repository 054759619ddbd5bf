package flight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/keyedcache"
	"github.com/unkn0wn-root/keyedcache/codec"
	"github.com/unkn0wn-root/keyedcache/provider/memory"
)

func newGroup(t *testing.T) *Group[string] {
	t.Helper()
	c, err := keyedcache.New[string](keyedcache.Options[string]{
		Provider: memory.New(memory.Config{}),
		Codec:    codec.String{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return New(c)
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	ctx := context.Background()
	g := newGroup(t)

	var calls atomic.Int32
	release := make(chan struct{})
	producer := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "dune", nil
	}

	const n = 16
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := g.GetOrSet(ctx, "book:1", producer)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, "dune", v)
	}

	v, ok := g.Cache().Get(ctx, "book:1")
	assert.True(t, ok)
	assert.Equal(t, "dune", v)
}

func TestHitSkipsProducer(t *testing.T) {
	ctx := context.Background()
	g := newGroup(t)
	require.True(t, g.Cache().Set(ctx, "k", "cached"))

	v, err := g.GetOrSet(ctx, "k", func(context.Context) (string, error) {
		t.Fatal("producer must not run on a hit")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cached", v)
}

func TestProducerErrorIsShared(t *testing.T) {
	ctx := context.Background()
	g := newGroup(t)
	boom := errors.New("db down")

	_, err := g.GetOrSet(ctx, "k", func(context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	_, ok := g.Cache().Get(ctx, "k")
	assert.False(t, ok)

	g.Forget("k")
	v, err := g.GetOrSet(ctx, "k", func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}
