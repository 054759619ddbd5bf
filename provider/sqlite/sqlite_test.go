package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/keyedcache/provider"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestNewRequiresDB(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNilDB)
}

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	_, hit, err := p.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)

	ok, err := p.Set(ctx, "k", []byte("v1"), 1, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = p.Set(ctx, "k", []byte("v2"), 1, 0)
	require.NoError(t, err)

	b, hit, err := p.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("v2"), b)

	require.NoError(t, p.Del(ctx, "k"))
	require.NoError(t, p.Del(ctx, "k"))
	_, hit, _ = p.Get(ctx, "k")
	assert.False(t, hit)
}

func TestExpiryAndPurge(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	_, _ = p.Set(ctx, "a", []byte("1"), 1, time.Second)
	_, _ = p.Set(ctx, "b", []byte("2"), 1, time.Second)
	_, _ = p.Set(ctx, "c", []byte("3"), 1, 0)

	now = now.Add(time.Minute)

	_, hit, err := p.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, hit)

	n, err := p.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n) // "a" was already dropped by Get

	_, hit, _ = p.Get(ctx, "c")
	assert.True(t, hit)
}

func TestAdd(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	ok, err := p.Add(ctx, "k", []byte("a"), 1, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Add(ctx, "k", []byte("b"), 1, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	b, _, _ := p.Get(ctx, "k")
	assert.Equal(t, []byte("a"), b)

	// an expired row does not block Add
	now = now.Add(time.Minute)
	ok, err = p.Add(ctx, "k", []byte("c"), 1, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	b, _, _ = p.Get(ctx, "k")
	assert.Equal(t, []byte("c"), b)
}

func TestBatchOps(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	failed, err := p.SetMany(ctx, []pr.Entry{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
		{Key: "a", Value: []byte("3")},
	}, 0)
	require.NoError(t, err)
	assert.Empty(t, failed)

	got, err := p.GetMany(ctx, []string{"a", "b", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("3"), "b": []byte("2")}, got)
}

func TestFlush(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	_, _ = p.Set(ctx, "a", []byte("1"), 1, 0)
	_, _ = p.Set(ctx, "b", []byte("2"), 1, 0)
	require.NoError(t, p.Flush(ctx))

	got, err := p.GetMany(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEntriesSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	p, err := Open(path)
	require.NoError(t, err)
	_, err = p.Set(ctx, "k", []byte("durable"), 1, 0)
	require.NoError(t, err)
	require.NoError(t, p.Close(ctx))

	p, err = Open(path)
	require.NoError(t, err)
	defer p.Close(ctx)
	b, hit, err := p.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("durable"), b)
}
