package genstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisBumpAndSnapshot(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	s := NewRedisGenStore(client, "books")

	g, err := s.Snapshot(ctx, "author:7")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), g)

	g, err = s.Bump(ctx, "author:7")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), g)

	g, err = s.Bump(ctx, "author:7")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), g)

	got, err := s.SnapshotMany(ctx, []string{"author:7", "author:8"})
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"author:7": 2, "author:8": 0}, got)
}

func TestRedisNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	a := NewRedisGenStore(client, "a")
	b := NewRedisGenStore(client, "b")

	_, err := a.Bump(ctx, "t")
	require.NoError(t, err)

	g, err := b.Snapshot(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), g)
}

func TestRedisBumpWithTTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	now := time.Unix(1_700_000_000, 0)
	s := NewRedisGenStore(client, "ns", WithGenTTL(time.Minute), WithGenClock(func() time.Time { return now }))

	seed := uint64(now.UnixNano())
	g, err := s.Bump(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, seed+1, g)
	assert.Equal(t, time.Minute, mr.TTL("gen:ns:t"))

	g, err = s.Snapshot(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, seed+1, g)
}

func TestRedisExpiredTagNeverRepeatsAGeneration(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	now := time.Unix(1_700_000_000, 0)
	s := NewRedisGenStore(client, "ns", WithGenTTL(time.Hour), WithGenClock(func() time.Time { return now }))

	// a write snapshots the untouched tag, then the tag is invalidated
	written, err := s.Snapshot(ctx, "author:8")
	require.NoError(t, err)
	assert.NotZero(t, written)
	assert.Equal(t, time.Hour, mr.TTL("gen:ns:author:8"))

	bumped, err := s.Bump(ctx, "author:8")
	require.NoError(t, err)
	assert.Greater(t, bumped, written)

	mr.FastForward(2 * time.Hour)
	now = now.Add(2 * time.Hour)
	require.False(t, mr.Exists("gen:ns:author:8"))

	got, err := s.SnapshotMany(ctx, []string{"author:8"})
	require.NoError(t, err)
	assert.Greater(t, got["author:8"], bumped)

	// bumping an expired tag also starts above the old life
	mr.FastForward(2 * time.Hour)
	now = now.Add(2 * time.Hour)
	g, err := s.Bump(ctx, "author:8")
	require.NoError(t, err)
	assert.Greater(t, g, got["author:8"])
}

func TestRedisSeedKeepsConcurrentWinner(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisGenStore(client, "ns", WithGenTTL(time.Hour))

	require.NoError(t, mr.Set("gen:ns:a", "42"))
	got, err := s.SnapshotMany(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got["a"])
	assert.NotZero(t, got["b"])

	again, err := s.Snapshot(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, got["b"], again)
}

func TestRedisSnapshotParseError(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisGenStore(client, "ns")

	require.NoError(t, mr.Set("gen:ns:bad", "not-a-number"))
	_, err := s.Snapshot(ctx, "bad")
	assert.Error(t, err)
	_, err = s.SnapshotMany(ctx, []string{"bad"})
	assert.Error(t, err)
}

func TestRedisCloseOwnership(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)

	shared := NewRedisGenStore(client, "ns")
	require.NoError(t, shared.Close(ctx))
	require.NoError(t, client.Ping(ctx).Err(), "non-owning store must not close the client")

	owned := NewRedisGenStore(client, "ns", WithOwnedClient())
	require.NoError(t, owned.Close(ctx))
	assert.Error(t, client.Ping(ctx).Err())
	require.NoError(t, owned.Close(ctx))
}
