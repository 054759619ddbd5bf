package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, a := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	require.NoError(t, a.close(context.Background()))
	return out.String(), err
}

func useSQLite(t *testing.T) {
	t.Helper()
	t.Setenv("KCACHE_BACKEND", "sqlite")
	t.Setenv("KCACHE_SQLITE_PATH", filepath.Join(t.TempDir(), "kc.db"))
	t.Setenv("KCACHE_LOG_LEVEL", "error")
}

func TestSetGetAcrossInvocations(t *testing.T) {
	useSQLite(t)

	out, err := run(t, "set", "book42", "Dune")
	require.NoError(t, err)
	assert.Equal(t, "OK\n", out)

	out, err = run(t, "get", "book42")
	require.NoError(t, err)
	assert.Equal(t, "Dune\n", out)

	_, err = run(t, "add", "book42", "Emma")
	assert.Error(t, err)

	out, err = run(t, "mget", "book42", "nope")
	require.NoError(t, err)
	assert.Equal(t, "book42\tDune\nnope\t(miss)\n", out)

	_, err = run(t, "del", "book42")
	require.NoError(t, err)
	_, err = run(t, "get", "book42")
	assert.ErrorIs(t, err, errMiss)
}

func TestKeyCommand(t *testing.T) {
	useSQLite(t)
	t.Setenv("KCACHE_PREFIX", "books:")

	out, err := run(t, "key", "abc")
	require.NoError(t, err)
	assert.Equal(t, "books:abc\n", out)

	out, err = run(t, "key", "a b")
	require.NoError(t, err)
	assert.Len(t, out, len("books:")+32+1)
}

func TestFlushAndPurge(t *testing.T) {
	useSQLite(t)

	_, err := run(t, "set", "a", "1")
	require.NoError(t, err)
	_, err = run(t, "flush")
	require.NoError(t, err)
	_, err = run(t, "exists", "a")
	assert.ErrorIs(t, err, errMiss)

	out, err := run(t, "purge")
	require.NoError(t, err)
	assert.Equal(t, "purged 0\n", out)

	_, err = run(t, "--backend", "memory", "purge")
	assert.Error(t, err)
}

func TestInvalidateTagsOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("KCACHE_BACKEND", "redis")
	t.Setenv("KCACHE_REDIS_URL", "redis://"+mr.Addr())
	t.Setenv("KCACHE_PREFIX", "books:")
	t.Setenv("KCACHE_LOG_LEVEL", "error")

	_, err := run(t, "set", "--tag", "author7", "book1", "Lathe of Heaven")
	require.NoError(t, err)
	out, err := run(t, "get", "book1")
	require.NoError(t, err)
	assert.Equal(t, "Lathe of Heaven\n", out)

	_, err = run(t, "invalidate", "author7")
	require.NoError(t, err)
	_, err = run(t, "get", "book1")
	assert.ErrorIs(t, err, errMiss)
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("KCACHE_BACKEND", "memcached")
	_, err := run(t, "get", "k")
	assert.Error(t, err)
}
