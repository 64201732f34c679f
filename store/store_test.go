package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/moviematch/core"
)

func exerciseStore(t *testing.T, st core.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := st.Get(ctx, "missing")
	assert.True(t, core.IsStoreNotFound(err))

	require.NoError(t, st.Set(ctx, "k", []byte("v1")))
	got, err := st.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, st.Set(ctx, "k", []byte("v2")))
	got, err = st.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, st.Delete(ctx, "k"))
	_, err = st.Get(ctx, "k")
	assert.True(t, core.IsStoreNotFound(err))
}

func TestMemoryStore(t *testing.T) {
	st := NewMemoryStore()
	defer st.Close()
	exerciseStore(t, st)
}

func TestMemoryStore_TTL(t *testing.T) {
	st := NewMemoryStore()
	defer st.Close()
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "k", []byte("v"), 1))
	st.mu.Lock()
	e := st.data["k"]
	e.expireAt = time.Now().Add(-time.Second)
	st.data["k"] = e
	st.mu.Unlock()

	_, err := st.Get(ctx, "k")
	assert.True(t, core.IsStoreNotFound(err))
}

func TestMemoryStore_CloseTwice(t *testing.T) {
	st := NewMemoryStore()
	assert.NoError(t, st.Close())
	assert.NoError(t, st.Close())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := NewRedisStoreFromClient(client, "test:")
	defer st.Close()

	exerciseStore(t, st)

	require.NoError(t, st.Set(context.Background(), "snap", []byte("x"), 60))
	assert.True(t, mr.Exists("test:snap"))
	assert.Equal(t, 60*time.Second, mr.TTL("test:snap"))
}

func TestNewRedisStore_PingFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisStore(ctx, RedisOptions{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestNewRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	st, err := NewRedisStore(context.Background(), RedisOptions{Addr: mr.Addr(), KeyPrefix: "mm:"})
	require.NoError(t, err)
	defer st.Close()
	assert.Equal(t, "redis", st.Name())
}
