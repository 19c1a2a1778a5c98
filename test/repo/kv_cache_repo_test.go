package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kalorin/webseek/internal/repo"
	"github.com/kalorin/webseek/test/testutil"
)

func TestKVCacheRepoRoundTrip(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	kv := repo.NewKVCacheRepo(db)
	ctx := context.Background()

	payload := []byte(`{"answer":"bags cost $30"}`)
	require.NoError(t, kv.Put(ctx, "resp:abc", payload, time.Hour))

	got, ok, err := kv.Get(ctx, "resp:abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload, got)

	_, ok, err = kv.Get(ctx, "resp:missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKVCacheRepoZeroTTLIsExpired(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	kv := repo.NewKVCacheRepo(db)
	ctx := context.Background()

	require.NoError(t, kv.Put(ctx, "resp:abc", []byte("x"), 0))
	_, ok, err := kv.Get(ctx, "resp:abc")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKVCacheRepoUpsertReplacesPayload(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	kv := repo.NewKVCacheRepo(db)
	ctx := context.Background()

	require.NoError(t, kv.Put(ctx, "resp:abc", []byte("old"), time.Hour))
	require.NoError(t, kv.Put(ctx, "resp:abc", []byte("new"), time.Hour))

	got, ok, err := kv.Get(ctx, "resp:abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("new"), got)
}

func TestKVCacheRepoDeleteExpired(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	kv := repo.NewKVCacheRepo(db)
	ctx := context.Background()

	require.NoError(t, kv.Put(ctx, "resp:live", []byte("x"), time.Hour))
	require.NoError(t, kv.Put(ctx, "resp:dead", []byte("y"), 0))

	removed, err := kv.DeleteExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	count, err := kv.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestKVCacheRepoTouch(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	kv := repo.NewKVCacheRepo(db)
	ctx := context.Background()

	require.NoError(t, kv.Put(ctx, "resp:abc", []byte("x"), time.Hour))
	require.NoError(t, kv.Touch(ctx, "resp:abc"))

	var hits int64
	require.NoError(t, db.QueryRow("SELECT hit_count FROM kv_cache WHERE cache_key = $1", "resp:abc").Scan(&hits))
	require.Equal(t, int64(1), hits)
}
