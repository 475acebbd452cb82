package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCache_SetGetExpire(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()

	var got map[string]int
	found, err := GetCache(ctx, rdb, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetCache(ctx, rdb, "k", map[string]int{"balance": 7}, time.Minute))
	found, err = GetCache(ctx, rdb, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 7, got["balance"])

	mr.FastForward(2 * time.Minute)
	found, err = GetCache(ctx, rdb, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisBalanceCache_InvalidateBalance(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(WalletCacheKey(3), "{}"))
	require.NoError(t, mr.Set(TxHistoryCachePrefix(3)+":page:1:size:20", "{}"))
	require.NoError(t, mr.Set(TxHistoryCachePrefix(3)+":page:2:size:50", "{}"))
	require.NoError(t, mr.Set(WalletCacheKey(4), "{}"))

	require.NoError(t, NewRedisBalanceCache(rdb).InvalidateBalance(ctx, 3))

	assert.False(t, mr.Exists(WalletCacheKey(3)))
	assert.False(t, mr.Exists(TxHistoryCachePrefix(3)+":page:1:size:20"))
	assert.False(t, mr.Exists(TxHistoryCachePrefix(3)+":page:2:size:50"))
	assert.True(t, mr.Exists(WalletCacheKey(4)), "other users keep their cache")
}

func TestRedisBalanceCache_InvalidateBumpsVersionAndDropsAdminLists(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	require.NoError(t, mr.Set(AdminUsersCachePrefix+"page=1:size=20", "{}"))
	require.NoError(t, mr.Set(AdminTxsCachePrefix+"user_id=3:page=1", "{}"))

	v, err := BalanceVersion(ctx, rdb, 3)
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, NewRedisBalanceCache(rdb).InvalidateBalance(ctx, 3))

	v, err = BalanceVersion(ctx, rdb, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	assert.False(t, mr.Exists(AdminUsersCachePrefix+"page=1:size=20"))
	assert.False(t, mr.Exists(AdminTxsCachePrefix+"user_id=3:page=1"))
}

func TestSetCacheAtVersion(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	cache := NewRedisBalanceCache(rdb)

	stored, err := SetCacheAtVersion(ctx, rdb, 5, 0, WalletCacheKey(5), map[string]int{"balance": 1}, time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	require.NoError(t, cache.InvalidateBalance(ctx, 5))
	stored, err = SetCacheAtVersion(ctx, rdb, 5, 0, WalletCacheKey(5), map[string]int{"balance": 1}, time.Minute)
	require.NoError(t, err)
	assert.False(t, stored, "a view read at an older version is dropped")
	assert.False(t, mr.Exists(WalletCacheKey(5)))

	stored, err = SetCacheAtVersion(ctx, rdb, 5, 1, WalletCacheKey(5), map[string]int{"balance": 2}, time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.True(t, mr.Exists(WalletCacheKey(5)))
}

func TestDeleteCache(t *testing.T) {
	mr, rdb := newRedis(t)
	require.NoError(t, mr.Set("admin:users:page=1:size=20", "{}"))
	require.NoError(t, DeleteCache(context.Background(), rdb, "admin:users:page=1:size=20"))
	assert.False(t, mr.Exists("admin:users:page=1:size=20"))
}
