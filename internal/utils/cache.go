package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"strconv"       // Key building
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// GetCache retrieves a value from Redis and unmarshals it into dest
func GetCache(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	val, err := rdb.Get(ctx, key).Result() // Get value from Redis
	if err == redis.Nil {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// SetCache sets a value in Redis with a specified TTL
func SetCache(ctx context.Context, rdb *redis.Client, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return rdb.Set(ctx, key, b, ttl).Err() // Set value in Redis with TTL
}

// DeleteCache deletes a key from Redis
func DeleteCache(ctx context.Context, rdb *redis.Client, key string) error {
	return rdb.Del(ctx, key).Err() // Delete key from Redis
}

// WalletCacheKey is the cache key of a user's wallet snapshot
func WalletCacheKey(userID uint) string {
	return "wallet:user:" + strconv.FormatUint(uint64(userID), 10)
}

// TxHistoryCachePrefix prefixes every cached history page of a user
func TxHistoryCachePrefix(userID uint) string {
	return "txhistory:user:" + strconv.FormatUint(uint64(userID), 10)
}

// BalanceVersionKey counts ledger writes of a user
func BalanceVersionKey(userID uint) string {
	return WalletCacheKey(userID) + ":version"
}

// Admin listing prefixes, dropped on every ledger write
const (
	AdminUsersCachePrefix = "admin:users:"
	AdminTxsCachePrefix   = "admin:txs:"
)

// BalanceVersion returns the user's ledger write counter, 0 when unset
func BalanceVersion(ctx context.Context, rdb *redis.Client, userID uint) (int64, error) {
	v, err := rdb.Get(ctx, BalanceVersionKey(userID)).Int64()
	if err == redis.Nil {
		return 0, nil // No write seen yet
	}
	return v, err
}

// SetCacheAtVersion stores a user's view only while their balance version still
// equals version, so a read that raced a ledger write is never cached.
// It reports whether the value was stored.
func SetCacheAtVersion(ctx context.Context, rdb *redis.Client, userID uint, version int64, key string, value any, ttl time.Duration) (bool, error) {
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return false, err
	}
	versionKey := BalanceVersionKey(userID)
	stored := false
	err = rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != version {
			return nil // Balance moved since the read
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, ttl)
			return nil
		})
		stored = err == nil
		return err
	}, versionKey)
	if err == redis.TxFailedErr {
		return false, nil // Version changed between WATCH and EXEC
	}
	return stored, err
}

// RedisBalanceCache drops a user's cached wallet views after a ledger write
type RedisBalanceCache struct {
	rdb *redis.Client
}

// NewRedisBalanceCache wraps a Redis client
func NewRedisBalanceCache(rdb *redis.Client) *RedisBalanceCache {
	return &RedisBalanceCache{rdb: rdb}
}

// InvalidateBalance bumps the user's balance version, then removes their wallet
// snapshot, every history page and the cached admin listings
func (c *RedisBalanceCache) InvalidateBalance(ctx context.Context, userID uint) error {
	if err := c.rdb.Incr(ctx, BalanceVersionKey(userID)).Err(); err != nil {
		return err
	}
	keys := []string{WalletCacheKey(userID)} // Wallet snapshot
	for _, pattern := range []string{TxHistoryCachePrefix(userID) + ":*", AdminUsersCachePrefix + "*", AdminTxsCachePrefix + "*"} {
		iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val()) // Paginated listings
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// NopBalanceCache is used when no cache is configured
type NopBalanceCache struct{}

// InvalidateBalance does nothing
func (NopBalanceCache) InvalidateBalance(context.Context, uint) error { return nil }
