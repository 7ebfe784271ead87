package cache

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"strconv"       // Key formatting
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// Cache is a thin JSON read-through layer over Redis. A nil client
// disables it entirely, so callers never branch on whether Redis is
// wired (tests run without it).
type Cache struct {
	rdb *redis.Client
}

// New wraps a Redis client; client may be nil
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Get retrieves a key and unmarshals it into dest, reporting whether it
// was present
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil // Caching disabled
	}
	val, err := c.rdb.Get(ctx, key).Result() // Get value from Redis
	if err == redis.Nil {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// Set stores a value under key with the given TTL
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c == nil || c.rdb == nil {
		return nil // Caching disabled
	}
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err() // Set value in Redis with TTL
}

// Invalidate drops the given keys
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if c == nil || c.rdb == nil || len(keys) == 0 {
		return nil // Caching disabled
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// BalanceKey is the cache key for a user's balance view
func BalanceKey(userID uint) string {
	return "balance:user:" + strconv.Itoa(int(userID))
}

// TradesKey is the cache key for one page of a user's trade history
func TradesKey(userID uint, page, pageSize int) string {
	return "trades:user:" + strconv.Itoa(int(userID)) +
		":page:" + strconv.Itoa(page) + ":size:" + strconv.Itoa(pageSize)
}

// PriceKey is the cache key for the tracked-coin quote view
func PriceKey() string {
	return "price:tracked"
}

// UserKeys lists every cache key a mutation to one user's account can
// stale out. History pages beyond the first few just expire on TTL.
func UserKeys(userID uint) []string {
	keys := []string{BalanceKey(userID)}
	for page := 1; page <= 5; page++ {
		keys = append(keys, TradesKey(userID, page, 20))
	}
	return keys
}
