// internal/common/cache/redis.go
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"template-service/internal/common/config"

	"github.com/redis/go-redis/v9"
)

const uploadKeyPrefix = "template:upload:"

// RedisClient wraps the Redis client
type RedisClient struct {
	Client *redis.Client
}

// NewRedis creates a new Redis client
func NewRedis(cfg config.RedisConfig) *RedisClient {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	return &RedisClient{Client: rdb}
}

// Ping tests the Redis connection
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// UploadCache remembers where an image with given content was already
// uploaded, so repeated generations with the same picture skip the upload.
type UploadCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewUploadCache(client *redis.Client, ttl time.Duration) *UploadCache {
	return &UploadCache{client: client, ttl: ttl}
}

// ContentKey returns the hex sha256 digest of data.
func ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Get returns the stored file path for digest. ok is false on a miss.
func (c *UploadCache) Get(ctx context.Context, digest string) (string, bool, error) {
	path, err := c.client.Get(ctx, uploadKeyPrefix+digest).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("upload cache get: %w", err)
	}
	return path, true, nil
}

func (c *UploadCache) Set(ctx context.Context, digest, filePath string) error {
	if err := c.client.Set(ctx, uploadKeyPrefix+digest, filePath, c.ttl).Err(); err != nil {
		return fmt.Errorf("upload cache set: %w", err)
	}
	return nil
}
