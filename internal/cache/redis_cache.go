package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/staysearch/unit-index/internal/domain"
)

// Config holds Redis connection settings for the result cache.
type Config struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RedisResultCache implements ResultCache on Redis.
type RedisResultCache struct {
	client *redis.Client
	prefix string
}

// NewRedisResultCache creates a new Redis-based result cache.
func NewRedisResultCache(cfg Config) (*RedisResultCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "search"
	}

	return &RedisResultCache{client: client, prefix: prefix}, nil
}

func (c *RedisResultCache) GetUnits(ctx context.Context, key string) (*domain.SearchResult, error) {
	var result domain.SearchResult
	if err := c.get(ctx, key, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RedisResultCache) SetUnits(ctx context.Context, key string, result *domain.SearchResult, ttl time.Duration) error {
	return c.set(ctx, key, result, ttl)
}

func (c *RedisResultCache) GetProperties(ctx context.Context, key string) (*domain.PropertyResult, error) {
	var result domain.PropertyResult
	if err := c.get(ctx, key, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RedisResultCache) SetProperties(ctx context.Context, key string, result *domain.PropertyResult, ttl time.Duration) error {
	return c.set(ctx, key, result, ttl)
}

func (c *RedisResultCache) get(ctx context.Context, key string, out interface{}) error {
	data, err := c.client.Get(ctx, c.prefix+":"+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get from redis: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return nil
}

func (c *RedisResultCache) set(ctx context.Context, key string, val interface{}, ttl time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+":"+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisResultCache) Close() error {
	return c.client.Close()
}

var _ ResultCache = (*RedisResultCache)(nil)
