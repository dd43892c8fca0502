package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/staysearch/unit-index/internal/domain"
	pkglog "github.com/staysearch/unit-index/pkg/log"
)

// Config holds Redis connection settings for the index store.
type Config struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`

	// UseServerScripts enables the atomic server-side stay query. When
	// disabled the store falls back to sequential round trips.
	UseServerScripts bool `mapstructure:"use_server_scripts"`
}

// RedisStore implements IndexStore backed by Redis. Documents are JSON
// strings, set indexes are Redis sets, schedule indexes are sorted sets,
// and Commit maps to one MULTI/EXEC pipeline.
type RedisStore struct {
	client     *redis.Client
	useScripts bool
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, useScripts: cfg.UseServerScripts}, nil
}

// PreloadScripts loads the stay-query script into the server's script
// cache, retrying with backoff. Run once at startup; failures are not
// fatal because Script.Run falls back to EVAL on NOSCRIPT.
func (s *RedisStore) PreloadScripts(ctx context.Context, attempts int, delay time.Duration) {
	if !s.useScripts {
		return
	}
	l := pkglog.Component("store")
	for i := 0; i < attempts; i++ {
		if err := stayQueryScript.Load(ctx, s.client).Err(); err != nil {
			l.Warn().Err(err).Int("attempt", i+1).Msg("stay script preload failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		l.Info().Msg("stay script preloaded")
		return
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("redis get %s: %w: %w", key, domain.ErrStoreUnavailable, err)
	}
	return val, nil
}

func (s *RedisStore) MGet(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w: %w", domain.ErrStoreUnavailable, err)
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[i] = str
		}
	}
	return out, nil
}

func (s *RedisStore) Commit(ctx context.Context, b *Batch) error {
	if b == nil || b.Empty() {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, val := range b.Set {
			pipe.Set(ctx, key, val, 0)
		}
		if len(b.Del) > 0 {
			pipe.Del(ctx, b.Del...)
		}
		for key, members := range b.SAdd {
			pipe.SAdd(ctx, key, toAnySlice(members)...)
		}
		for key, members := range b.SRem {
			pipe.SRem(ctx, key, toAnySlice(members)...)
		}
		for key, members := range b.ZAdd {
			zs := make([]redis.Z, len(members))
			for i, m := range members {
				zs[i] = redis.Z{Score: m.Score, Member: m.ID}
			}
			pipe.ZAdd(ctx, key, zs...)
		}
		for key, members := range b.ZRem {
			pipe.ZRem(ctx, key, toAnySlice(members)...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis commit batch: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w: %w", key, domain.ErrStoreUnavailable, err)
	}
	return members, nil
}

func (s *RedisStore) SCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis scard %s: %w: %w", key, domain.ErrStoreUnavailable, err)
	}
	return n, nil
}

func (s *RedisStore) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	members, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatFloat(min, 'f', -1, 64),
		Max: "(" + strconv.FormatFloat(max, 'f', -1, 64),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrangebyscore %s: %w: %w", key, domain.ErrStoreUnavailable, err)
	}
	return members, nil
}

func (s *RedisStore) ZCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcard %s: %w: %w", key, domain.ErrStoreUnavailable, err)
	}
	return n, nil
}

func (s *RedisStore) Scan(ctx context.Context, pattern string, fn func(key string) error) error {
	iter := s.client.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s: %w: %w", pattern, domain.ErrStoreUnavailable, err)
	}
	return nil
}

// StayQuery runs the combined exclusion+pricing aggregation over
// [from, to). With server scripts enabled it is a single atomic EVALSHA;
// otherwise it degrades to a range query plus an MGET and app-side folding.
func (s *RedisStore) StayQuery(ctx context.Context, from, to time.Time) (map[string]UnitStay, error) {
	if s.useScripts {
		return s.stayQueryScripted(ctx, from, to)
	}
	return s.stayQueryFallback(ctx, from, to)
}

func (s *RedisStore) stayQueryScripted(ctx context.Context, from, to time.Time) (map[string]UnitStay, error) {
	res, err := stayQueryScript.Run(ctx, s.client,
		[]string{ScheduleDaysKey},
		DayScore(from), DayScore(to),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("redis stay query script: %w: %w", domain.ErrStoreUnavailable, err)
	}

	flat, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("redis stay query script: unexpected reply type %T", res)
	}
	if len(flat)%4 != 0 {
		return nil, fmt.Errorf("redis stay query script: malformed reply of %d entries", len(flat))
	}

	out := make(map[string]UnitStay, len(flat)/4)
	for i := 0; i+3 < len(flat); i += 4 {
		unitID := fmt.Sprint(flat[i])
		blocked := fmt.Sprint(flat[i+1]) == "1"
		nights, _ := strconv.Atoi(fmt.Sprint(flat[i+2]))
		sum, _ := strconv.ParseFloat(fmt.Sprint(flat[i+3]), 64)
		out[unitID] = UnitStay{Blocked: blocked, PricedNights: nights, PriceSum: sum}
	}
	return out, nil
}

func (s *RedisStore) stayQueryFallback(ctx context.Context, from, to time.Time) (map[string]UnitStay, error) {
	members, err := s.ZRangeByScore(ctx, ScheduleDaysKey, DayScore(from), DayScore(to))
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return map[string]UnitStay{}, nil
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		unitID, dayKey, ok := SplitScheduleDayMember(m)
		if !ok {
			continue
		}
		keys = append(keys, ScheduleKeyPrefix+unitID+":"+dayKey)
	}

	vals, err := s.MGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.DayScheduleDocument, 0, len(vals))
	for _, raw := range vals {
		if raw == "" {
			continue
		}
		var doc domain.DayScheduleDocument
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}

	return AggregateStay(docs), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func toAnySlice(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// Ensure interface is satisfied at compile time.
var _ IndexStore = (*RedisStore)(nil)
