package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

const redisKeyPrefix = "buyergroup:result:"

// Redis caches results in a shared Redis, so every replica behind the
// HTTP API sees the same entries.
type Redis struct {
	client *redis.Client
}

// NewRedis connects a Redis-backed cache.
func NewRedis(addr, password string, db int) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})}
}

// NewRedisWithClient wraps an existing client, used by tests.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) (*model.BuyerGroupResult, bool) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			zap.L().Warn("cache: redis get failed", zap.Error(err))
		}
		return nil, false
	}

	var result model.BuyerGroupResult
	if err := json.Unmarshal(data, &result); err != nil {
		zap.L().Warn("cache: corrupt entry dropped", zap.String("key", key), zap.Error(err))
		r.client.Del(ctx, redisKeyPrefix+key)
		return nil, false
	}
	return &result, true
}

func (r *Redis) Set(ctx context.Context, key string, result *model.BuyerGroupResult, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		zap.L().Warn("cache: marshal failed", zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, data, ttl).Err(); err != nil {
		zap.L().Warn("cache: redis set failed", zap.Error(err))
	}
}

func (r *Redis) Purge(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (r *Redis) Close() error { return r.client.Close() }
