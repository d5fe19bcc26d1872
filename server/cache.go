package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chaos-io/playabooth/config"
	"github.com/redis/go-redis/v9"
)

// ResultCache 缓存合成后的 JPEG，未命中时返回 nil, nil
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
}

func resultKey(md5 string, background int) string {
	return fmt.Sprintf("composite:%s:%d", md5, background)
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(cfg *config.RedisConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisCache{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, data []byte) error {
	return r.client.Set(ctx, key, data, r.ttl).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// NopCache 不缓存任何结果，Redis 未启用或不可用时使用
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]byte, error) { return nil, nil }

func (NopCache) Set(context.Context, string, []byte) error { return nil }
