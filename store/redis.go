package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/moviematch/core"
)

// RedisOptions 是 Redis 连接配置。
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix 会加在所有 key 前面，便于多环境共用一个实例
	KeyPrefix string
}

// RedisStore 是 Redis 实现的 Store，多实例部署时共享同一份快照。
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore 连接 Redis 并 Ping 确认可用。
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return NewRedisStoreFromClient(client, opts.KeyPrefix), nil
}

// NewRedisStoreFromClient 包装已有客户端。
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) key(k string) string { return r.prefix + k }

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrStoreNotFound
	}
	return val, err
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	var expiration time.Duration
	if len(ttl) > 0 && ttl[0] > 0 {
		expiration = time.Duration(ttl[0]) * time.Second
	}
	return r.client.Set(ctx, r.key(key), value, expiration).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
