package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/catalogrec/core"
)

// RedisConfig 配置 RedisStore。
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix 会加在所有 key 前，便于多个服务共用一个库
	Prefix string

	// 熔断：连续失败 FailureThreshold 次后打开，Timeout 后半开探测
	FailureThreshold uint32
	Timeout          time.Duration
	// OnStateChange 在熔断状态变化时回调（日志/监控）
	OnStateChange func(name string, from, to gobreaker.State)
}

// RedisStore 是 Redis 实现的 Store，所有调用都经过熔断器。
// 熔断打开时直接返回 core.ErrStoreUnavailable，不再访问 Redis。
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewRedisStore 连接 Redis 并做一次 Ping。
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "store: redis ping", err)
	}
	return NewRedisStoreWithClient(client, cfg), nil
}

// NewRedisStoreWithClient 使用已有客户端（例如 ClusterClient）。
func NewRedisStoreWithClient(client redis.UniversalClient, cfg RedisConfig) *RedisStore {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// key 不存在不算失败
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: cfg.OnStateChange,
	}
	return &RedisStore{
		client:  client,
		prefix:  cfg.Prefix,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

func (r *RedisStore) Name() string { return "redis" }

// BreakerState 返回熔断器当前状态（closed / half-open / open）。
func (r *RedisStore) BreakerState() string { return r.breaker.State().String() }

func (r *RedisStore) execute(fn func() ([]byte, error)) ([]byte, error) {
	val, err := r.breaker.Execute(fn)
	switch {
	case err == nil:
		return val, nil
	case errors.Is(err, redis.Nil):
		return nil, core.ErrStoreNotFound
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "store: redis circuit open", err)
	default:
		return nil, err
	}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	return r.execute(func() ([]byte, error) {
		return r.client.Get(ctx, r.prefix+key).Bytes()
	})
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	var expiration time.Duration
	if len(ttl) > 0 && ttl[0] > 0 {
		expiration = time.Duration(ttl[0]) * time.Second
	}
	_, err := r.execute(func() ([]byte, error) {
		return nil, r.client.Set(ctx, r.prefix+key, value, expiration).Err()
	})
	return err
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	_, err := r.execute(func() ([]byte, error) {
		return nil, r.client.Del(ctx, r.prefix+key).Err()
	})
	return err
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

var _ core.Store = (*RedisStore)(nil)
