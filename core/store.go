package core

import (
	"context"
	"time"
)

// Store 是推荐结果缓存的后端（key 通常由快照版本、用户与请求参数拼成）。
// 实现位于 store 包：MemoryStore、RedisStore。
type Store interface {
	// Name 返回后端名称，用于日志与指标
	Name() string

	// Get 读取 key；不存在时返回 ErrStoreNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入 key，可选 ttl 单位为秒，省略或 <= 0 表示不过期
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	Delete(ctx context.Context, key string) error

	Close() error
}

var (
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

	// ErrStoreUnavailable 表示后端不可用，例如熔断打开
	ErrStoreUnavailable = NewDomainError(ModuleStore, ErrorCodeUnavailable, "store: backend unavailable")
)

// IsStoreNotFound 报告 err 是否为 store 模块的 NOT_FOUND。
func IsStoreNotFound(err error) bool {
	de := GetDomainError(err)
	return de != nil && de.Module == ModuleStore && de.Code == ErrorCodeNotFound
}

// TTLSeconds 把 d 换算为 Store.Set 使用的秒数：d <= 0 为 0（不过期），不足一秒按一秒。
func TTLSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	s := int(d / time.Second)
	if s == 0 {
		s = 1
	}
	return s
}
