package store

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/catalogrec/core"
)

// ResultCache 把推荐结果按 key 编码为 JSON 存入 core.Store。
// 调用方负责把快照版本编进 key，模型重建后旧条目自然失效。
type ResultCache struct {
	Store core.Store
	TTL   time.Duration
}

// NewResultCache 创建结果缓存；s 为 nil 时所有操作都是空操作。
func NewResultCache(s core.Store, ttl time.Duration) *ResultCache {
	return &ResultCache{Store: s, TTL: ttl}
}

// CacheKey 用 ":" 连接各段。
func CacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}

// Get 读取并解码到 v。未命中返回 (false, nil)；后端错误返回 (false, err)。
func (c *ResultCache) Get(ctx context.Context, key string, v any) (bool, error) {
	if c == nil || c.Store == nil {
		return false, nil
	}
	data, err := c.Store.Get(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		// 损坏的条目当作未命中并删除
		_ = c.Store.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}

// Set 编码 v 并写入。
func (c *ResultCache) Set(ctx context.Context, key string, v any) error {
	if c == nil || c.Store == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Store.Set(ctx, key, data, core.TTLSeconds(c.TTL))
}
