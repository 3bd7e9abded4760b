// Package store 缓存推荐结果。
//
// 后端实现 core.Store：MemoryStore 在进程内（可限制条目数），
// RedisStore 通过 go-redis 共享给多个实例，并由熔断器保护。
// ResultCache 在其上按快照版本组织 key，缓存失败只记日志不影响请求。
//
//	var s core.Store = store.NewMemoryStore(store.WithMaxEntries(10000))
//	cache := store.NewResultCache(s, 5*time.Minute)
package store
