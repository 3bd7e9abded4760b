package store

import (
	"context"
	"sync"
	"time"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/logging"
)

const defaultSweepInterval = 30 * time.Second

// MemoryStore 是进程内的 core.Store，适合单实例部署和测试。
//
// 条目可带过期时间；后台协程按 sweep 周期清理过期条目。
// 设置了 maxEntries 时，写入新 key 且容量已满会先清理过期条目，
// 仍然满则淘汰最早写入的条目。进程重启后数据丢失。
type MemoryStore struct {
	mu         sync.RWMutex
	data       map[string]*entry
	seq        uint64
	maxEntries int
	sweep      time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

type entry struct {
	value []byte
	ttl   *time.Time
	seq   uint64
}

func (e *entry) expired(now time.Time) bool {
	return e.ttl != nil && now.After(*e.ttl)
}

// MemoryOption 配置 MemoryStore。
type MemoryOption func(*MemoryStore)

// WithMaxEntries 限制条目数，n <= 0 表示不限。
func WithMaxEntries(n int) MemoryOption {
	return func(m *MemoryStore) { m.maxEntries = n }
}

// WithSweepInterval 设置过期清理周期。
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(m *MemoryStore) {
		if d > 0 {
			m.sweep = d
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		data:  make(map[string]*entry),
		sweep: defaultSweepInterval,
		stop:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.sweepLoop()
	return m
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok || e.expired(time.Now()) {
		return nil, core.ErrStoreNotFound
	}
	return e.value, nil
}

// Set 写入 key；ttl 单位为秒（见 core.TTLSeconds），缺省或 <= 0 表示不过期。
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl ...int) error {
	e := &entry{value: value}
	if len(ttl) > 0 && ttl[0] > 0 {
		at := time.Now().Add(time.Duration(ttl[0]) * time.Second)
		e.ttl = &at
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[key]; !exists && m.maxEntries > 0 && len(m.data) >= m.maxEntries {
		m.makeRoomLocked(time.Now())
	}
	m.seq++
	e.seq = m.seq
	m.data[key] = e
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Len 返回当前条目数（含尚未清理的过期条目）。
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *MemoryStore) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

// makeRoomLocked 腾出至少一个位置。
func (m *MemoryStore) makeRoomLocked(now time.Time) {
	if m.purgeLocked(now) > 0 && len(m.data) < m.maxEntries {
		return
	}
	var (
		oldestKey string
		oldestSeq uint64
		found     bool
	)
	for k, e := range m.data {
		if !found || e.seq < oldestSeq {
			oldestKey, oldestSeq, found = k, e.seq, true
		}
	}
	if found {
		delete(m.data, oldestKey)
	}
}

func (m *MemoryStore) purgeLocked(now time.Time) int {
	n := 0
	for k, e := range m.data {
		if e.expired(now) {
			delete(m.data, k)
			n++
		}
	}
	return n
}

func (m *MemoryStore) sweepLoop() {
	t := time.NewTicker(m.sweep)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-t.C:
			m.mu.Lock()
			n := m.purgeLocked(now)
			left := len(m.data)
			m.mu.Unlock()
			if n > 0 {
				logging.Debug().Int("purged", n).Int("entries", left).Msg("memory store sweep")
			}
		}
	}
}

var _ core.Store = (*MemoryStore)(nil)
