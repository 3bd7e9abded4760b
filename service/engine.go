package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rushteam/catalogrec/logging"
	"github.com/rushteam/catalogrec/pipeline"
	"github.com/rushteam/catalogrec/recall"
	"github.com/rushteam/catalogrec/store"
)

// Options 是 Engine 的默认行为，请求可以覆盖其中一部分。
type Options struct {
	// MaxSuggestions 是 max 为 0 时的自动补全条数，默认 5
	MaxSuggestions int
	// DefaultN 是 n 为 0 时的推荐条数，默认 5
	DefaultN int
	// Anchor 是历史推荐的锚点策略，默认随机
	Anchor     recall.AnchorStrategy
	AnchorSeed int64
	// ExcludeOwnedTypes 是用户推荐是否剔除已拥有类型的默认值
	ExcludeOwnedTypes bool
	// Cache 为 nil 时不缓存
	Cache *store.ResultCache
	// Pipeline 为 nil 时使用内置的用户推荐链路
	Pipeline *pipeline.Config
}

// Engine 持有当前快照并对外提供边界操作，可被多个请求并发调用。
type Engine struct {
	builder *Builder
	opts    Options

	current   atomic.Pointer[served]
	rebuildMu sync.Mutex
}

// served 是快照加上按快照构建好的用户推荐链路。
type served struct {
	*Snapshot
	userNodes []pipeline.Node
	history   *recall.UserHistory
}

// New 创建 Engine，需要调用 Rebuild 才能开始服务。
func New(b *Builder, opts Options) *Engine {
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = 5
	}
	if opts.DefaultN <= 0 {
		opts.DefaultN = recall.DefaultNeighbors - 1
	}
	if opts.Anchor == "" {
		opts.Anchor = recall.AnchorRandom
	}
	return &Engine{builder: b, opts: opts}
}

// Rebuild 构建新快照并替换当前快照；失败时旧快照继续服务。
// 并发调用会被串行化。
func (e *Engine) Rebuild(ctx context.Context) error {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	start := time.Now()
	snap, err := e.builder.Build(ctx)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("snapshot build failed")
		return err
	}
	if err := e.Install(snap); err != nil {
		return err
	}
	products, users := snap.KNN.Size()
	logging.Ctx(ctx).Info().
		Str("version", snap.Version).
		Int("words", snap.Trie.Len()).
		Int("products", products).
		Int("users", users).
		Int("titles", len(snap.Hybrid.Titles())).
		Dur("took", time.Since(start)).
		Msg("snapshot installed")
	return nil
}

// Install 使用已构建好的快照（测试或外部构建时使用）。
func (e *Engine) Install(snap *Snapshot) error {
	nodes, err := e.userNodes(snap)
	if err != nil {
		return err
	}
	k := snap.KNN.K
	if k <= 1 {
		k = recall.DefaultNeighbors
	}
	e.current.Store(&served{
		Snapshot:  snap,
		userNodes: nodes,
		history: &recall.UserHistory{
			KNN:      snap.KNN,
			Strategy: e.opts.Anchor,
			Seed:     e.opts.AnchorSeed,
			TopK:     k - 1,
		},
	})
	return nil
}

// Snapshot 返回当前快照，尚未构建时返回 nil。
func (e *Engine) Snapshot() *Snapshot {
	if s := e.current.Load(); s != nil {
		return s.Snapshot
	}
	return nil
}

// Ready 报告是否已有可用快照。
func (e *Engine) Ready() bool {
	return e.current.Load() != nil
}

func (e *Engine) load() (*served, error) {
	s := e.current.Load()
	if s == nil {
		return nil, errNotReady
	}
	return s, nil
}

func (e *Engine) userNodes(snap *Snapshot) ([]pipeline.Node, error) {
	if e.opts.Pipeline == nil {
		return defaultUserNodes(snap), nil
	}
	p, err := e.opts.Pipeline.BuildPipeline(NodeFactory(snap))
	if err != nil {
		return nil, fmt.Errorf("build user pipeline: %w", err)
	}
	return p.Nodes, nil
}
