package recall

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/pipeline"
)

// AnchorStrategy 决定用用户历史中的哪些产品作为 i2i 锚点。
type AnchorStrategy string

const (
	// AnchorLast 使用最近一次（历史中最后一个）交互的产品，结果可复现
	AnchorLast AnchorStrategy = "last"
	// AnchorRandom 随机选择一个历史产品
	AnchorRandom AnchorStrategy = "random"
	// AnchorRecent 使用最近 Anchors 个产品并发召回后合并
	AnchorRecent AnchorStrategy = "recent"
)

// UserHistory 是基于用户历史的个性化召回源：
// 从历史中挑选锚点产品，再召回锚点的近邻。
type UserHistory struct {
	KNN      *ItemKNN
	Strategy AnchorStrategy
	// Anchors 在 AnchorRecent 下使用的锚点数，默认 3
	Anchors int
	// TopK 返回的物品数，默认 5
	TopK int
	// Seed 随机锚点的种子；0 表示按时间取种子
	Seed int64
	// Timeout 每个锚点召回的超时（仅 AnchorRecent）
	Timeout time.Duration

	rngOnce sync.Once
	rngMu   sync.Mutex
	rng     *rand.Rand
}

func (r *UserHistory) Name() string        { return "recall.user_history" }
func (r *UserHistory) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *UserHistory) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *UserHistory) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.KNN == nil || rctx == nil || rctx.UserID == "" {
		return nil, nil
	}
	history := r.KNN.History(rctx.UserID)
	if len(history) == 0 {
		return nil, nil
	}
	topK := r.TopK
	if topK <= 0 {
		topK = DefaultNeighbors - 1
	}

	switch r.Strategy {
	case AnchorRandom:
		anchor := history[r.intn(len(history))]
		return (&Similar{KNN: r.KNN, ProductID: anchor.ProductID, TopK: topK}).Recall(ctx, rctx)
	case AnchorRecent:
		return r.recallRecent(ctx, rctx, history, topK)
	default:
		anchor := history[len(history)-1]
		return (&Similar{KNN: r.KNN, ProductID: anchor.ProductID, TopK: topK}).Recall(ctx, rctx)
	}
}

func (r *UserHistory) recallRecent(
	ctx context.Context,
	rctx *core.RecommendContext,
	history []ProductMeta,
	topK int,
) ([]*core.Item, error) {
	anchors := r.Anchors
	if anchors <= 0 {
		anchors = 3
	}
	if anchors > len(history) {
		anchors = len(history)
	}
	owned := make(map[string]struct{}, len(history))
	for _, h := range history {
		owned[h.ProductID] = struct{}{}
	}

	// 最近的锚点优先级最高
	sources := make([]Source, 0, anchors)
	for i := len(history) - 1; i >= len(history)-anchors; i-- {
		sources = append(sources, &Similar{KNN: r.KNN, ProductID: history[i].ProductID, TopK: topK})
	}
	fan := &Fanout{Sources: sources, Timeout: r.Timeout, Merge: MergeMaxScore}
	items, err := fan.Process(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}

	out := items[:0]
	for _, it := range items {
		if _, ok := owned[it.ID]; !ok {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (r *UserHistory) intn(n int) int {
	r.rngOnce.Do(func() {
		seed := r.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		r.rng = rand.New(rand.NewSource(seed))
	})
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng.Intn(n)
}
