package recall

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/logging"
	"github.com/rushteam/catalogrec/metrics"
	"github.com/rushteam/catalogrec/pipeline"
	"github.com/rushteam/catalogrec/pkg/utils"
)

// Merge 决定多个召回源命中同一物品时保留哪一份。
type Merge string

const (
	// MergeFirst 保留排在前面的召回源给出的物品（默认）
	MergeFirst Merge = "first"
	// MergeMaxScore 保留分数最高的一份，位置取第一次出现处
	MergeMaxScore Merge = "max_score"
	// MergeSum 累加各召回源的分数：同时与多个锚点相似的物品排得更靠前
	MergeSum Merge = "sum"
	// MergeUnion 不去重
	MergeUnion Merge = "union"
)

// Fanout 并发执行多个召回源并合并结果，输出按 Sources 顺序稳定排列。
// 单个召回源出错或超时只会被跳过（记日志与指标），不影响其他召回源。
type Fanout struct {
	Sources       []Source
	Merge         Merge
	Timeout       time.Duration // 单个召回源的超时
	MaxConcurrent int           // 0 表示不限
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	results := make([][]*core.Item, len(n.Sources))
	eg, egCtx := errgroup.WithContext(ctx)
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}
	for i, src := range n.Sources {
		eg.Go(func() error {
			results[i] = n.recallOne(egCtx, rctx, i, src)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []*core.Item
	for _, items := range results {
		for _, it := range items {
			if it != nil {
				all = append(all, it)
			}
		}
	}
	return merge(n.Merge, all), nil
}

func (n *Fanout) recallOne(ctx context.Context, rctx *core.RecommendContext, idx int, src Source) []*core.Item {
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}
	items, err := src.Recall(ctx, rctx)
	if err != nil {
		metrics.RecallSourceFailures.WithLabelValues(src.Name()).Inc()
		logging.Ctx(ctx).Warn().Err(err).
			Str("source", src.Name()).
			Int("index", idx).
			Msg("recall source skipped")
		return nil
	}
	priority := utils.RecallLabel(strconv.Itoa(idx))
	for _, it := range items {
		if it == nil {
			continue
		}
		it.PutLabel(utils.KeyRecallSource, utils.RecallLabel(src.Name()))
		it.PutLabel(utils.KeyRecallPriority, priority)
	}
	return items
}

func merge(strategy Merge, all []*core.Item) []*core.Item {
	if strategy == MergeUnion {
		return all
	}
	pos := make(map[string]int, len(all))
	out := make([]*core.Item, 0, len(all))
	for _, it := range all {
		i, seen := pos[it.ID]
		if !seen {
			pos[it.ID] = len(out)
			out = append(out, it)
			continue
		}
		kept := out[i]
		switch strategy {
		case MergeMaxScore:
			if it.Score > kept.Score {
				out[i] = it
			}
		case MergeSum:
			kept.Score += it.Score
			mergeLabels(kept, it)
		default:
			mergeLabels(kept, it)
		}
	}
	return out
}

func mergeLabels(dst, src *core.Item) {
	for k, v := range src.Labels {
		dst.PutLabel(k, v)
	}
}
