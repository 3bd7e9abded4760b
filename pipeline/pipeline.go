package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/logging"
	"github.com/rushteam/catalogrec/metrics"
)

// Pipeline 是按顺序执行的 Node 链：召回 → 过滤 → 排序 → 重排。
type Pipeline struct {
	Nodes []Node
}

// Run 依次执行各 Node，上一步的输出是下一步的输入。
// 任一 Node 出错即中止，错误带上 Node 名称且保留原始错误码；
// 每一步之前检查 ctx，取消后不再执行后续 Node。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	log := logging.Ctx(ctx)
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		next, err := node.Process(ctx, rctx, cur)
		took := time.Since(start)
		metrics.PipelineNodeDuration.WithLabelValues(node.Name()).Observe(took.Seconds())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		log.Debug().
			Str("node", node.Name()).
			Str("kind", string(node.Kind())).
			Int("in", len(cur)).
			Int("out", len(next)).
			Dur("took", took).
			Msg("pipeline node")
		cur = next
	}
	return cur, nil
}
