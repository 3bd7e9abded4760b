// Package rerank 在排序结果上做多样性与截断。
package rerank

import (
	"context"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/pipeline"
	"github.com/rushteam/catalogrec/pkg/conv"
)

// ParamN 是 RecommendContext.Params 中请求条数的 key。
const ParamN = "n"

// TopNNode 保留排序后的前 N 个候选。
// N <= 0 时取 rctx.Params["n"]，两者都没有时不截断。
type TopNNode struct {
	N int
}

func (n *TopNNode) Name() string        { return "rerank.topn" }
func (n *TopNNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.N
	if limit <= 0 {
		if v, ok := rctx.Param(ParamN); ok {
			if f, ok := conv.ToFloat64(v); ok {
				limit = int(f)
			}
		}
	}
	if limit <= 0 || len(items) <= limit {
		return items, nil
	}
	return items[:limit], nil
}
