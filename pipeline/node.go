package pipeline

import (
	"context"

	"github.com/rushteam/catalogrec/core"
)

// Kind 标记 Node 所处阶段，用于日志与指标。
type Kind string

const (
	KindRecall      Kind = "recall"      // 生成候选：未评价标题、近邻、历史锚点
	KindFilter      Kind = "filter"      // 剔除：排除名单、已拥有类型、表达式
	KindRank        Kind = "rank"        // 打分排序：混合评分
	KindReRank      Kind = "rerank"      // 重排：类型去重、截断
	KindPostProcess Kind = "postprocess" // 其他修饰
)

// Node 是链路中的一步，输入候选、输出候选。
// 召回节点通常忽略输入，其余节点只做删减、改分或重排。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}

// NodeFunc 把一个函数包装成 Node。
type NodeFunc struct {
	NodeName string
	NodeKind Kind
	Fn       func(ctx context.Context, rctx *core.RecommendContext, items []*core.Item) ([]*core.Item, error)
}

func (f NodeFunc) Name() string { return f.NodeName }

func (f NodeFunc) Kind() Kind {
	if f.NodeKind == "" {
		return KindPostProcess
	}
	return f.NodeKind
}

func (f NodeFunc) Process(ctx context.Context, rctx *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
	return f.Fn(ctx, rctx, items)
}
