// Package filter 在召回之后剔除不符合约束的候选：
// 请求级排除名单、已拥有的产品类型、CEL 表达式。
package filter

import (
	"context"

	"github.com/rushteam/catalogrec/core"
)

// Filter 判断一个候选是否应被剔除，返回 true 表示剔除。
type Filter interface {
	Name() string
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

// Preparer 由需要按请求预先计算状态的 Filter 实现。
// FilterNode 在遍历候选之前调用一次 Prepare，用返回的 Filter 处理本次请求的全部候选。
type Preparer interface {
	Prepare(ctx context.Context, rctx *core.RecommendContext) (Filter, error)
}

// Func 把一个判断函数包装成 Filter。
type Func struct {
	FilterName string
	Fn         func(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

func (f Func) Name() string { return f.FilterName }

func (f Func) ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	return f.Fn(ctx, rctx, item)
}

var (
	_ Preparer = (*OwnedTypeFilter)(nil)

	_ Filter = (*ExcludeFilter)(nil)
	_ Filter = (*OwnedTypeFilter)(nil)
	_ Filter = (*ExprFilter)(nil)
)
