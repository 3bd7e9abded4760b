package filter

import (
	"context"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/pkg/dsl"
)

// ExprFilter 使用 CEL 表达式过滤：表达式为 true 的物品被保留，
// 设置 Invert 后表达式为 true 的物品被过滤。
//
// 示例：
//
//	item.meta.product_type != "stand"
//	item.score >= 3.5
//	!(item.id in rctx.params.exclude_ids)
type ExprFilter struct {
	Expr   string
	Invert bool

	prog *dsl.Program
}

// NewExprFilter 预编译表达式，语法错误在构造时返回。
func NewExprFilter(expr string, invert bool) (*ExprFilter, error) {
	prog, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{Expr: expr, Invert: invert, prog: prog}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	if f.Expr == "" {
		return false, nil
	}
	prog := f.prog
	if prog == nil {
		var err error
		if prog, err = dsl.Compile(f.Expr); err != nil {
			return false, err
		}
	}
	keep, err := prog.Eval(item, rctx)
	if err != nil {
		return false, err
	}
	return keep == f.Invert, nil
}
