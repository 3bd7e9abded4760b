package filter

import (
	"context"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/normalize"
)

// OwnedTypes 返回用户已拥有的产品类型集合。
type OwnedTypes interface {
	OwnedTypes(userID string) map[string]struct{}
}

// OwnedTypeFilter 剔除与用户已拥有产品同类型的候选（类型取规范标题最后一个 token），
// 避免给买过显示器支架的用户再推一个显示器支架。
type OwnedTypeFilter struct {
	Owned OwnedTypes
}

func (f *OwnedTypeFilter) Name() string {
	return "filter.owned_type"
}

func (f *OwnedTypeFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	if f.Owned == nil || rctx == nil || rctx.UserID == "" {
		return false, nil
	}
	_, owned := f.Owned.OwnedTypes(rctx.UserID)[normalize.ProductType(item.ID)]
	return owned, nil
}

// Prepare 每个请求只取一次用户的类型集合。
func (f *OwnedTypeFilter) Prepare(_ context.Context, rctx *core.RecommendContext) (Filter, error) {
	if f.Owned == nil || rctx == nil || rctx.UserID == "" {
		return f, nil
	}
	owned := f.Owned.OwnedTypes(rctx.UserID)
	return Func{FilterName: f.Name(), Fn: func(_ context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
		if item == nil {
			return true, nil
		}
		_, ok := owned[normalize.ProductType(item.ID)]
		return ok, nil
	}}, nil
}
