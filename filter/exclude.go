package filter

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/pkg/conv"
)

// ParamExcludeIDs 是 RecommendContext.Params 中请求级排除名单的 key。
const ParamExcludeIDs = "exclude_ids"

// ExcludeFilter 是排除名单过滤器，名单来源依次为：
//   - ItemIDs：静态名单
//   - rctx.Params["exclude_ids"]：请求级名单（[]string 或 []any）
//   - Store[Key]：存储中的 JSON 字符串数组（可选，读取失败视为空名单）
type ExcludeFilter struct {
	ItemIDs []string
	Store   core.Store
	Key     string
}

func (f *ExcludeFilter) Name() string {
	return "filter.exclude"
}

func (f *ExcludeFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}

	for _, id := range f.ItemIDs {
		if item.ID == id {
			return true, nil
		}
	}

	if v, ok := rctx.Param(ParamExcludeIDs); ok {
		for _, id := range conv.ToStringSlice(v) {
			if item.ID == id {
				return true, nil
			}
		}
	}

	if f.Store != nil && f.Key != "" {
		data, err := f.Store.Get(ctx, f.Key)
		if err != nil {
			return false, nil
		}
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return false, err
		}
		for _, id := range ids {
			if item.ID == id {
				return true, nil
			}
		}
	}

	return false, nil
}
