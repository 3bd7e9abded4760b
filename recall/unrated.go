package recall

import (
	"context"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/normalize"
	"github.com/rushteam/catalogrec/pipeline"
	"github.com/rushteam/catalogrec/pkg/utils"
)

// TitleCatalog 是混合推荐模型暴露给召回层的只读视图。
type TitleCatalog interface {
	// Titles 返回全部规范标题（首次出现顺序）
	Titles() []string
	// RatedTitles 返回用户评价过的标题；未知用户返回 nil
	RatedTitles(userID string) []string
}

// UnratedTitles 召回用户尚未评价过的全部标题，顺序与 Titles() 一致。
// 每个物品的 meta 带 product_type 与 brand（未识别为空串），供表达式过滤使用。
// 未知用户（无任何评分）召回为空：没有历史就没有个性化结果。
type UnratedTitles struct {
	Catalog TitleCatalog
	// Normalizer 识别品牌，nil 时使用内置字典
	Normalizer *normalize.Normalizer
}

func (r *UnratedTitles) Name() string        { return "recall.unrated_titles" }
func (r *UnratedTitles) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *UnratedTitles) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *UnratedTitles) Recall(
	_ context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Catalog == nil || rctx == nil || rctx.UserID == "" {
		return nil, nil
	}
	rated := r.Catalog.RatedTitles(rctx.UserID)
	if len(rated) == 0 {
		return nil, nil
	}
	skip := make(map[string]struct{}, len(rated))
	for _, t := range rated {
		skip[t] = struct{}{}
	}

	norm := r.Normalizer
	if norm == nil {
		norm = normalize.Default()
	}

	titles := r.Catalog.Titles()
	out := make([]*core.Item, 0, max(0, len(titles)-len(skip)))
	for _, t := range titles {
		if _, ok := skip[t]; ok {
			continue
		}
		it := core.NewItem(t)
		brand, _ := norm.FindBrand(t)
		it.Meta[core.MetaProductType] = normalize.ProductType(t)
		it.Meta[core.MetaBrand] = brand
		it.PutLabel(utils.KeyRecallSource, utils.RecallLabel("unrated"))
		out = append(out, it)
	}
	return out, nil
}
