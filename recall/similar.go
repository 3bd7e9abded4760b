package recall

import (
	"context"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/pipeline"
	"github.com/rushteam/catalogrec/pkg/conv"
	"github.com/rushteam/catalogrec/pkg/utils"
)

// ParamProductID 是 RecommendContext.Params 中锚点产品的 key。
const ParamProductID = "product_id"

// Similar 是 i2i 召回源：以一个锚点产品召回其近邻。
// 锚点优先取 ProductID，否则取 rctx.Params["product_id"]。
// 同时实现了 Source 和 Node 接口，可以直接在 Pipeline 中使用。
type Similar struct {
	KNN       *ItemKNN
	ProductID string
	// TopK 返回的近邻数，默认 5
	TopK int
}

func (r *Similar) Name() string        { return "recall.similar" }
func (r *Similar) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *Similar) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *Similar) Recall(
	_ context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.KNN == nil {
		return nil, nil
	}
	anchor := r.ProductID
	if anchor == "" {
		v, _ := rctx.Param(ParamProductID)
		anchor, _ = conv.ToString(v)
	}
	if anchor == "" {
		return nil, nil
	}
	topK := r.TopK
	if topK <= 0 {
		topK = DefaultNeighbors - 1
	}

	neighbors := r.KNN.Recommend(anchor, topK)
	out := make([]*core.Item, 0, len(neighbors))
	for _, nb := range neighbors {
		it := NeighborItem(nb)
		it.PutLabel(utils.KeyRecallSource, utils.RecallLabel("similar"))
		it.PutLabel(utils.KeyRecallAnchor, utils.RecallLabel(anchor))
		out = append(out, it)
	}
	return out, nil
}

// NeighborItem 把 Neighbor 转为 Item：Score 为相似度，类目/品牌写入 Meta。
func NeighborItem(nb Neighbor) *core.Item {
	it := core.NewItem(nb.ProductID)
	it.Score = nb.SimilarityScore
	it.Meta[core.MetaCategory] = nb.Category
	it.Meta[core.MetaBrand] = nb.Brand
	return it
}

// ItemNeighbor 是 NeighborItem 的逆变换。
func ItemNeighbor(it *core.Item) Neighbor {
	return Neighbor{
		ProductID:       it.ID,
		Category:        it.GetMetaString(core.MetaCategory),
		Brand:           it.GetMetaString(core.MetaBrand),
		SimilarityScore: it.Score,
	}
}
