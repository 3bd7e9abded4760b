// Package rank 为候选打分并排序。
package rank

import (
	"context"
	"sort"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/model"
	"github.com/rushteam/catalogrec/pipeline"
	"github.com/rushteam/catalogrec/pkg/conv"
	"github.com/rushteam/catalogrec/pkg/utils"
)

// ParamAlpha 是 RecommendContext.Params 中覆盖混合权重的 key。
const ParamAlpha = "alpha"

// AlphaModel 是支持按请求指定混合权重的评分模型（例如 model.Hybrid）。
type AlphaModel interface {
	PredictRatingAlpha(userID, title string, alpha float64) (float64, error)
}

// RatingNode 使用 RatingModel 为 (用户, 标题) 打分：
//   - 写入 labels：rank_model
//   - 更新 item.Score 为预测评分，并按分数降序稳定排序（同分保持召回顺序）
//
// 若模型实现 AlphaModel 且请求携带 alpha 参数，则使用请求的 alpha。
type RatingNode struct {
	Model model.RatingModel
}

func (n *RatingNode) Name() string        { return "rank.rating" }
func (n *RatingNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *RatingNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Model == nil || len(items) == 0 || rctx == nil {
		return items, nil
	}

	predict := n.Model.PredictRating
	if am, ok := n.Model.(AlphaModel); ok {
		if v, ok := rctx.Param(ParamAlpha); ok {
			if alpha, ok := conv.ToFloat64(v); ok {
				predict = func(u, t string) (float64, error) { return am.PredictRatingAlpha(u, t, alpha) }
			}
		}
	}

	for _, it := range items {
		if it == nil {
			continue
		}
		score, err := predict(rctx.UserID, it.ID)
		if err != nil {
			return nil, err
		}
		it.Score = score
		it.PutLabel(utils.KeyRankModel, utils.RankLabel(n.Model.Name()))
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i] == nil {
			return false
		}
		if items[j] == nil {
			return true
		}
		return items[i].Score > items[j].Score
	})
	return items, nil
}
