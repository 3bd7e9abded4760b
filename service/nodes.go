package service

import (
	"fmt"

	"github.com/rushteam/catalogrec/filter"
	"github.com/rushteam/catalogrec/pipeline"
	"github.com/rushteam/catalogrec/pkg/conv"
	"github.com/rushteam/catalogrec/rank"
	"github.com/rushteam/catalogrec/recall"
	"github.com/rushteam/catalogrec/rerank"
)

// NodeFactory 返回绑定到快照 s 的 Node 工厂，供 YAML 配置的推荐链路使用。
//
// 支持的类型：
//
//	recall.unrated       用户未评价的全部标题
//	recall.similar       以 rctx.Params["product_id"] 为锚点的近邻（top_k）
//	recall.user_history  以用户历史为锚点的近邻（anchor: last|random|recent, top_k, anchors, seed）
//	filter               组合过滤（exclude_ids, owned_type, expr, invert, strict）
//	filter.owned_type    剔除用户已拥有类型
//	filter.expr          CEL 表达式过滤（expr, invert）
//	rank.rating          混合模型打分
//	rerank.diversity     每种类型最多保留 per_type 个（key, per_type）
//	rerank.topn          截断（n）
func NodeFactory(s *Snapshot) *pipeline.NodeFactory {
	f := pipeline.NewNodeFactory()

	f.Register("recall.unrated", func(map[string]any) (pipeline.Node, error) {
		return &recall.UnratedTitles{Catalog: s.Hybrid, Normalizer: s.Normalizer}, nil
	})
	f.Register("recall.similar", func(cfg map[string]any) (pipeline.Node, error) {
		return &recall.Similar{KNN: s.KNN, TopK: conv.ConfigGetInt(cfg, "top_k", 0)}, nil
	})
	f.Register("recall.user_history", func(cfg map[string]any) (pipeline.Node, error) {
		strategy := recall.AnchorStrategy(conv.ConfigGet(cfg, "anchor", string(recall.AnchorLast)))
		switch strategy {
		case recall.AnchorLast, recall.AnchorRandom, recall.AnchorRecent:
		default:
			return nil, fmt.Errorf("unknown anchor strategy %q", strategy)
		}
		return &recall.UserHistory{
			KNN:      s.KNN,
			Strategy: strategy,
			TopK:     conv.ConfigGetInt(cfg, "top_k", 0),
			Anchors:  conv.ConfigGetInt(cfg, "anchors", 0),
			Seed:     int64(conv.ConfigGetInt(cfg, "seed", 0)),
		}, nil
	})

	f.Register("filter", func(cfg map[string]any) (pipeline.Node, error) {
		var filters []filter.Filter
		if ids := conv.ToStringSlice(cfg["exclude_ids"]); len(ids) > 0 {
			filters = append(filters, &filter.ExcludeFilter{ItemIDs: ids})
		} else {
			filters = append(filters, &filter.ExcludeFilter{})
		}
		if conv.ConfigGet(cfg, "owned_type", false) {
			filters = append(filters, &filter.OwnedTypeFilter{Owned: s.Hybrid})
		}
		if expr := conv.ConfigGet(cfg, "expr", ""); expr != "" {
			ef, err := filter.NewExprFilter(expr, conv.ConfigGet(cfg, "invert", false))
			if err != nil {
				return nil, err
			}
			filters = append(filters, ef)
		}
		return &filter.FilterNode{Filters: filters, Strict: conv.ConfigGet(cfg, "strict", true)}, nil
	})
	f.Register("filter.owned_type", func(map[string]any) (pipeline.Node, error) {
		return &filter.FilterNode{Filters: []filter.Filter{&filter.OwnedTypeFilter{Owned: s.Hybrid}}}, nil
	})
	f.Register("filter.expr", func(cfg map[string]any) (pipeline.Node, error) {
		ef, err := filter.NewExprFilter(conv.ConfigGet(cfg, "expr", ""), conv.ConfigGet(cfg, "invert", false))
		if err != nil {
			return nil, err
		}
		return &filter.FilterNode{Filters: []filter.Filter{ef}, Strict: true}, nil
	})

	f.Register("rank.rating", func(map[string]any) (pipeline.Node, error) {
		return &rank.RatingNode{Model: s.Hybrid}, nil
	})

	f.Register("rerank.diversity", func(cfg map[string]any) (pipeline.Node, error) {
		return &rerank.Diversity{
			Key:     conv.ConfigGet(cfg, "key", ""),
			PerType: conv.ConfigGetInt(cfg, "per_type", 0),
		}, nil
	})
	f.Register("rerank.topn", func(cfg map[string]any) (pipeline.Node, error) {
		return &rerank.TopNNode{N: conv.ConfigGetInt(cfg, "n", 0)}, nil
	})

	return f
}

// defaultUserNodes 是未配置 YAML 时的用户推荐链路（不含请求级过滤与截断）。
func defaultUserNodes(s *Snapshot) []pipeline.Node {
	return []pipeline.Node{
		&recall.UnratedTitles{Catalog: s.Hybrid, Normalizer: s.Normalizer},
		&rank.RatingNode{Model: s.Hybrid},
	}
}
