package rerank

import (
	"context"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/normalize"
	"github.com/rushteam/catalogrec/pipeline"
)

// Diversity 限制每种产品类型在结果中出现的次数，保留排序靠前的。
//
// 类型依次取自 label[Key]、meta[Key]、规范标题的最后一个 token；
// 三者都为空的候选不受限制。
type Diversity struct {
	// Key 默认 "product_type"
	Key string
	// PerType 每种类型最多保留的个数，默认 1
	PerType int
}

func (n *Diversity) Name() string        { return "rerank.diversity" }
func (n *Diversity) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	key := n.Key
	if key == "" {
		key = core.MetaProductType
	}
	limit := n.PerType
	if limit <= 0 {
		limit = 1
	}

	seen := make(map[string]int)
	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		t := typeOf(it, key)
		if t != "" {
			if seen[t] >= limit {
				continue
			}
			seen[t]++
		}
		out = append(out, it)
	}
	return out, nil
}

func typeOf(it *core.Item, key string) string {
	if lbl, ok := it.Labels[key]; ok && lbl.Value != "" {
		return lbl.Value
	}
	if s := it.GetMetaString(key); s != "" {
		return s
	}
	return normalize.ProductType(it.ID)
}
