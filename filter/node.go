package filter

import (
	"context"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/logging"
	"github.com/rushteam/catalogrec/pipeline"
)

// FilterNode 依次应用 Filters，任一返回 true 的候选被剔除，保留的候选顺序不变。
type FilterNode struct {
	Filters []Filter
	// Strict 为 true 时过滤器出错即中止；否则该过滤器对该候选视为不剔除
	Strict bool
}

func (n *FilterNode) Name() string        { return "filter.node" }
func (n *FilterNode) Kind() pipeline.Kind { return pipeline.KindFilter }

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	active, err := n.prepare(ctx, rctx)
	if err != nil {
		return nil, err
	}

	dropped := make(map[string]int, len(active))
	errs := 0
	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		keep := true
		for _, f := range active {
			drop, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				if n.Strict {
					return nil, err
				}
				errs++
				continue
			}
			if drop {
				dropped[f.Name()]++
				keep = false
				break
			}
		}
		if keep {
			out = append(out, item)
		}
	}

	if len(dropped) > 0 || errs > 0 {
		ev := logging.Ctx(ctx).Debug().Int("kept", len(out)).Int("filter_errors", errs)
		for name, c := range dropped {
			ev = ev.Int(name, c)
		}
		ev.Msg("candidates filtered")
	}
	return out, nil
}

func (n *FilterNode) prepare(ctx context.Context, rctx *core.RecommendContext) ([]Filter, error) {
	active := make([]Filter, 0, len(n.Filters))
	for _, f := range n.Filters {
		p, ok := f.(Preparer)
		if !ok {
			active = append(active, f)
			continue
		}
		bound, err := p.Prepare(ctx, rctx)
		if err != nil {
			if n.Strict {
				return nil, err
			}
			logging.Ctx(ctx).Warn().Err(err).Str("filter", f.Name()).Msg("filter prepare failed, using unprepared filter")
			bound = f
		}
		active = append(active, bound)
	}
	return active, nil
}
