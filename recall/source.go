package recall

import (
	"context"

	"github.com/rushteam/catalogrec/core"
)

// Source 是可被 Fanout 并发执行的召回源。
// Similar、UserHistory 与 UnratedTitles 既是 Source 也是 pipeline.Node。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

// SourceFunc 把一个函数包装成 Source。
type SourceFunc struct {
	SourceName string
	Fn         func(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

func (f SourceFunc) Name() string { return f.SourceName }

func (f SourceFunc) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	return f.Fn(ctx, rctx)
}

var (
	_ Source = (*Similar)(nil)
	_ Source = (*UserHistory)(nil)
	_ Source = (*UnratedTitles)(nil)
)
