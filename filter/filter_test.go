package filter

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/store"
)

func items(ids ...string) []*core.Item {
	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.NewItem(id))
	}
	return out
}

func itemIDs(items []*core.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

type ownedStub map[string]map[string]struct{}

func (o ownedStub) OwnedTypes(userID string) map[string]struct{} { return o[userID] }

var errFilter = Func{FilterName: "filter.err", Fn: func(context.Context, *core.RecommendContext, *core.Item) (bool, error) {
	return false, errors.New("boom")
}}

func TestFilterNode(t *testing.T) {
	ctx := context.Background()
	rctx := &core.RecommendContext{
		UserID: "u1",
		Params: map[string]any{ParamExcludeIDs: []any{"logitech keyboard"}},
	}
	node := &FilterNode{Filters: []Filter{
		errFilter,
		&ExcludeFilter{ItemIDs: []string{"sony headphones"}},
		&OwnedTypeFilter{Owned: ownedStub{"u1": {"monitor": {}}}},
	}}

	in := items("dell 27inch monitor", "logitech keyboard", "sony headphones", "ergotron monitor stand", "logitech mouse")
	out, err := node.Process(ctx, rctx, in)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"ergotron monitor stand", "logitech mouse"}
	if got := itemIDs(out); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if len(in) != 5 {
		t.Errorf("input modified: %v", itemIDs(in))
	}

	short := Func{FilterName: "short", Fn: func(_ context.Context, _ *core.RecommendContext, it *core.Item) (bool, error) {
		return len(it.ID) < 15, nil
	}}
	out, _ = (&FilterNode{Filters: []Filter{short}}).Process(ctx, rctx, in)
	if got := itemIDs(out); !reflect.DeepEqual(got, []string{"dell 27inch monitor", "logitech keyboard", "sony headphones", "ergotron monitor stand"}) {
		t.Errorf("func filter = %v", got)
	}

	strict := &FilterNode{Filters: []Filter{errFilter}, Strict: true}
	if _, err := strict.Process(ctx, rctx, items("a")); err == nil {
		t.Error("strict node should surface filter errors")
	}
}

func TestExcludeFilter_Store(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	defer s.Close()
	if err := s.Set(ctx, "blocked", []byte(`["p2","p3"]`)); err != nil {
		t.Fatal(err)
	}

	f := &ExcludeFilter{Store: s, Key: "blocked"}
	for id, want := range map[string]bool{"p1": false, "p2": true, "p3": true} {
		got, err := f.ShouldFilter(ctx, &core.RecommendContext{}, core.NewItem(id))
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("%s filtered = %v, want %v", id, got, want)
		}
	}

	missing := &ExcludeFilter{Store: s, Key: "nope"}
	if got, err := missing.ShouldFilter(ctx, nil, core.NewItem("p2")); got || err != nil {
		t.Errorf("missing key = %v, %v", got, err)
	}
}

type countingOwned struct {
	ownedStub
	calls int
}

func (c *countingOwned) OwnedTypes(userID string) map[string]struct{} {
	c.calls++
	return c.ownedStub.OwnedTypes(userID)
}

func TestOwnedTypeFilter_PreparedOncePerRequest(t *testing.T) {
	owned := &countingOwned{ownedStub: ownedStub{"u1": {"monitor": {}, "mouse": {}}}}
	node := &FilterNode{Filters: []Filter{&OwnedTypeFilter{Owned: owned}}}
	in := items("dell 27inch monitor", "samsung 32inch monitor", "logitech mouse", "logitech keyboard", "sony headphones")

	out, err := node.Process(context.Background(), &core.RecommendContext{UserID: "u1"}, in)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"logitech keyboard", "sony headphones"}; !reflect.DeepEqual(itemIDs(out), want) {
		t.Errorf("got %v, want %v", itemIDs(out), want)
	}
	if owned.calls != 1 {
		t.Errorf("OwnedTypes called %d times for %d candidates", owned.calls, len(in))
	}

	// 下一个请求重新取用户的类型集合
	if _, err := node.Process(context.Background(), &core.RecommendContext{UserID: "u2"}, in); err != nil {
		t.Fatal(err)
	}
	if owned.calls != 2 {
		t.Errorf("calls = %d after second request", owned.calls)
	}
}

func TestOwnedTypeFilter_NoUser(t *testing.T) {
	f := &OwnedTypeFilter{Owned: ownedStub{"u1": {"mouse": {}}}}
	got, err := f.ShouldFilter(context.Background(), &core.RecommendContext{}, core.NewItem("logitech mouse"))
	if err != nil || got {
		t.Errorf("anonymous request should keep items: %v, %v", got, err)
	}
}

func TestExprFilter(t *testing.T) {
	if _, err := NewExprFilter("item.score >", false); !core.IsInvalidInput(err) {
		t.Errorf("syntax error should be INVALID_INPUT, got %v", err)
	}
	if _, err := NewExprFilter(`"text"`, false); !core.IsInvalidInput(err) {
		t.Errorf("non-bool expression should be INVALID_INPUT, got %v", err)
	}

	f, err := NewExprFilter(`item.score >= 3.5 && item.meta.brand != "apple"`, false)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		score      float64
		brand      string
		wantFilter bool
	}{
		{score: 4, brand: "logitech", wantFilter: false},
		{score: 3, brand: "logitech", wantFilter: true},
		{score: 5, brand: "apple", wantFilter: true},
	}
	for _, tt := range tests {
		it := core.NewItem("x")
		it.Score = tt.score
		it.Meta["brand"] = tt.brand
		got, err := f.ShouldFilter(context.Background(), &core.RecommendContext{UserID: "u"}, it)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.wantFilter {
			t.Errorf("score=%v brand=%s filtered=%v", tt.score, tt.brand, got)
		}
	}

	inv, _ := NewExprFilter(`item.id.startsWith("apple")`, true)
	if got, _ := inv.ShouldFilter(context.Background(), nil, core.NewItem("apple watch")); !got {
		t.Error("inverted filter should drop matching items")
	}
}
