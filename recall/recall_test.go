package recall

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/normalize"
	"github.com/rushteam/catalogrec/pkg/utils"
)

func fixtureRecords() []core.Interaction {
	return []core.Interaction{
		{UserID: "u1", ProductID: "p1", CategoryID: "10", CategoryCode: "electronics.audio.headphones", Brand: "sony"},
		{UserID: "u1", ProductID: "p2", CategoryID: "20", CategoryCode: "computers", Brand: "dell"},
		{UserID: "u1", ProductID: "p1", CategoryID: "11", CategoryCode: "other.code", Brand: "bose"},
		{UserID: "u2", ProductID: "p1", CategoryID: "10", CategoryCode: "electronics.audio.headphones", Brand: "sony"},
		{UserID: "u2", ProductID: "p2", CategoryID: "20", CategoryCode: "computers", Brand: "dell"},
		{UserID: "u3", ProductID: "p2", CategoryID: "20", CategoryCode: "computers", Brand: "dell"},
		{UserID: "u3", ProductID: "p3", CategoryID: "30", CategoryCode: "", Brand: ""},
		{UserID: "u4", ProductID: "p4", CategoryID: "40", CategoryCode: "appliances.kitchen.kettle", Brand: "tefal"},
	}
}

func newFixtureKNN(t *testing.T, k int) *ItemKNN {
	t.Helper()
	m, err := NewItemKNN(k, fixtureRecords())
	if err != nil {
		t.Fatalf("NewItemKNN: %v", err)
	}
	return m
}

func ids(nbs []Neighbor) []string {
	out := make([]string, 0, len(nbs))
	for _, nb := range nbs {
		out = append(out, nb.ProductID)
	}
	return out
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestItemKNN_Fit(t *testing.T) {
	m := newFixtureKNN(t, DefaultNeighbors)
	if p, u := m.Size(); p != 4 || u != 4 {
		t.Errorf("Size() = %d, %d", p, u)
	}
	meta, ok := m.Meta("p1")
	if !ok || meta.Brand != "sony" || meta.CategoryID != "10" {
		t.Errorf("first-seen meta expected, got %+v", meta)
	}
	if !m.Contains("p4") || m.Contains("p9") {
		t.Error("Contains mismatch")
	}

	if _, err := NewItemKNN(6, nil); !errors.Is(err, core.ErrEmptyCorpus) {
		t.Errorf("empty corpus err = %v", err)
	}
}

func TestItemKNN_Recommend(t *testing.T) {
	m := newFixtureKNN(t, DefaultNeighbors)

	tests := []struct {
		name    string
		product string
		n       int
		want    []string
	}{
		{name: "neighbors then orthogonal rows by index", product: "p1", n: 5, want: []string{"p2", "p3", "p4"}},
		{name: "truncated to n", product: "p2", n: 1, want: []string{"p1"}},
		{name: "ordered by distance", product: "p2", n: 2, want: []string{"p1", "p3"}},
		{name: "isolated product", product: "p4", n: 5, want: []string{"p1", "p2", "p3"}},
		{name: "unknown product", product: "p9", n: 5, want: []string{}},
		{name: "zero n", product: "p1", n: 0, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Recommend(tt.product, tt.n)
			if !reflect.DeepEqual(ids(got), tt.want) {
				t.Errorf("Recommend(%s, %d) = %v, want %v", tt.product, tt.n, ids(got), tt.want)
			}
			if len(got) > tt.n {
				t.Errorf("len %d > n %d", len(got), tt.n)
			}
			for _, nb := range got {
				if nb.ProductID == tt.product {
					t.Errorf("result contains the query product")
				}
			}
		})
	}

	got := m.Recommend("p2", 5)
	if !approx(got[0].SimilarityScore, 3/math.Sqrt(15)) {
		t.Errorf("similarity(p2,p1) = %v", got[0].SimilarityScore)
	}
	if !approx(got[1].SimilarityScore, 1/math.Sqrt(3)) {
		t.Errorf("similarity(p2,p3) = %v", got[1].SimilarityScore)
	}
	if got[0].Category != "headphones" || got[0].Brand != "sony" {
		t.Errorf("metadata = %+v", got[0])
	}
}

func TestItemKNN_RecommendRespectsK(t *testing.T) {
	m := newFixtureKNN(t, 3)
	if got := ids(m.Recommend("p1", 5)); !reflect.DeepEqual(got, []string{"p2", "p3"}) {
		t.Errorf("K=3 should give 2 neighbors, got %v", got)
	}
}

func TestItemKNN_History(t *testing.T) {
	m := newFixtureKNN(t, DefaultNeighbors)

	h := m.History("u1")
	if len(h) != 2 || h[0].ProductID != "p1" || h[1].ProductID != "p2" {
		t.Errorf("History(u1) = %+v", h)
	}
	if h[0].Category() != "headphones" {
		t.Errorf("Category() = %q", h[0].Category())
	}
	if got := m.History("nobody"); len(got) != 0 {
		t.Errorf("unknown user history = %v", got)
	}
}

func TestSimilar_Recall(t *testing.T) {
	m := newFixtureKNN(t, DefaultNeighbors)
	src := &Similar{KNN: m, TopK: 2}

	items, err := src.Recall(context.Background(), &core.RecommendContext{Params: map[string]any{ParamProductID: "p2"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].ID != "p1" || items[0].GetMetaString("category_code") != "headphones" {
		t.Fatalf("items = %+v", items)
	}
	if lbl := items[0].Labels["recall_anchor"]; lbl.Value != "p2" {
		t.Errorf("anchor label = %+v", lbl)
	}
	if nb := ItemNeighbor(items[0]); nb.ProductID != "p1" || nb.Brand != "sony" {
		t.Errorf("ItemNeighbor = %+v", nb)
	}

	items, _ = src.Recall(context.Background(), &core.RecommendContext{})
	if len(items) != 0 {
		t.Errorf("no anchor should recall nothing, got %d", len(items))
	}
}

func TestUserHistory_Strategies(t *testing.T) {
	m := newFixtureKNN(t, DefaultNeighbors)
	rctx := &core.RecommendContext{UserID: "u1"}

	last, err := (&UserHistory{KNN: m}).Recall(context.Background(), rctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := itemIDs(last); !reflect.DeepEqual(got, []string{"p1", "p3", "p4"}) {
		t.Errorf("last = %v", got)
	}

	recent, err := (&UserHistory{KNN: m, Strategy: AnchorRecent, Anchors: 2}).Recall(context.Background(), rctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := itemIDs(recent); !reflect.DeepEqual(got, []string{"p3", "p4"}) {
		t.Errorf("recent = %v", got)
	}

	random := &UserHistory{KNN: m, Strategy: AnchorRandom, Seed: 7}
	for i := 0; i < 5; i++ {
		items, err := random.Recall(context.Background(), rctx)
		if err != nil || len(items) == 0 {
			t.Fatalf("random recall = %v, %v", items, err)
		}
		anchor := items[0].Labels["recall_anchor"].Value
		if anchor != "p1" && anchor != "p2" {
			t.Errorf("anchor %q not from history", anchor)
		}
	}

	none, _ := (&UserHistory{KNN: m}).Recall(context.Background(), &core.RecommendContext{UserID: "ghost"})
	if len(none) != 0 {
		t.Errorf("unknown user = %v", none)
	}
}

func itemIDs(items []*core.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func staticSource(name string, items []*core.Item, err error) Source {
	return SourceFunc{SourceName: name, Fn: func(context.Context, *core.RecommendContext) ([]*core.Item, error) {
		return items, err
	}}
}

func scoredItem(id string, score float64) *core.Item {
	it := core.NewItem(id)
	it.Score = score
	return it
}

func TestFanout_Merge(t *testing.T) {
	build := func() []Source {
		return []Source{
			staticSource("a", []*core.Item{scoredItem("x", 0.1), scoredItem("y", 0.5)}, nil),
			staticSource("broken", nil, errors.New("down")),
			staticSource("b", []*core.Item{scoredItem("y", 0.9), scoredItem("z", 0.2)}, nil),
		}
	}

	tests := []struct {
		merge      Merge
		wantIDs    []string
		wantYScore float64
	}{
		{merge: "", wantIDs: []string{"x", "y", "z"}, wantYScore: 0.5},
		{merge: MergeFirst, wantIDs: []string{"x", "y", "z"}, wantYScore: 0.5},
		{merge: MergeMaxScore, wantIDs: []string{"x", "y", "z"}, wantYScore: 0.9},
		{merge: MergeSum, wantIDs: []string{"x", "y", "z"}, wantYScore: 1.4},
		{merge: MergeUnion, wantIDs: []string{"x", "y", "y", "z"}, wantYScore: 0.5},
	}
	for _, tt := range tests {
		t.Run(string(tt.merge), func(t *testing.T) {
			f := &Fanout{Sources: build(), Merge: tt.merge, MaxConcurrent: 2}
			items, err := f.Process(context.Background(), &core.RecommendContext{}, nil)
			if err != nil {
				t.Fatal(err)
			}
			if got := itemIDs(items); !reflect.DeepEqual(got, tt.wantIDs) {
				t.Fatalf("ids = %v, want %v", got, tt.wantIDs)
			}
			if math.Abs(items[1].Score-tt.wantYScore) > 1e-9 {
				t.Errorf("y score = %v, want %v", items[1].Score, tt.wantYScore)
			}
		})
	}

	t.Run("labels", func(t *testing.T) {
		f := &Fanout{Sources: build()}
		items, _ := f.Process(context.Background(), &core.RecommendContext{}, nil)
		y := items[1].Labels[utils.KeyRecallSource]
		if y.Value != "a|b" {
			t.Errorf("recall source = %q", y.Value)
		}
		if p := items[2].Labels[utils.KeyRecallPriority].Value; p != "2" {
			t.Errorf("z priority = %q", p)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := (&Fanout{Sources: build()}).Process(ctx, &core.RecommendContext{}, nil); !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v", err)
		}
	})
}

type fakeCatalog struct {
	titles []string
	rated  map[string][]string
}

func (f *fakeCatalog) Titles() []string                 { return f.titles }
func (f *fakeCatalog) RatedTitles(user string) []string { return f.rated[user] }

func TestUnratedTitles(t *testing.T) {
	cat := &fakeCatalog{
		titles: []string{"Dell monitor", "Logitech mouse", "Sony headphones"},
		rated:  map[string][]string{"u1": {"Logitech mouse"}},
	}
	r := &UnratedTitles{Catalog: cat}

	items, err := r.Recall(context.Background(), &core.RecommendContext{UserID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if got := itemIDs(items); !reflect.DeepEqual(got, []string{"Dell monitor", "Sony headphones"}) {
		t.Errorf("unrated = %v", got)
	}
	if got := items[0].GetMetaString("product_type"); got != "monitor" {
		t.Errorf("product_type = %q", got)
	}
	if got := items[0].GetMetaString("brand"); got != "Dell" {
		t.Errorf("brand = %q", got)
	}

	items, _ = r.Recall(context.Background(), &core.RecommendContext{UserID: "new"})
	if len(items) != 0 {
		t.Errorf("unknown user should recall nothing, got %v", itemIDs(items))
	}
}

func TestUnratedTitles_CustomTaxonomy(t *testing.T) {
	cat := &fakeCatalog{
		titles: []string{"Acme monitor", "Dell monitor"},
		rated:  map[string][]string{"u1": {"Logitech mouse"}},
	}
	norm := normalize.New(normalize.Taxonomy{
		Types:  []normalize.TypeEntry{{Name: "monitor", Keywords: []string{"monitor"}}},
		Brands: []normalize.BrandEntry{{Keyword: "acme", Brand: "Acme"}},
	})
	r := &UnratedTitles{Catalog: cat, Normalizer: norm}

	items, err := r.Recall(context.Background(), &core.RecommendContext{UserID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if got := items[0].GetMetaString(core.MetaBrand); got != "Acme" {
		t.Errorf("custom brand = %q", got)
	}
	// dell 不在自定义字典里
	if got := items[1].GetMetaString(core.MetaBrand); got != "" {
		t.Errorf("brand outside taxonomy = %q", got)
	}
}
