package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/filter"
	"github.com/rushteam/catalogrec/logging"
	"github.com/rushteam/catalogrec/metrics"
	"github.com/rushteam/catalogrec/model"
	"github.com/rushteam/catalogrec/normalize"
	"github.com/rushteam/catalogrec/pipeline"
	"github.com/rushteam/catalogrec/rank"
	"github.com/rushteam/catalogrec/recall"
	"github.com/rushteam/catalogrec/rerank"
	"github.com/rushteam/catalogrec/store"
	"github.com/rushteam/catalogrec/suggest"
)

func invalid(msg string) error {
	return core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, msg)
}

func (e *Engine) count(n int) (int, error) {
	if n < 0 {
		return 0, invalid("n must not be negative")
	}
	if n == 0 {
		return e.opts.DefaultN, nil
	}
	return n, nil
}

// Autocomplete 返回 query 的补全候选。query 会被转为小写并去掉首尾空白，
// 为空时直接返回空结果而不查询索引。max 为 0 时取默认条数，负数返回 INVALID_INPUT。
func (e *Engine) Autocomplete(_ context.Context, query string, max int) (suggest.Result, error) {
	if max < 0 {
		return suggest.Result{}, invalid("max must not be negative")
	}
	if max == 0 {
		max = e.opts.MaxSuggestions
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return suggest.Result{Words: []string{}, Tier: suggest.TierNone}, nil
	}
	s, err := e.load()
	if err != nil {
		return suggest.Result{}, err
	}
	res := s.Trie.Suggest(query, max)
	if res.Words == nil {
		res.Words = []string{}
	}
	metrics.AutocompleteRequests.WithLabelValues(string(res.Tier)).Inc()
	return res, nil
}

// RecommendSimilarProducts 返回与 productID 最相似的至多 n 个产品；未知产品返回空。
func (e *Engine) RecommendSimilarProducts(_ context.Context, productID string, n int) (out []recall.Neighbor, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRecommend("similar", start, err) }()

	if productID == "" {
		return nil, invalid("product_id is required")
	}
	if n, err = e.count(n); err != nil {
		return nil, err
	}
	s, err := e.load()
	if err != nil {
		return nil, err
	}
	out = s.KNN.Recommend(productID, n)
	if out == nil {
		out = []recall.Neighbor{}
	}
	return out, nil
}

// UserOptions 是 RecommendForUser 的请求级选项。
type UserOptions struct {
	// Alpha 覆盖混合权重，取值 [0,1]
	Alpha *float64
	// ExcludeOwnedTypes 为 nil 时使用 Options.ExcludeOwnedTypes
	ExcludeOwnedTypes *bool
	// Filter 是 CEL 表达式，为 true 的候选被保留
	Filter string
	// ExcludeIDs 是不希望出现的标题
	ExcludeIDs []string
	// Diversity 为 true 时同一产品类型只保留一个
	Diversity bool
}

func (o UserOptions) owned(def bool) bool {
	if o.ExcludeOwnedTypes != nil {
		return *o.ExcludeOwnedTypes
	}
	return def
}

func (o UserOptions) cacheKey(version, userID string, n int, owned bool) string {
	alpha := "-"
	if o.Alpha != nil {
		alpha = strconv.FormatFloat(*o.Alpha, 'g', -1, 64)
	}
	return store.CacheKey("user", version, userID, strconv.Itoa(n), alpha,
		strconv.FormatBool(owned), strconv.FormatBool(o.Diversity),
		strings.Join(o.ExcludeIDs, ","), o.Filter)
}

// RecommendForUser 用混合模型为用户推荐未评价过的标题，按预测评分降序。
// 未知用户返回空。结果按快照版本缓存。
func (e *Engine) RecommendForUser(ctx context.Context, userID string, n int, opts UserOptions) (out []model.Prediction, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRecommend("user", start, err) }()

	if userID == "" {
		return nil, invalid("user_id is required")
	}
	if n, err = e.count(n); err != nil {
		return nil, err
	}
	if opts.Alpha != nil && (*opts.Alpha < 0 || *opts.Alpha > 1) {
		return nil, invalid("alpha must be within [0, 1]")
	}
	s, err := e.load()
	if err != nil {
		return nil, err
	}

	owned := opts.owned(e.opts.ExcludeOwnedTypes)
	key := opts.cacheKey(s.Version, userID, n, owned)
	if hit, cerr := e.opts.Cache.Get(ctx, key, &out); cerr != nil {
		metrics.CacheErrors.WithLabelValues("get").Inc()
		logging.Ctx(ctx).Warn().Err(cerr).Msg("result cache get failed")
	} else if hit {
		metrics.CacheHits.WithLabelValues("user").Inc()
		return out, nil
	} else if e.opts.Cache != nil {
		metrics.CacheMisses.WithLabelValues("user").Inc()
	}

	rctx := core.NewContext(userID, "user").SetParam(rerank.ParamN, n)
	if opts.Alpha != nil {
		rctx.SetParam(rank.ParamAlpha, *opts.Alpha)
	}
	if len(opts.ExcludeIDs) > 0 {
		rctx.SetParam(filter.ParamExcludeIDs, opts.ExcludeIDs)
	}

	nodes := make([]pipeline.Node, 0, len(s.userNodes)+3)
	nodes = append(nodes, s.userNodes...)
	filters := []filter.Filter{&filter.ExcludeFilter{}}
	if owned {
		filters = append(filters, &filter.OwnedTypeFilter{Owned: s.Hybrid})
	}
	if opts.Filter != "" {
		ef, err := filter.NewExprFilter(opts.Filter, false)
		if err != nil {
			return nil, err
		}
		filters = append(filters, ef)
	}
	nodes = append(nodes, &filter.FilterNode{Filters: filters, Strict: true})
	if opts.Diversity {
		nodes = append(nodes, &rerank.Diversity{})
	}
	nodes = append(nodes, &rerank.TopNNode{N: n})

	items, err := (&pipeline.Pipeline{Nodes: nodes}).Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}
	out = make([]model.Prediction, 0, len(items))
	for _, it := range items {
		out = append(out, model.Prediction{Title: it.ID, PredictedRating: it.Score})
	}

	if cerr := e.opts.Cache.Set(ctx, key, out); cerr != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		logging.Ctx(ctx).Warn().Err(cerr).Msg("result cache set failed")
	}
	return out, nil
}

// RecommendFromHistory 从用户交互历史中选一个锚点产品，返回其近邻。
// 没有历史的用户返回空。
func (e *Engine) RecommendFromHistory(ctx context.Context, userID string, n int) (out []recall.Neighbor, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRecommend("history", start, err) }()

	if userID == "" {
		return nil, invalid("user_id is required")
	}
	if n, err = e.count(n); err != nil {
		return nil, err
	}
	s, err := e.load()
	if err != nil {
		return nil, err
	}
	items, err := s.history.Recall(ctx, core.NewContext(userID, "history"))
	if err != nil {
		return nil, err
	}
	if len(items) > n {
		items = items[:n]
	}
	out = make([]recall.Neighbor, 0, len(items))
	for _, it := range items {
		out = append(out, recall.ItemNeighbor(it))
	}
	return out, nil
}

// UserHistory 返回用户交互过的产品（去重，首次出现顺序）；未知用户返回空。
func (e *Engine) UserHistory(_ context.Context, userID string) ([]recall.ProductMeta, error) {
	if userID == "" {
		return nil, invalid("user_id is required")
	}
	s, err := e.load()
	if err != nil {
		return nil, err
	}
	h := s.KNN.History(userID)
	if h == nil {
		h = []recall.ProductMeta{}
	}
	return h, nil
}

// TitleInfo 是一个原始商品标题的规范化结果。
type TitleInfo struct {
	Title       string   `json:"title"`
	Canonical   string   `json:"canonical"`
	ProductType string   `json:"product_type,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	Specs       []string `json:"specs,omitempty"`
}

// NormalizeTitle 用当前快照的词典规范化一个原始标题。
func (e *Engine) NormalizeTitle(_ context.Context, title string) (TitleInfo, error) {
	if strings.TrimSpace(title) == "" {
		return TitleInfo{}, invalid("title is required")
	}
	n := normalize.Default()
	if s := e.current.Load(); s != nil && s.Normalizer != nil {
		n = s.Normalizer
	}
	info := TitleInfo{Title: title, Canonical: n.SimplifyTitle(title)}
	if pt, ok := n.FindProductType(title); ok {
		info.ProductType = pt
		info.Specs = n.ExtractKeySpecs(title, pt)
	}
	info.Brand, _ = n.FindBrand(title)
	return info, nil
}
