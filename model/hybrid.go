package model

import (
	"context"
	"sort"
	"sync"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/normalize"
)

// DefaultAlpha 是协同估计在混合评分中的默认权重。
const DefaultAlpha = 0.5

// Prediction 是一个候选标题及其预测评分。
type Prediction struct {
	Title           string  `json:"title"`
	PredictedRating float64 `json:"predicted_rating"`
}

// RecommendOptions 控制 Hybrid.Recommend。
type RecommendOptions struct {
	// Alpha 为协同估计的权重，nil 表示使用 Hybrid.Alpha
	Alpha *float64
	// ExcludeOwnedTypes 为 true 时剔除与用户已拥有产品类型相同的候选
	ExcludeOwnedTypes bool
}

type titleRating struct {
	title  int
	rating float64
}

// Hybrid 是协同过滤 + 内容相似度的混合评分模型。
//
//	predict(u, t) = α · collab(u, t) + (1-α) · content(u, t)
//
// collab 来自 SVD，用户或标题未出现在训练集时退化为全局均分；
// content 是用户历史评分按 "历史标题与 t 的 TF-IDF 余弦相似度" 加权的平均，
// 只统计相似度 > 0 的标题，没有可用标题时同样退化为全局均分。
//
// 生命周期：LoadData → Train → 只读查询。LoadData/Train 与查询之间由读写锁保护。
type Hybrid struct {
	SVD   *SVD
	Alpha float64

	mu       sync.RWMutex
	ratings  []core.RatingRecord
	mean     float64
	titles   []string
	titleIdx map[string]int
	sim      *Similarity
	byUser   map[string][]titleRating
	rated    map[string][]string
	trained  bool
}

// NewHybrid 返回使用默认 SVD 超参数与 α=0.5 的混合模型。
func NewHybrid() *Hybrid {
	return &Hybrid{SVD: NewSVD(), Alpha: DefaultAlpha}
}

func (h *Hybrid) Name() string { return "hybrid" }

// LoadData 展开评分语料并构建标题相似度矩阵。
// 同一 (用户, 标题) 的多次评分视为多条独立观测。
// 没有任何评分时返回 core.ErrEmptyCorpus。
func (h *Hybrid) LoadData(ctx context.Context, users []core.UserRatings) error {
	ratings := core.Flatten(users)
	if len(ratings) == 0 {
		return core.ErrEmptyCorpus
	}

	var sum float64
	titleIdx := make(map[string]int)
	var titles []string
	byUser := make(map[string][]titleRating)
	rated := make(map[string][]string)
	seen := make(map[[2]string]struct{})
	for _, r := range ratings {
		sum += r.Rating
		i, ok := titleIdx[r.Title]
		if !ok {
			i = len(titles)
			titleIdx[r.Title] = i
			titles = append(titles, r.Title)
		}
		byUser[r.UserID] = append(byUser[r.UserID], titleRating{title: i, rating: r.Rating})
		key := [2]string{r.UserID, r.Title}
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			rated[r.UserID] = append(rated[r.UserID], r.Title)
		}
	}

	sim, err := FitTFIDF(titles).SimilarityMatrix(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.ratings = ratings
	h.mean = sum / float64(len(ratings))
	h.titles = titles
	h.titleIdx = titleIdx
	h.sim = sim
	h.byUser = byUser
	h.rated = rated
	h.trained = false
	return nil
}

// Train 在已加载的评分上拟合 SVD。未调用 LoadData 时返回 core.ErrEmptyCorpus。
func (h *Hybrid) Train(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.ratings) == 0 {
		return core.ErrEmptyCorpus
	}
	if h.SVD == nil {
		h.SVD = NewSVD()
	}
	if err := h.SVD.Fit(ctx, h.ratings); err != nil {
		return err
	}
	h.trained = true
	return nil
}

// Fit 依次执行 LoadData 与 Train。
func (h *Hybrid) Fit(ctx context.Context, users []core.UserRatings) error {
	if err := h.LoadData(ctx, users); err != nil {
		return err
	}
	return h.Train(ctx)
}

// GlobalMean 返回全部评分的均值。
func (h *Hybrid) GlobalMean() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.mean
}

// Titles 返回全部规范标题（首次出现顺序）。
func (h *Hybrid) Titles() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.titles
}

// RatedTitles 返回用户评价过的标题（去重，首次出现顺序）。
func (h *Hybrid) RatedTitles(userID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rated[userID]
}

// OwnedTypes 返回用户评价过的标题的产品类型集合。
func (h *Hybrid) OwnedTypes(userID string) map[string]struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	owned := make(map[string]struct{}, len(h.rated[userID]))
	for _, t := range h.rated[userID] {
		owned[normalize.ProductType(t)] = struct{}{}
	}
	return owned
}

// Similarity 返回两个标题的内容相似度；任一未知时返回 (0, false)。
func (h *Hybrid) Similarity(a, b string) (float64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	i, iok := h.titleIdx[a]
	j, jok := h.titleIdx[b]
	if !iok || !jok {
		return 0, false
	}
	return h.sim.At(i, j), true
}

// CollabRating 返回 SVD 的协同估计。
func (h *Hybrid) CollabRating(userID, title string) (float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.collabLocked(userID, title)
}

// ContentRating 返回基于标题相似度的内容估计。
func (h *Hybrid) ContentRating(userID, title string) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.contentLocked(userID, title)
}

// PredictRating 实现 RatingModel，使用 h.Alpha。
func (h *Hybrid) PredictRating(userID, title string) (float64, error) {
	return h.PredictRatingAlpha(userID, title, h.Alpha)
}

// PredictRatingAlpha 返回 α · collab + (1-α) · content。
func (h *Hybrid) PredictRatingAlpha(userID, title string, alpha float64) (float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	collab, err := h.collabLocked(userID, title)
	if err != nil {
		return 0, err
	}
	return blend(alpha, collab, h.contentLocked(userID, title)), nil
}

// blend 在两个估计相等时原样返回（冷启动时二者都是全局均分）。
func blend(alpha, collab, content float64) float64 {
	if collab == content {
		return collab
	}
	return alpha*collab + (1-alpha)*content
}

func (h *Hybrid) collabLocked(userID, title string) (float64, error) {
	if !h.trained {
		return 0, core.ErrModelNotTrained
	}
	return h.SVD.PredictRating(userID, title)
}

func (h *Hybrid) contentLocked(userID, title string) float64 {
	q, ok := h.titleIdx[title]
	if !ok {
		return h.mean
	}
	var weighted, total float64
	for _, tr := range h.byUser[userID] {
		s := h.sim.At(q, tr.title)
		if s <= 0 {
			continue
		}
		weighted += s * tr.rating
		total += s
	}
	if total == 0 {
		return h.mean
	}
	return weighted / total
}

// Recommend 对用户未评价过的全部标题打分，按预测评分降序返回前 n 个；
// 分数相同保持标题的首次出现顺序。未知用户或 n <= 0 返回空。
func (h *Hybrid) Recommend(userID string, n int, opts RecommendOptions) ([]Prediction, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.trained {
		return nil, core.ErrModelNotTrained
	}
	rated := h.rated[userID]
	if len(rated) == 0 || n <= 0 {
		return []Prediction{}, nil
	}
	alpha := h.Alpha
	if opts.Alpha != nil {
		alpha = *opts.Alpha
	}

	skip := make(map[string]struct{}, len(rated))
	owned := make(map[string]struct{}, len(rated))
	for _, t := range rated {
		skip[t] = struct{}{}
		owned[normalize.ProductType(t)] = struct{}{}
	}

	out := make([]Prediction, 0, len(h.titles)-len(rated))
	for _, t := range h.titles {
		if _, ok := skip[t]; ok {
			continue
		}
		if opts.ExcludeOwnedTypes {
			if _, ok := owned[normalize.ProductType(t)]; ok {
				continue
			}
		}
		collab, err := h.collabLocked(userID, t)
		if err != nil {
			return nil, err
		}
		out = append(out, Prediction{
			Title:           t,
			PredictedRating: blend(alpha, collab, h.contentLocked(userID, t)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PredictedRating > out[j].PredictedRating })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

var _ RatingModel = (*Hybrid)(nil)
var _ RatingModel = (*SVD)(nil)
