package model

import (
	"context"
	"math"
	"math/rand"
	"os"

	"github.com/goccy/go-json"

	"github.com/rushteam/catalogrec/core"
)

// SVD 实现了带偏置的矩阵分解 (Biased Matrix Factorization)，即推荐领域常说的 "Funk SVD"。
//
// 预测原理：
//
//	r̂(u,i) = μ + b_u + b_i + p_u · q_i
//
// 其中 μ 为全局均分，b_u / b_i 为用户 / 物品偏置，p_u / q_i 为隐向量。
// 训练使用 SGD，按输入顺序逐条遍历评分；隐向量初始化为 N(0, InitStd)，偏置初始化为 0。
// 预测值截断到 [MinRating, MaxRating]；用户或物品任一未见过时返回全局均分。
type SVD struct {
	Factors        int     // 隐向量维度，默认 100
	Epochs         int     // 训练轮数，默认 20
	LearningRate   float64 // 学习率，默认 0.005
	Regularization float64 // L2 正则，默认 0.02
	InitStd        float64 // 初始化标准差，默认 0.1
	Seed           int64   // 随机种子，0 表示固定种子 1
	MinRating      float64 // 评分下界，默认 1
	MaxRating      float64 // 评分上界，默认 5

	mean    float64
	users   map[string]int
	items   map[string]int
	bu, bi  []float64
	pu, qi  [][]float64
	trained bool
}

// NewSVD 返回使用默认超参数的 SVD。
func NewSVD() *SVD {
	s := &SVD{}
	s.defaults()
	return s
}

func (s *SVD) Name() string { return "svd" }

func (s *SVD) defaults() {
	if s.Factors <= 0 {
		s.Factors = 100
	}
	if s.Epochs <= 0 {
		s.Epochs = 20
	}
	if s.LearningRate <= 0 {
		s.LearningRate = 0.005
	}
	if s.Regularization < 0 {
		s.Regularization = 0
	} else if s.Regularization == 0 {
		s.Regularization = 0.02
	}
	if s.InitStd <= 0 {
		s.InitStd = 0.1
	}
	if s.MinRating == 0 && s.MaxRating == 0 {
		s.MinRating, s.MaxRating = 1, 5
	}
}

// Fit 使用 SGD 拟合评分。没有评分时返回 core.ErrEmptyCorpus。
// 每个 epoch 结束时检查 ctx。
func (s *SVD) Fit(ctx context.Context, ratings []core.RatingRecord) error {
	if len(ratings) == 0 {
		return core.ErrEmptyCorpus
	}
	s.defaults()

	users := make(map[string]int)
	items := make(map[string]int)
	type triple struct {
		u, i int
		r    float64
	}
	data := make([]triple, 0, len(ratings))
	var sum float64
	for _, r := range ratings {
		u, ok := users[r.UserID]
		if !ok {
			u = len(users)
			users[r.UserID] = u
		}
		i, ok := items[r.Title]
		if !ok {
			i = len(items)
			items[r.Title] = i
		}
		data = append(data, triple{u: u, i: i, r: r.Rating})
		sum += r.Rating
	}
	mean := sum / float64(len(ratings))

	seed := s.Seed
	if seed == 0 {
		seed = 1
	}
	rng := rand.New(rand.NewSource(seed))
	initFactors := func(n int) [][]float64 {
		m := make([][]float64, n)
		for i := range m {
			m[i] = make([]float64, s.Factors)
			for f := range m[i] {
				m[i][f] = rng.NormFloat64() * s.InitStd
			}
		}
		return m
	}
	pu := initFactors(len(users))
	qi := initFactors(len(items))
	bu := make([]float64, len(users))
	bi := make([]float64, len(items))

	lr, reg := s.LearningRate, s.Regularization
	for epoch := 0; epoch < s.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, t := range data {
			p, q := pu[t.u], qi[t.i]
			dot := 0.0
			for f := range p {
				dot += p[f] * q[f]
			}
			e := t.r - (mean + bu[t.u] + bi[t.i] + dot)
			bu[t.u] += lr * (e - reg*bu[t.u])
			bi[t.i] += lr * (e - reg*bi[t.i])
			for f := range p {
				pf, qf := p[f], q[f]
				p[f] += lr * (e*qf - reg*pf)
				q[f] += lr * (e*pf - reg*qf)
			}
		}
	}

	s.mean, s.users, s.items = mean, users, items
	s.bu, s.bi, s.pu, s.qi = bu, bi, pu, qi
	s.trained = true
	return nil
}

// GlobalMean 返回训练集全局均分。
func (s *SVD) GlobalMean() float64 { return s.mean }

// Known 判断 (用户, 标题) 是否都在训练集中。
func (s *SVD) Known(userID, title string) bool {
	_, uok := s.users[userID]
	_, iok := s.items[title]
	return uok && iok
}

// PredictRating 实现 RatingModel。未训练时返回 core.ErrModelNotTrained。
func (s *SVD) PredictRating(userID, title string) (float64, error) {
	if !s.trained {
		return 0, core.ErrModelNotTrained
	}
	u, uok := s.users[userID]
	i, iok := s.items[title]
	if !uok || !iok {
		return s.mean, nil
	}
	est := s.mean + s.bu[u] + s.bi[i]
	for f, pf := range s.pu[u] {
		est += pf * s.qi[i][f]
	}
	return math.Min(s.MaxRating, math.Max(s.MinRating, est)), nil
}

type svdFile struct {
	Factors   int            `json:"factors"`
	MinRating float64        `json:"min_rating"`
	MaxRating float64        `json:"max_rating"`
	Mean      float64        `json:"mean"`
	Users     map[string]int `json:"users"`
	Items     map[string]int `json:"items"`
	BU        []float64      `json:"bu"`
	BI        []float64      `json:"bi"`
	PU        [][]float64    `json:"pu"`
	QI        [][]float64    `json:"qi"`
}

// Save 把训练好的参数写为 JSON 文件。
func (s *SVD) Save(path string) error {
	if !s.trained {
		return core.ErrModelNotTrained
	}
	data, err := json.Marshal(svdFile{
		Factors: s.Factors, MinRating: s.MinRating, MaxRating: s.MaxRating,
		Mean: s.mean, Users: s.users, Items: s.items,
		BU: s.bu, BI: s.bi, PU: s.pu, QI: s.qi,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadSVD 读取 Save 写出的模型文件。
func LoadSVD(path string) (*SVD, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw svdFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, core.WrapDomainError(core.ModuleRecommender, core.ErrorCodeInvalidInput, "decode svd model", err)
	}
	if len(raw.PU) != len(raw.Users) || len(raw.QI) != len(raw.Items) ||
		len(raw.BU) != len(raw.Users) || len(raw.BI) != len(raw.Items) {
		return nil, core.NewDomainError(core.ModuleRecommender, core.ErrorCodeInvalidInput, "svd model: inconsistent dimensions")
	}
	s := &SVD{Factors: raw.Factors, MinRating: raw.MinRating, MaxRating: raw.MaxRating}
	s.defaults()
	s.mean, s.users, s.items = raw.Mean, raw.Users, raw.Items
	s.bu, s.bi, s.pu, s.qi = raw.BU, raw.BI, raw.PU, raw.QI
	s.trained = true
	return s, nil
}
