package recall

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/rushteam/catalogrec/core"
)

// DefaultNeighbors 是近邻数（包含物品自身），对应每次最多 5 个推荐。
const DefaultNeighbors = 6

// ProductMeta 是产品首次出现时的类目/品牌信息。
type ProductMeta struct {
	ProductID    string `json:"product_id"`
	CategoryID   string `json:"category_id"`
	CategoryCode string `json:"category_code"`
	Brand        string `json:"brand"`
}

// Category 返回类目路径的最后一段，例如 "electronics.audio.headphones" → "headphones"。
func (m ProductMeta) Category() string {
	if i := strings.LastIndexByte(m.CategoryCode, '.'); i >= 0 {
		return m.CategoryCode[i+1:]
	}
	return m.CategoryCode
}

// Neighbor 是一个相似产品。
type Neighbor struct {
	ProductID       string  `json:"product_id"`
	Category        string  `json:"category_code"`
	Brand           string  `json:"brand"`
	SimilarityScore float64 `json:"similarity_score"`
}

type sparseRow struct {
	users  []int32
	counts []float64
	norm   float64
}

type cell struct {
	row   int32
	count float64
}

// ItemKNN 是基于物品的近邻推荐（Item-based CF, i2i）。
//
// 核心思想："被同一批用户交互过的物品彼此相似"
//
// 算法流程：
//  1. 交互事件 → 产品×用户计数矩阵（行、列均按首次出现顺序）
//  2. 余弦距离精确检索 K 个最近邻（含自身）
//  3. 去掉自身，附带类目/品牌与相似度 1 - 距离
//
// 工程特征：
//   - 精确暴力检索，结果可复现：按 (距离, 行号) 排序
//   - 冷启动：训练集中不存在的产品直接返回空
//
// Fit 与查询之间由读写锁保护；服务层每次重建都使用新实例再原子替换。
type ItemKNN struct {
	// K 近邻数（包含自身），<= 1 时取 DefaultNeighbors
	K int

	mu       sync.RWMutex
	products []string
	index    map[string]int
	rows     []sparseRow
	columns  [][]cell // user column → 非零行
	meta     []ProductMeta
	history  map[string][]int
	users    int
}

// NewItemKNN 创建并拟合近邻模型。
func NewItemKNN(k int, records []core.Interaction) (*ItemKNN, error) {
	m := &ItemKNN{K: k}
	if err := m.Fit(records); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ItemKNN) Name() string { return "recall.item_knn" }

// Fit 构建计数矩阵、产品元信息与用户历史。没有任何产品时返回 core.ErrEmptyCorpus。
func (m *ItemKNN) Fit(records []core.Interaction) error {
	if len(records) == 0 {
		return core.ErrEmptyCorpus
	}

	var (
		products []string
		index    = make(map[string]int)
		meta     []ProductMeta
		userIdx  = make(map[string]int32)
		counts   []map[int32]float64
		history  = make(map[string][]int)
		seenPair = make(map[[2]string]struct{})
	)
	for _, r := range records {
		row, ok := index[r.ProductID]
		if !ok {
			row = len(products)
			index[r.ProductID] = row
			products = append(products, r.ProductID)
			meta = append(meta, ProductMeta{
				ProductID:    r.ProductID,
				CategoryID:   r.CategoryID,
				CategoryCode: r.CategoryCode,
				Brand:        r.Brand,
			})
			counts = append(counts, make(map[int32]float64))
		}
		col, ok := userIdx[r.UserID]
		if !ok {
			col = int32(len(userIdx))
			userIdx[r.UserID] = col
		}
		counts[row][col]++

		key := [2]string{r.UserID, r.ProductID}
		if _, ok := seenPair[key]; !ok {
			seenPair[key] = struct{}{}
			history[r.UserID] = append(history[r.UserID], row)
		}
	}

	rows := make([]sparseRow, len(products))
	columns := make([][]cell, len(userIdx))
	for i, c := range counts {
		users := make([]int32, 0, len(c))
		for u := range c {
			users = append(users, u)
		}
		sort.Slice(users, func(a, b int) bool { return users[a] < users[b] })
		vals := make([]float64, len(users))
		var sq float64
		for j, u := range users {
			vals[j] = c[u]
			sq += c[u] * c[u]
			columns[u] = append(columns[u], cell{row: int32(i), count: c[u]})
		}
		rows[i] = sparseRow{users: users, counts: vals, norm: math.Sqrt(sq)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = products
	m.index = index
	m.rows = rows
	m.columns = columns
	m.meta = meta
	m.history = history
	m.users = len(userIdx)
	return nil
}

// Size 返回 (产品数, 用户数)。
func (m *ItemKNN) Size() (products, users int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.products), m.users
}

// Contains 判断产品是否在训练集中。
func (m *ItemKNN) Contains(productID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.index[productID]
	return ok
}

// Meta 返回产品元信息。
func (m *ItemKNN) Meta(productID string) (ProductMeta, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[productID]
	if !ok {
		return ProductMeta{}, false
	}
	return m.meta[i], true
}

// History 返回用户交互过的产品（按产品去重，首次出现顺序）。未知用户返回空。
func (m *ItemKNN) History(userID string) []ProductMeta {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.history[userID]
	out := make([]ProductMeta, 0, len(rows))
	for _, r := range rows {
		out = append(out, m.meta[r])
	}
	return out
}

type scored struct {
	row  int
	dist float64
}

// Recommend 返回 productID 的至多 n 个最近邻（不含自身）。未知产品或 n <= 0 返回空。
func (m *ItemKNN) Recommend(productID string, n int) []Neighbor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	self, ok := m.index[productID]
	if !ok || n <= 0 {
		return []Neighbor{}
	}
	k := m.K
	if k <= 1 {
		k = DefaultNeighbors
	}
	want := min(k-1, n, len(m.products)-1)
	if want <= 0 {
		return []Neighbor{}
	}

	// 只有与 self 共享用户的行点积非零
	q := m.rows[self]
	dots := make(map[int]float64)
	for j, u := range q.users {
		for _, c := range m.columns[u] {
			if int(c.row) != self {
				dots[int(c.row)] += q.counts[j] * c.count
			}
		}
	}
	cands := make([]scored, 0, len(dots))
	for row, dot := range dots {
		cands = append(cands, scored{row: row, dist: 1 - dot/(q.norm*m.rows[row].norm)})
	}
	sort.Slice(cands, func(a, b int) bool {
		if cands[a].dist != cands[b].dist {
			return cands[a].dist < cands[b].dist
		}
		return cands[a].row < cands[b].row
	})
	if len(cands) > want {
		cands = cands[:want]
	}
	// 正交的行距离均为 1，按行号补齐
	for row := 0; len(cands) < want && row < len(m.products); row++ {
		if row == self {
			continue
		}
		if _, ok := dots[row]; ok {
			continue
		}
		cands = append(cands, scored{row: row, dist: 1})
	}

	out := make([]Neighbor, 0, len(cands))
	for _, c := range cands {
		meta := m.meta[c.row]
		out = append(out, Neighbor{
			ProductID:       meta.ProductID,
			Category:        meta.Category(),
			Brand:           meta.Brand,
			SimilarityScore: 1 - c.dist,
		})
	}
	return out
}
