package model

import (
	"context"
	"math"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

var tokenPattern = regexp.MustCompile(`\b\w\w+\b`)

// Tokenize 小写化后按 `\b\w\w+\b` 切词并去掉英文停用词。
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := englishStopWords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

// TFIDF 是文档集合上的 TF-IDF 向量化结果。
//
//	tf(t,d)  = t 在 d 中出现的次数
//	idf(t)   = ln((1+n)/(1+df(t))) + 1
//	vec(d)   = L2 归一化后的 tf*idf
//
// 向量以稀疏形式保存（按词表下标升序）。
type TFIDF struct {
	Vocabulary map[string]int
	rows       []sparseVec
}

type sparseVec struct {
	idx []int
	val []float64
}

// FitTFIDF 在 docs 上拟合词表与 idf，并返回每篇文档的向量。
func FitTFIDF(docs []string) *TFIDF {
	tokens := make([][]string, len(docs))
	df := make(map[string]int)
	for i, d := range docs {
		tokens[i] = Tokenize(d)
		seen := make(map[string]struct{}, len(tokens[i]))
		for _, t := range tokens[i] {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				df[t]++
			}
		}
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	vocab := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	n := float64(len(docs))
	for i, t := range terms {
		vocab[t] = i
		idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}

	rows := make([]sparseVec, len(docs))
	for i, toks := range tokens {
		tf := make(map[int]float64, len(toks))
		for _, t := range toks {
			tf[vocab[t]]++
		}
		idx := make([]int, 0, len(tf))
		for j := range tf {
			idx = append(idx, j)
		}
		sort.Ints(idx)
		val := make([]float64, len(idx))
		var sq float64
		for k, j := range idx {
			val[k] = tf[j] * idf[j]
			sq += val[k] * val[k]
		}
		if sq > 0 {
			norm := math.Sqrt(sq)
			for k := range val {
				val[k] /= norm
			}
		}
		rows[i] = sparseVec{idx: idx, val: val}
	}
	return &TFIDF{Vocabulary: vocab, rows: rows}
}

// Len 返回文档数。
func (t *TFIDF) Len() int { return len(t.rows) }

// Cosine 返回文档 i 与 j 的余弦相似度（向量已归一化，即点积）。
func (t *TFIDF) Cosine(i, j int) float64 {
	a, b := t.rows[i], t.rows[j]
	var dot float64
	for x, y := 0, 0; x < len(a.idx) && y < len(b.idx); {
		switch {
		case a.idx[x] == b.idx[y]:
			dot += a.val[x] * b.val[y]
			x++
			y++
		case a.idx[x] < b.idx[y]:
			x++
		default:
			y++
		}
	}
	return dot
}

// Similarity 是稠密对称的标题×标题余弦相似度矩阵，对角线为 1。
type Similarity struct {
	n    int
	data []float64
}

// At 返回 (i, j) 处的相似度。
func (s *Similarity) At(i, j int) float64 { return s.data[i*s.n+j] }

// Len 返回矩阵维度。
func (s *Similarity) Len() int { return s.n }

// SimilarityMatrix 按行分块并发计算完整相似度矩阵。
func (t *TFIDF) SimilarityMatrix(ctx context.Context) (*Similarity, error) {
	n := len(t.rows)
	sim := &Similarity{n: n, data: make([]float64, n*n)}
	if n == 0 {
		return sim, nil
	}

	workers := runtime.GOMAXPROCS(0)
	block := (n + workers - 1) / workers
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for start := 0; start < n; start += block {
		end := min(start+block, n)
		eg.Go(func() error {
			for i := start; i < end; i++ {
				if err := egCtx.Err(); err != nil {
					return err
				}
				// 每行只写自己的区间，无需加锁
				row := sim.data[i*n : (i+1)*n]
				for j := 0; j < n; j++ {
					if i == j {
						row[j] = 1
						continue
					}
					row[j] = t.Cosine(i, j)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return sim, nil
}
