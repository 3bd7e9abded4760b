package suggest

import "strings"

// SubstringIndex 是子串降级的扩展点。
// 默认实现是全量线性扫描，复杂度 O(语料总字符数)，适用于目录级（数十万）语料；
// 语料更大时可替换为 n-gram 倒排或后缀自动机。
// 实现不需要自带锁：Trie 在自身锁内调用 Add / Match。
type SubstringIndex interface {
	Add(word string)
	Match(pattern string) []string
}

// ScanIndex 按插入顺序保存词，查询时逐个做子串判断。
type ScanIndex struct {
	words []string
}

func NewScanIndex() *ScanIndex {
	return &ScanIndex{}
}

func (s *ScanIndex) Add(word string) {
	s.words = append(s.words, word)
}

func (s *ScanIndex) Match(pattern string) []string {
	var out []string
	for _, w := range s.words {
		if strings.Contains(w, pattern) {
			out = append(out, w)
		}
	}
	return out
}

// NGramIndex 是基于三元组倒排的子串索引：先用 pattern 的全部三元组求交得到候选，
// 再逐个做子串确认。pattern 短于 3 个字符时退化为线性扫描。
type NGramIndex struct {
	words    []string
	postings map[string][]int
}

const gramSize = 3

func NewNGramIndex() *NGramIndex {
	return &NGramIndex{postings: make(map[string][]int)}
}

func (g *NGramIndex) Add(word string) {
	id := len(g.words)
	g.words = append(g.words, word)
	seen := make(map[string]struct{})
	for _, gram := range grams(word) {
		if _, ok := seen[gram]; ok {
			continue
		}
		seen[gram] = struct{}{}
		g.postings[gram] = append(g.postings[gram], id)
	}
}

func (g *NGramIndex) Match(pattern string) []string {
	pg := grams(pattern)
	if len(pg) == 0 {
		var out []string
		for _, w := range g.words {
			if strings.Contains(w, pattern) {
				out = append(out, w)
			}
		}
		return out
	}

	// postings 按 id 升序，求交集
	cand := g.postings[pg[0]]
	for _, gram := range pg[1:] {
		cand = intersect(cand, g.postings[gram])
		if len(cand) == 0 {
			return nil
		}
	}
	var out []string
	for _, id := range cand {
		if strings.Contains(g.words[id], pattern) {
			out = append(out, g.words[id])
		}
	}
	return out
}

func grams(s string) []string {
	rs := []rune(s)
	if len(rs) < gramSize {
		return nil
	}
	out := make([]string, 0, len(rs)-gramSize+1)
	for i := 0; i+gramSize <= len(rs); i++ {
		out = append(out, string(rs[i:i+gramSize]))
	}
	return out
}

func intersect(a, b []int) []int {
	out := make([]int, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}
