// Package suggest 提供商品名自动补全索引：前缀树 + 三级降级匹配。
//
// 查询顺序：
//  1. 完整前缀匹配：返回该前缀下的全部词
//  2. 子串匹配：扫描全部词，返回包含 pattern 的词
//  3. 最长部分前缀：返回已匹配到的最深节点下的全部词
//
// 结果去重、字典序升序、截断到 max。索引不做大小写归一化，调用方负责。
package suggest

import (
	"sort"
	"sync"
	"unicode/utf8"
)

// Tier 标记结果由哪一级匹配产生，便于观测。
type Tier string

const (
	TierNone      Tier = "none"
	TierPrefix    Tier = "prefix"
	TierSubstring Tier = "substring"
	TierPartial   Tier = "partial"
)

type node struct {
	children map[rune]*node
	end      bool
}

func newNode() *node {
	return &node{children: make(map[rune]*node)}
}

// Result 是一次查询的结果。
type Result struct {
	Words []string
	Tier  Tier
	// MatchedPrefix 是沿树走到的最长前缀（可能短于 pattern）
	MatchedPrefix string
}

// Trie 是并发安全的前缀树：单写多读。
// 每个词只存两份：树本身，以及供子串降级使用的 SubstringIndex。
type Trie struct {
	mu    sync.RWMutex
	root  *node
	size  int
	index SubstringIndex
}

// Option 配置 Trie。
type Option func(*Trie)

// WithSubstringIndex 替换默认的线性扫描子串索引。
func WithSubstringIndex(idx SubstringIndex) Option {
	return func(t *Trie) {
		if idx != nil {
			t.index = idx
		}
	}
}

func New(opts ...Option) *Trie {
	t := &Trie{root: newNode()}
	for _, opt := range opts {
		opt(t)
	}
	if t.index == nil {
		t.index = NewScanIndex()
	}
	return t
}

// Insert 插入一个词；重复插入是幂等的，空串与非法 UTF-8 忽略。
func (t *Trie) Insert(word string) {
	if !insertable(word) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.insertLocked(word)
}

// InsertAll 批量插入。
func (t *Trie) InsertAll(words []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, w := range words {
		if insertable(w) {
			t.insertLocked(w)
		}
	}
}

// insertable 排除非法 UTF-8：按 rune 建树会把坏字节变成 U+FFFD，补全结果不再是原词。
func insertable(word string) bool {
	return word != "" && utf8.ValidString(word)
}

func (t *Trie) insertLocked(word string) {
	cur := t.root
	for _, r := range word {
		next, ok := cur.children[r]
		if !ok {
			next = newNode()
			cur.children[r] = next
		}
		cur = next
	}
	if cur.end {
		return
	}
	cur.end = true
	t.size++
	t.index.Add(word)
}

// Len 返回不同词的数量。
func (t *Trie) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Contains 判断词是否已插入。
func (t *Trie) Contains(word string) bool {
	if word == "" {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, _, full := t.walk(word)
	return full && n.end
}

// Autocomplete 返回排序后的补全建议。
func (t *Trie) Autocomplete(pattern string, max int) []string {
	return t.Suggest(pattern, max).Words
}

// Suggest 执行三级降级查询。
// 空 pattern 或 max <= 0 返回空结果。
func (t *Trie) Suggest(pattern string, max int) Result {
	if pattern == "" || max <= 0 {
		return Result{Tier: TierNone}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	deepest, matched, full := t.walk(pattern)

	var (
		candidates []string
		tier       = TierNone
	)
	if full {
		candidates = collect(deepest, matched, nil)
		if len(candidates) > 0 {
			tier = TierPrefix
		}
	}
	if len(candidates) == 0 {
		candidates = t.index.Match(pattern)
		if len(candidates) > 0 {
			tier = TierSubstring
		}
	}
	if len(candidates) == 0 && matched != "" {
		candidates = collect(deepest, matched, nil)
		if len(candidates) > 0 {
			tier = TierPartial
		}
	}

	return Result{
		Words:         finalize(candidates, max),
		Tier:          tier,
		MatchedPrefix: matched,
	}
}

// walk 沿 pattern 下行，返回最深节点、已匹配前缀以及是否完整匹配。
func (t *Trie) walk(pattern string) (*node, string, bool) {
	cur := t.root
	for i, r := range pattern {
		next, ok := cur.children[r]
		if !ok {
			return cur, pattern[:i], false
		}
		cur = next
	}
	return cur, pattern, true
}

// collect 深度优先收集 n 子树下的全部词。
func collect(n *node, prefix string, out []string) []string {
	if n.end {
		out = append(out, prefix)
	}
	for r, child := range n.children {
		out = collect(child, prefix+string(r), out)
	}
	return out
}

func finalize(candidates []string, max int) []string {
	if len(candidates) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(candidates))
	uniq := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		uniq = append(uniq, c)
	}
	sort.Strings(uniq)
	if len(uniq) > max {
		uniq = uniq[:max]
	}
	return uniq
}
