// Package normalize 把噪声较大的商品标题映射为规范形式 "{brand} {specs} {type}"，
// 作为混合推荐训练语料的离线预处理阶段。
//
// 所有查询都是纯函数：同一标题总是得到同一规范标题，调用之间不共享可变状态。
package normalize

import (
	"regexp"
	"strings"
)

// Unknown 是无法识别产品类型时的规范标题。
const Unknown = "UNKNOWN"

var sizePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:inch|"|inches|′′|″)`)

// quantityWords 按优先级排列，只取第一个命中。
var quantityWords = []struct {
	word   string
	number string
}{
	{"dual", "2"}, {"triple", "3"}, {"quad", "4"},
	{"double", "2"}, {"single", "1"}, {"two", "2"}, {"three", "3"}, {"four", "4"},
}

// Normalizer 绑定一份 Taxonomy。构造后只读，可并发使用。
type Normalizer struct {
	types  []TypeEntry
	brands []BrandEntry
}

// New 基于给定字典构造 Normalizer，关键词统一转为小写。
func New(t Taxonomy) *Normalizer {
	n := &Normalizer{
		types:  make([]TypeEntry, 0, len(t.Types)),
		brands: make([]BrandEntry, 0, len(t.Brands)),
	}
	for _, e := range t.Types {
		kws := make([]string, 0, len(e.Keywords))
		for _, kw := range e.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		n.types = append(n.types, TypeEntry{Name: e.Name, Keywords: kws})
	}
	for _, b := range t.Brands {
		n.brands = append(n.brands, BrandEntry{Keyword: strings.ToLower(b.Keyword), Brand: b.Brand})
	}
	return n
}

var defaultNormalizer = New(DefaultTaxonomy())

// Default 返回使用内置字典的 Normalizer。
func Default() *Normalizer { return defaultNormalizer }

// FindProductType 返回标题中最长命中关键词所属的类型。
// 更长、更具体的关键词（"monitor stand"）优先于更短的（"monitor"）；
// 等长时取类型名字典序最大者，与字典中的定义顺序无关。
func (n *Normalizer) FindProductType(title string) (string, bool) {
	lower := strings.ToLower(title)
	best, bestLen := "", 0
	for _, e := range n.types {
		for _, kw := range e.Keywords {
			if len(kw) < bestLen || len(kw) == bestLen && e.Name <= best {
				continue
			}
			if strings.Contains(lower, kw) {
				best, bestLen = e.Name, len(kw)
			}
		}
	}
	return best, bestLen > 0
}

// FindBrand 返回第一个命中的品牌。
func (n *Normalizer) FindBrand(title string) (string, bool) {
	lower := strings.ToLower(title)
	for _, b := range n.brands {
		if strings.Contains(lower, b.Keyword) {
			return b.Brand, true
		}
	}
	return "", false
}

// ExtractKeySpecs 提取尺寸（"27inch"）与数量（"2-way"，最多一个）规格。
// 数量词按完整单词匹配，避免 "network" 命中 "two"。
func (n *Normalizer) ExtractKeySpecs(title, _ string) []string {
	lower := strings.ToLower(title)
	var specs []string

	if m := sizePattern.FindStringSubmatch(lower); m != nil {
		specs = append(specs, m[1]+"inch")
	}

	tokens := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(lower, isTokenSep) {
		tokens[tok] = struct{}{}
	}
	for _, q := range quantityWords {
		if _, ok := tokens[q.word]; ok {
			specs = append(specs, q.number+"-way")
			break
		}
	}
	return specs
}

func isTokenSep(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
}

// SimplifyTitle 返回 "{brand} {specs...} {type}"；无法识别类型时返回 Unknown。
func (n *Normalizer) SimplifyTitle(title string) string {
	productType, ok := n.FindProductType(title)
	if !ok {
		return Unknown
	}
	parts := make([]string, 0, 4)
	if brand, ok := n.FindBrand(title); ok {
		parts = append(parts, brand)
	}
	parts = append(parts, n.ExtractKeySpecs(title, productType)...)
	parts = append(parts, productType)
	return strings.Join(parts, " ")
}

// ProductType 返回规范标题中的类型词：最后一个空白分隔的 token。
// 多词类型（"monitor stand"）因此按 "stand" 归类，与按类型去重的约定一致。
func ProductType(canonicalTitle string) string {
	fields := strings.Fields(canonicalTitle)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// FindProductType 使用内置字典。
func FindProductType(title string) (string, bool) { return defaultNormalizer.FindProductType(title) }

// FindBrand 使用内置字典。
func FindBrand(title string) (string, bool) { return defaultNormalizer.FindBrand(title) }

// ExtractKeySpecs 使用内置字典。
func ExtractKeySpecs(title, productType string) []string {
	return defaultNormalizer.ExtractKeySpecs(title, productType)
}

// SimplifyTitle 使用内置字典。
func SimplifyTitle(title string) string { return defaultNormalizer.SimplifyTitle(title) }
