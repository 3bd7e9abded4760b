package core

import "github.com/rushteam/catalogrec/pkg/utils"

// Meta 中约定的 key。
const (
	MetaProductType = "product_type"  // 规范标题的产品类型
	MetaBrand       = "brand"         // 品牌
	MetaCategory    = "category_code" // 类目路径的最后一段
)

// Item 是链路中的一个候选。
// ID 对邻居推荐是 product_id，对混合推荐是规范标题；Score 是相似度或预测评分。
type Item struct {
	ID     string
	Score  float64
	Meta   map[string]any
	Labels map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:     id,
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label，同名 key 按 utils.MergeLabel 累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// SetMeta 写入 Meta，空字符串不写入。
func (it *Item) SetMeta(key, value string) {
	if value == "" {
		return
	}
	if it.Meta == nil {
		it.Meta = make(map[string]any)
	}
	it.Meta[key] = value
}

// GetMetaString 读取字符串类型的 Meta 字段，不存在或类型不符时返回空串。
func (it *Item) GetMetaString(key string) string {
	if it.Meta == nil {
		return ""
	}
	s, _ := it.Meta[key].(string)
	return s
}
