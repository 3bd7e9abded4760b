package utils

import "strings"

// 链路中使用的 label key。
const (
	KeyRecallSource   = "recall_source"   // 召回源：unrated / similar / recall.user_history ...
	KeyRecallAnchor   = "recall_anchor"   // i2i 锚点产品
	KeyRecallPriority = "recall_priority" // Fanout 中召回源的下标
	KeyRankModel      = "rank_model"      // 打分模型名
)

// Label 的 Source 取值，对应写入它的阶段。
const (
	SourceRecall = "recall"
	SourceRank   = "rank"
	SourceRerank = "rerank"
)

// Label 记录物品是怎么被召回、打分的，CEL 过滤通过 label.<key> 读取 Value。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

// RecallLabel 是 Source 为 recall 的 Label。
func RecallLabel(value string) Label { return Label{Value: value, Source: SourceRecall} }

// RankLabel 是 Source 为 rank 的 Label。
func RankLabel(value string) Label { return Label{Value: value, Source: SourceRank} }

// Values 按 '|' 拆开合并过的 Value。
func (l Label) Values() []string {
	if l.Value == "" {
		return nil
	}
	return strings.Split(l.Value, "|")
}

// MergeLabel 合并同名 Label：Value 以 '|' 累积、Source 以 ',' 累积，已存在的值不重复追加。
// 例如两个锚点召回到同一产品时 recall_anchor 为 "p1|p2"。
func MergeLabel(existing, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}
	merged := existing
	if !contains(existing.Value, incoming.Value, "|") {
		merged.Value = existing.Value + "|" + incoming.Value
	}
	if incoming.Source != "" && !contains(existing.Source, incoming.Source, ",") {
		if merged.Source == "" {
			merged.Source = incoming.Source
		} else {
			merged.Source = existing.Source + "," + incoming.Source
		}
	}
	return merged
}

func contains(list, v, sep string) bool {
	for _, s := range strings.Split(list, sep) {
		if s == v {
			return true
		}
	}
	return false
}
