package utils

// Label 是推荐链路中的一等公民：可解释、可追踪、可透传。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // recall / filter / rank / ...
}

// 链路中使用的 Label key。
const (
	LabelRecallSource = "recall_source" // 候选来源
	LabelSimilarTo    = "similar_to"    // 相似扩展的种子电影
	LabelExpansion    = "expansion"     // 扩展决策：activated / skipped / degraded
	LabelRankModel    = "rank_model"    // 打分模型
	LabelRankFallback = "rank_fallback" // 全局兜底排序
	LabelFiltered     = "filtered"      // 被过滤的原因
)

// MergeLabel 用于合并同名 Label，遵循“保留历史、可追踪”的默认策略。
// - Value: 以 '|' 累积
// - Source: 以 ',' 累积
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "":
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}
