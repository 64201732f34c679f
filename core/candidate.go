package core

import "github.com/rushteam/moviematch/pkg/utils"

// Source 标记候选的来源。
type Source string

const (
	SourceSocial              Source = "social"
	SourceSimilarityExpansion Source = "similarity_expansion"
	SourcePopularityFallback  Source = "popularity_fallback"
)

// PopularityPlaceholderSimilarity 是热门兜底候选的相似度占位值，保证下游结构统一。
const PopularityPlaceholderSimilarity = 0.5

// Candidate 是推荐链路中的统一承载结构：一部电影 + 来源 + 来源相关的溯源字段。
// Labels 用于解释与策略驱动；Score 只由排序阶段写入（写在副本上）。
type Candidate struct {
	MovieID int64
	Title   string
	Source  Source

	// social
	Rating       float64
	Endorsers    int
	Recommenders []string

	// similarity_expansion
	Similarity     float64
	SimilarToID    int64
	SimilarToTitle string

	// 所有来源共享的目录信号，缺失为 0
	Quality         float64
	Popularity      float64
	MeanUserRating  float64
	UserRatingCount int64
	Genres          []string

	Score  float64
	Labels map[string]utils.Label
}

// NewCandidate 从目录条目构造一个候选。
func NewCandidate(m *Movie, src Source) *Candidate {
	c := &Candidate{
		MovieID:    m.ID,
		Title:      m.Title,
		Source:     src,
		Quality:    m.QualityOr(0),
		Popularity: m.PopularityOr(0),
		Genres:     m.Genres,
		Labels:     make(map[string]utils.Label),
	}
	if m.MeanUserRating != nil {
		c.MeanUserRating = *m.MeanUserRating
	}
	if m.UserRatingCount != nil {
		c.UserRatingCount = *m.UserRatingCount
	}
	return c
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (c *Candidate) PutLabel(key string, lbl utils.Label) {
	if c.Labels == nil {
		c.Labels = make(map[string]utils.Label)
	}
	if old, ok := c.Labels[key]; ok {
		c.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	c.Labels[key] = lbl
}

// Clone 返回浅拷贝，Labels 与 Recommenders 独立。
func (c *Candidate) Clone() *Candidate {
	out := *c
	out.Labels = make(map[string]utils.Label, len(c.Labels))
	for k, v := range c.Labels {
		out.Labels[k] = v
	}
	if c.Recommenders != nil {
		out.Recommenders = append([]string(nil), c.Recommenders...)
	}
	return &out
}

// ScoredRecommendation 是排序后的只读结果。
type ScoredRecommendation struct {
	Candidate Candidate
	Score     float64
}

// ToScored 把排序节点输出的候选转为结果值，之后与链路中的指针解耦。
func ToScored(items []*Candidate) []ScoredRecommendation {
	out := make([]ScoredRecommendation, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		cp := it.Clone()
		out = append(out, ScoredRecommendation{Candidate: *cp, Score: it.Score})
	}
	return out
}
