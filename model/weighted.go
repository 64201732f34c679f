package model

import (
	"fmt"
	"math"

	"github.com/rushteam/moviematch/core"
)

// 归一化常量
const (
	QualityScale       = 10.0  // 质量分满分
	PopularityCap      = 200.0 // 热度达到该值视为满分
	UserRatingScale    = 5.0   // 用户评分满分
	UserRatingCountCap = 100.0 // 用户评分人数达到该值视为满分
)

// Weights 是加权打分公式的系数。
type Weights struct {
	SocialRating    float64 `koanf:"social_rating" yaml:"social_rating" json:"social_rating"`
	SocialEndorsers float64 `koanf:"social_endorsers" yaml:"social_endorsers" json:"social_endorsers"`
	Similarity      float64 `koanf:"similarity" yaml:"similarity" json:"similarity"`
	Quality         float64 `koanf:"quality" yaml:"quality" json:"quality"`
	Popularity      float64 `koanf:"popularity" yaml:"popularity" json:"popularity"`
	UserRating      float64 `koanf:"user_rating" yaml:"user_rating" json:"user_rating"`
	UserRatingCount float64 `koanf:"user_rating_count" yaml:"user_rating_count" json:"user_rating_count"`
}

// DefaultWeights 返回默认系数。
func DefaultWeights() Weights {
	return Weights{
		SocialRating:    0.4,
		SocialEndorsers: 0.1,
		Similarity:      0.3,
		Quality:         0.2,
		Popularity:      0.1,
		UserRating:      0.1,
		UserRatingCount: 0.05,
	}
}

// WeightedModel 按来源组合社交信号、相似度与目录信号：
//
//	social:               w.SocialRating*rating + w.SocialEndorsers*endorsers
//	similarity_expansion: w.Similarity*similarity
//	所有来源:             w.Quality*quality/10 + w.Popularity*min(popularity/200, 1)
//	                      + w.UserRating*meanUserRating/5 + w.UserRatingCount*min(count/100, 1)
//
// 缺失字段为 0，不贡献分数。
type WeightedModel struct {
	Weights Weights
}

// NewWeightedModel 使用给定系数创建模型。
func NewWeightedModel(w Weights) *WeightedModel {
	return &WeightedModel{Weights: w}
}

func (m *WeightedModel) Name() string { return "weighted" }

func (m *WeightedModel) Score(c *core.Candidate) (float64, error) {
	if c == nil {
		return 0, fmt.Errorf("model: nil candidate")
	}
	inputs := [...]float64{c.Rating, c.Similarity, c.Quality, c.Popularity, c.MeanUserRating}
	for _, v := range inputs {
		if !finite(v) {
			return 0, fmt.Errorf("model: movie %d has non-finite input %v", c.MovieID, v)
		}
	}

	w := m.Weights
	var score float64
	switch c.Source {
	case core.SourceSocial:
		score += w.SocialRating*c.Rating + w.SocialEndorsers*float64(c.Endorsers)
	case core.SourceSimilarityExpansion:
		score += w.Similarity * c.Similarity
	}
	score += w.Quality * c.Quality / QualityScale
	score += w.Popularity * math.Min(c.Popularity/PopularityCap, 1)
	score += w.UserRating * c.MeanUserRating / UserRatingScale
	score += w.UserRatingCount * math.Min(float64(c.UserRatingCount)/UserRatingCountCap, 1)

	if !finite(score) {
		return 0, fmt.Errorf("model: movie %d scored %v", c.MovieID, score)
	}
	return score, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
