package feature

import (
	"time"

	"github.com/rushteam/moviematch/core"
)

// 特征维度顺序固定，目录与查询向量共用。
const (
	DimQuality = iota
	DimVoteCount
	DimPopularity
	DimAgeYears
	DimGenreDiversity
	DimMeanUserRating
	DimUserRatingCount
	Dims
)

// FeatureColumns 与维度常量一一对应。
var FeatureColumns = [Dims]string{
	"vote_average",
	"vote_count",
	"popularity",
	"years_since_release",
	"genre_diversity",
	"avg_user_rating",
	"user_rating_count",
}

// Vector 是定长特征向量。
type Vector [Dims]float64

// Slice 返回向量的切片视图副本。
func (v Vector) Slice() []float64 {
	out := make([]float64, Dims)
	copy(out, v[:])
	return out
}

// Medians 是可空维度的目录中位数，用于缺失值填充。
type Medians Vector

// Vectorizer 把 Movie 转为原始（未缩放）特征向量。
// RefTime 是快照构建时刻，上映年数基于它计算，保证同一快照内结果确定。
type Vectorizer struct {
	Medians Medians
	RefTime time.Time
}

// NewVectorizer 在当前目录上计算中位数。
func NewVectorizer(movies []core.Movie, ref time.Time) *Vectorizer {
	cols := make([][]float64, Dims)
	for i := range movies {
		m := &movies[i]
		if m.Quality != nil {
			cols[DimQuality] = append(cols[DimQuality], *m.Quality)
		}
		if m.VoteCount != nil {
			cols[DimVoteCount] = append(cols[DimVoteCount], float64(*m.VoteCount))
		}
		if m.Popularity != nil {
			cols[DimPopularity] = append(cols[DimPopularity], *m.Popularity)
		}
		if age, ok := m.AgeYears(ref); ok {
			cols[DimAgeYears] = append(cols[DimAgeYears], age)
		}
		if m.MeanUserRating != nil {
			cols[DimMeanUserRating] = append(cols[DimMeanUserRating], *m.MeanUserRating)
		}
		if m.UserRatingCount != nil {
			cols[DimUserRatingCount] = append(cols[DimUserRatingCount], float64(*m.UserRatingCount))
		}
	}

	v := &Vectorizer{RefTime: ref}
	for d := 0; d < Dims; d++ {
		if d == DimGenreDiversity {
			v.Medians[d] = 1
			continue
		}
		v.Medians[d] = ComputeStatistics(cols[d]).Median
	}
	return v
}

// Vectorize 生成原始特征向量，缺失字段用中位数填充。
func (v *Vectorizer) Vectorize(m *core.Movie) Vector {
	out := Vector(v.Medians)
	if m.Quality != nil {
		out[DimQuality] = *m.Quality
	}
	if m.VoteCount != nil {
		out[DimVoteCount] = float64(*m.VoteCount)
	}
	if m.Popularity != nil {
		out[DimPopularity] = *m.Popularity
	}
	if age, ok := m.AgeYears(v.RefTime); ok {
		out[DimAgeYears] = age
	}
	out[DimGenreDiversity] = float64(GenreDiversity(m.Genres))
	if m.MeanUserRating != nil {
		out[DimMeanUserRating] = *m.MeanUserRating
	}
	if m.UserRatingCount != nil {
		out[DimUserRatingCount] = float64(*m.UserRatingCount)
	}
	return out
}

// VectorizeAll 依次向量化整份目录。
func (v *Vectorizer) VectorizeAll(movies []core.Movie) []Vector {
	out := make([]Vector, len(movies))
	for i := range movies {
		out[i] = v.Vectorize(&movies[i])
	}
	return out
}
