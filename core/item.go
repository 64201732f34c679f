package core

import "time"

// Movie 是目录中的一个可推荐条目（电影）。
//
// 可空的数值字段用指针表示，缺失值在向量化阶段按目录中位数填充。
// 一个训练周期内 Movie 只读，重训时整体替换。
type Movie struct {
	ID          int64
	Title       string
	Genres      []string
	Quality     *float64 // vote_average，0-10
	VoteCount   *int64
	Popularity  *float64
	ReleaseDate *time.Time
	Overview    string
	PosterPath  string

	// 聚合评分，由评分存储提供
	MeanUserRating  *float64
	UserRatingCount *int64
}

// RatingAggregate 是单个电影的用户评分聚合。
type RatingAggregate struct {
	MovieID int64
	Mean    float64
	Count   int64
}

// QualityOr 返回 Quality，缺失时返回 def。
func (m *Movie) QualityOr(def float64) float64 {
	if m.Quality == nil {
		return def
	}
	return *m.Quality
}

// PopularityOr 返回 Popularity，缺失时返回 def。
func (m *Movie) PopularityOr(def float64) float64 {
	if m.Popularity == nil {
		return def
	}
	return *m.Popularity
}

// AgeYears 返回相对 ref 的上映年数，ReleaseDate 为空时 ok=false。
func (m *Movie) AgeYears(ref time.Time) (float64, bool) {
	if m.ReleaseDate == nil {
		return 0, false
	}
	return ref.Sub(*m.ReleaseDate).Hours() / 24 / 365.25, true
}

// ApplyAggregate 写入评分聚合。
func (m *Movie) ApplyAggregate(agg RatingAggregate) {
	mean, count := agg.Mean, agg.Count
	m.MeanUserRating = &mean
	m.UserRatingCount = &count
}

func Float64(v float64) *float64 { return &v }

func Int64(v int64) *int64 { return &v }

// SimilarMovie 是相似检索的一条结果。
type SimilarMovie struct {
	Movie      *Movie
	Distance   float64
	Similarity float64
}
