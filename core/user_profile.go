package core

// UserFeatures 是从用户观影历史聚合出的画像。
type UserFeatures struct {
	UserID          string
	WatchedCount    int
	AvgQuality      float64
	AvgPopularity   float64
	AvgAgeYears     float64
	PreferredGenres []string // 出现次数最多的前 3 个
}

// AsMap 返回表达式求值使用的视图。
func (u *UserFeatures) AsMap() map[string]any {
	if u == nil {
		return map[string]any{}
	}
	genres := make([]any, 0, len(u.PreferredGenres))
	for _, g := range u.PreferredGenres {
		genres = append(genres, g)
	}
	return map[string]any{
		"user_id":          u.UserID,
		"watched_count":    int64(u.WatchedCount),
		"avg_quality":      u.AvgQuality,
		"avg_popularity":   u.AvgPopularity,
		"avg_age_years":    u.AvgAgeYears,
		"preferred_genres": genres,
	}
}
