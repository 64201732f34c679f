package core

import "context"

// 以下接口由基础设施层（catalog、feast）实现，核心只消费查询结果。

// CatalogSource 加载整份电影目录。
type CatalogSource interface {
	LoadMovies(ctx context.Context) ([]Movie, error)
}

// AggregateSource 按电影查询评分聚合（均分、评分人数）。
// movieIDs 为空表示返回全部已知聚合。
type AggregateSource interface {
	RatingAggregates(ctx context.Context, movieIDs []int64) (map[int64]RatingAggregate, error)
}

// WatchedSource 返回用户看过的电影 ID，按评分降序、时间倒序。
type WatchedSource interface {
	WatchedMovies(ctx context.Context, userID string) ([]int64, error)
}

// SocialSource 从用户的好友关系生成社交候选。
type SocialSource interface {
	FriendRecommendations(ctx context.Context, userID string, minRating float64) ([]*Candidate, error)
}
