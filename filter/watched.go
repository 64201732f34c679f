package filter

import (
	"context"

	"github.com/rushteam/moviematch/core"
)

// WatchedFilter 过滤掉用户已经看过的电影。
type WatchedFilter struct {
	Source core.WatchedSource
}

func (f *WatchedFilter) Name() string { return "filter.watched" }

// ShouldFilter 未绑定请求时不过滤任何候选。
func (f *WatchedFilter) ShouldFilter(context.Context, *core.RecommendContext, *core.Candidate) (bool, error) {
	return false, nil
}

// Bind 读取一次用户观影列表。用户未知时返回空集合。
func (f *WatchedFilter) Bind(ctx context.Context, rctx *core.RecommendContext) (Filter, error) {
	set := watchedSet{}
	if f.Source == nil || rctx == nil || rctx.UserID == "" {
		return set, nil
	}
	ids, err := f.Source.WatchedMovies(ctx, rctx.UserID)
	if err != nil {
		if core.IsNotFound(err) {
			return set, nil
		}
		return nil, err
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

type watchedSet map[int64]struct{}

func (watchedSet) Name() string { return "filter.watched" }

func (s watchedSet) ShouldFilter(_ context.Context, _ *core.RecommendContext, c *core.Candidate) (bool, error) {
	_, ok := s[c.MovieID]
	return ok, nil
}
