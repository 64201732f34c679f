package filter

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/rushteam/moviematch/core"
)

// BlacklistFilter 过滤掉黑名单中的电影。
// 黑名单来自内存列表，以及 Store 中 Key 对应的 JSON 数组（可选）。
type BlacklistFilter struct {
	MovieIDs []int64

	Store core.Store
	Key   string
}

func (f *BlacklistFilter) Name() string { return "filter.blacklist" }

func (f *BlacklistFilter) ShouldFilter(context.Context, *core.RecommendContext, *core.Candidate) (bool, error) {
	return false, nil
}

// Bind 合并内存与 Store 中的黑名单。Store 中不存在该 key 时只用内存列表。
func (f *BlacklistFilter) Bind(ctx context.Context, _ *core.RecommendContext) (Filter, error) {
	set := make(blacklistSet, len(f.MovieIDs))
	for _, id := range f.MovieIDs {
		set[id] = struct{}{}
	}
	if f.Store == nil || f.Key == "" {
		return set, nil
	}
	data, err := f.Store.Get(ctx, f.Key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return set, nil
		}
		return nil, err
	}
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

type blacklistSet map[int64]struct{}

func (blacklistSet) Name() string { return "filter.blacklist" }

func (s blacklistSet) ShouldFilter(_ context.Context, _ *core.RecommendContext, c *core.Candidate) (bool, error) {
	_, ok := s[c.MovieID]
	return ok, nil
}
