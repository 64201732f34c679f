package snapshot

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/pkg/logging"
)

// Loader 从协作方加载目录与评分聚合并构建快照。
type Loader struct {
	Catalog    core.CatalogSource
	Aggregates core.AggregateSource // 可为空
	Options    Options
	Now        func() time.Time

	logger zerolog.Logger
}

// NewLoader 创建 Loader。
func NewLoader(catalog core.CatalogSource, aggregates core.AggregateSource, opts Options) *Loader {
	return &Loader{
		Catalog:    catalog,
		Aggregates: aggregates,
		Options:    opts,
		Now:        time.Now,
		logger:     logging.Component("snapshot"),
	}
}

// Load 读取目录并构建快照。
// 目录读取失败直接返回；聚合读取失败只降级为无聚合数据（缺失值按中位数填充）。
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	movies, err := l.Catalog.LoadMovies(ctx)
	if err != nil {
		return nil, core.WrapUpstream(core.ModuleCatalog, "snapshot: load movies", err)
	}

	if l.Aggregates != nil && len(movies) > 0 {
		ids := make([]int64, len(movies))
		for i := range movies {
			ids[i] = movies[i].ID
		}
		aggs, err := l.Aggregates.RatingAggregates(ctx, ids)
		if err != nil {
			l.logger.Warn().Err(err).Msg("rating aggregates unavailable, training without them")
		}
		applied := 0
		for i := range movies {
			if agg, ok := aggs[movies[i].ID]; ok {
				movies[i].ApplyAggregate(agg)
				applied++
			}
		}
		l.logger.Debug().Int("movies", len(movies)).Int("aggregates", applied).Msg("catalog loaded")
	}

	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	return Build(movies, now().UTC(), l.Options)
}
