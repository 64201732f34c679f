package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/metrics"
	"github.com/rushteam/moviematch/pkg/logging"
)

// Backend 是一个完整的数据源（Postgres 或 SQLite）。
type Backend interface {
	core.CatalogSource
	core.AggregateSource
	core.WatchedSource
	core.SocialSource
}

// GuardConfig 配置熔断器。
type GuardConfig struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

// 受保护的操作，每个操作一个熔断器。
const (
	OpLoadMovies            = "load_movies"
	OpRatingAggregates      = "rating_aggregates"
	OpWatchedMovies         = "watched_movies"
	OpFriendRecommendations = "friend_recommendations"
)

// Guard 把数据源的失败统一转换为 UPSTREAM 错误，并在连续失败后熔断，熔断期间直接失败。
// 用户不存在等 NOT_FOUND 错误原样返回，不计入失败。
type Guard struct {
	catalog    core.CatalogSource
	aggregates core.AggregateSource
	watched    core.WatchedSource
	social     core.SocialSource

	breakers map[string]*gobreaker.CircuitBreaker[any]
	logger   zerolog.Logger
}

// NewGuard 包装数据源。
func NewGuard(backend Backend, cfg GuardConfig) *Guard {
	if cfg.Name == "" {
		cfg.Name = "catalog"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}

	g := &Guard{
		catalog:    backend,
		aggregates: backend,
		watched:    backend,
		social:     backend,
		logger:     logging.Component("catalog.guard"),
	}
	g.breakers = make(map[string]*gobreaker.CircuitBreaker[any], 4)
	for _, op := range []string{OpLoadMovies, OpRatingAggregates, OpWatchedMovies, OpFriendRecommendations} {
		g.breakers[op] = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        cfg.Name + "." + op,
			MaxRequests: cfg.HalfOpenRequests,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || core.IsNotFound(err) || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				g.logger.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("circuit breaker state changed")
			},
		})
	}
	return g
}

// WithAggregates 用另一个数据源（例如 Feast 在线存储）提供评分聚合，同样受熔断保护。
func (g *Guard) WithAggregates(src core.AggregateSource) *Guard {
	g.aggregates = src
	return g
}

// State 返回某个操作的熔断器状态。
func (g *Guard) State(op string) gobreaker.State {
	if cb, ok := g.breakers[op]; ok {
		return cb.State()
	}
	return gobreaker.StateClosed
}

func guarded[T any](g *Guard, op string, fn func() (T, error)) (T, error) {
	var zero T
	out, err := g.breakers[op].Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if core.IsNotFound(err) {
			return zero, err
		}
		metrics.RecordUpstreamError(op)
		return zero, core.WrapUpstream(core.ModuleCatalog, "catalog: "+op, err)
	}
	return out.(T), nil
}

func (g *Guard) LoadMovies(ctx context.Context) ([]core.Movie, error) {
	return guarded(g, OpLoadMovies, func() ([]core.Movie, error) {
		return g.catalog.LoadMovies(ctx)
	})
}

func (g *Guard) RatingAggregates(ctx context.Context, movieIDs []int64) (map[int64]core.RatingAggregate, error) {
	return guarded(g, OpRatingAggregates, func() (map[int64]core.RatingAggregate, error) {
		return g.aggregates.RatingAggregates(ctx, movieIDs)
	})
}

func (g *Guard) WatchedMovies(ctx context.Context, userID string) ([]int64, error) {
	return guarded(g, OpWatchedMovies, func() ([]int64, error) {
		return g.watched.WatchedMovies(ctx, userID)
	})
}

func (g *Guard) FriendRecommendations(ctx context.Context, userID string, minRating float64) ([]*core.Candidate, error) {
	return guarded(g, OpFriendRecommendations, func() ([]*core.Candidate, error) {
		return g.social.FriendRecommendations(ctx, userID, minRating)
	})
}
