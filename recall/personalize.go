package recall

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/metrics"
	"github.com/rushteam/moviematch/pkg/logging"
	"github.com/rushteam/moviematch/snapshot"
)

// DefaultPersonalSeeds 个性化推荐最多使用的观影种子数。
const DefaultPersonalSeeds = 5

// 个性化路径
const (
	PathColdStart = "cold_start"
	PathSimilar   = "similar"
	PathDegraded  = "degraded"
)

// Personalized 是整用户推荐入口：无观影记录时走热门，否则以最近高分观影为种子做相似检索。
// 该路径不使用加权打分公式。
type Personalized struct {
	Holder   *snapshot.Holder
	Watched  core.WatchedSource
	MaxSeeds int

	logger zerolog.Logger
}

// NewPersonalized 创建个性化推荐器。
func NewPersonalized(holder *snapshot.Holder, watched core.WatchedSource) *Personalized {
	return &Personalized{
		Holder:   holder,
		Watched:  watched,
		MaxSeeds: DefaultPersonalSeeds,
		logger:   logging.Component("recall.personalized"),
	}
}

// Recommend 返回至多 limit 个候选。limit <= 0 返回空列表。
// 观影列表读取失败时降级为热门列表；快照未就绪时返回 core.ErrIndexUnavailable。
func (p *Personalized) Recommend(ctx context.Context, userID string, limit int) ([]*core.Candidate, error) {
	s, err := p.Holder.Acquire()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*core.Candidate{}, nil
	}

	var watched []int64
	if p.Watched != nil {
		watched, err = p.Watched.WatchedMovies(ctx, userID)
		if err != nil {
			if !core.IsNotFound(err) {
				metrics.RecordUpstreamError("watched_movies")
				metrics.PersonalizeTotal.WithLabelValues(PathDegraded).Inc()
				p.logger.Warn().Err(err).Str("user_id", userID).Msg("watched list unavailable, serving popular movies")
				return popularFrom(s, limit, nil), nil
			}
			watched = nil
		}
	}

	if len(watched) == 0 {
		metrics.PersonalizeTotal.WithLabelValues(PathColdStart).Inc()
		p.logger.Debug().Str("user_id", userID).Int("limit", limit).Msg("cold start")
		return popularFrom(s, limit, nil), nil
	}
	metrics.PersonalizeTotal.WithLabelValues(PathSimilar).Inc()

	exclude := make(map[int64]struct{}, len(watched)+limit)
	for _, id := range watched {
		exclude[id] = struct{}{}
	}

	seeds := watched
	if n := p.maxSeeds(); len(seeds) > n {
		seeds = seeds[:n]
	}
	topK := max(1, limit/2)

	out := make([]*core.Candidate, 0, limit)
	for _, id := range seeds {
		if len(out) >= limit {
			break
		}
		seed, ok := s.Movie(id)
		if !ok {
			continue
		}
		for _, sm := range s.FindSimilar(id, topK) {
			if _, skip := exclude[sm.Movie.ID]; skip {
				continue
			}
			exclude[sm.Movie.ID] = struct{}{}
			out = append(out, similarCandidate(sm, seed.ID, seed.Title))
			if len(out) >= limit {
				break
			}
		}
	}

	if len(out) < limit {
		out = append(out, popularFrom(s, limit-len(out), exclude)...)
	}
	p.logger.Debug().
		Str("user_id", userID).
		Int("watched", len(watched)).
		Int("results", len(out)).
		Msg("personalized recommendations")
	return out, nil
}

func (p *Personalized) maxSeeds() int {
	if p.MaxSeeds <= 0 {
		return DefaultPersonalSeeds
	}
	return p.MaxSeeds
}
