package recall

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/metrics"
	"github.com/rushteam/moviematch/pipeline"
	"github.com/rushteam/moviematch/pkg/logging"
	"github.com/rushteam/moviematch/pkg/utils"
)

const (
	DefaultMinSocial   = 15
	DefaultMaxSeeds    = 20
	DefaultPerSeed     = 2
	DefaultConcurrency = 4
)

// 扩展决策
const (
	OutcomeActivated = "activated"
	OutcomeSkipped   = "skipped"
	OutcomeDegraded  = "degraded"
)

// Expansion 在社交候选不足时用相似检索补充候选。
//
//   - 社交候选按评分降序稳定排序；
//   - 数量 >= MinSocial 时直接返回；
//   - 否则取前 min(len, MaxSeeds) 个作为种子，每个种子之后紧跟至多 PerSeed 部相似电影；
//   - 最后按电影 ID 去重，先出现者保留。
//
// 种子检索可以并发，但合并顺序固定为种子顺序。
type Expansion struct {
	Finder      SimilarityFinder
	MinSocial   int
	MaxSeeds    int
	PerSeed     int
	Concurrency int

	logOnce sync.Once
	logger  zerolog.Logger
}

// NewExpansion 使用默认阈值创建扩展节点。
func NewExpansion(finder SimilarityFinder) *Expansion {
	return &Expansion{
		Finder:      finder,
		MinSocial:   DefaultMinSocial,
		MaxSeeds:    DefaultMaxSeeds,
		PerSeed:     DefaultPerSeed,
		Concurrency: DefaultConcurrency,
	}
}

func (e *Expansion) Name() string        { return "recall.expansion" }
func (e *Expansion) Kind() pipeline.Kind { return pipeline.KindRecall }

func (e *Expansion) log() *zerolog.Logger {
	e.logOnce.Do(func() { e.logger = logging.Component(e.Name()) })
	return &e.logger
}

// Process 实现 pipeline.Node。输入不会被修改。
func (e *Expansion) Process(
	ctx context.Context,
	_ *core.RecommendContext,
	items []*core.Candidate,
) ([]*core.Candidate, error) {
	return e.Expand(ctx, items), nil
}

// Expand 执行扩展。索引不可用时返回排序后的社交列表，不向调用方报错。
// 输入一律视为好友推荐：副本的 Source 置为 social 并打上 recall_source。
func (e *Expansion) Expand(ctx context.Context, social []*core.Candidate) []*core.Candidate {
	sorted := make([]*core.Candidate, 0, len(social))
	for _, c := range social {
		if c == nil {
			continue
		}
		cl := c.Clone()
		cl.Source = core.SourceSocial
		k, v := labelRecallSource(core.SourceSocial)
		cl.Labels[k] = v
		sorted = append(sorted, cl)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rating > sorted[j].Rating
	})

	if len(sorted) >= e.minSocial() || e.Finder == nil {
		e.finish(sorted, OutcomeSkipped)
		return dedup(sorted)
	}

	seeds := sorted
	if n := e.maxSeeds(); len(seeds) > n {
		seeds = seeds[:n]
	}

	similar, err := e.lookup(ctx, seeds)
	if err != nil {
		e.log().Warn().Err(err).Int("social", len(sorted)).Msg("similarity index unavailable, returning social list unexpanded")
		e.finish(sorted, OutcomeDegraded)
		return dedup(sorted)
	}

	out := make([]*core.Candidate, 0, len(sorted)+len(seeds)*e.perSeed())
	for i, seed := range seeds {
		out = append(out, seed)
		for _, sm := range similar[i] {
			c := similarCandidate(sm, seed.MovieID, seed.Title)
			c.PutLabel(utils.LabelSimilarTo, utils.Label{Value: seed.Title, Source: e.Name()})
			out = append(out, c)
		}
	}
	out = append(out, sorted[len(seeds):]...)
	e.finish(out, OutcomeActivated)

	result := dedup(out)
	e.log().Debug().
		Int("social", len(sorted)).
		Int("seeds", len(seeds)).
		Int("candidates", len(result)).
		Msg("expansion activated")
	return result
}

// lookup 并发检索每个种子的相似电影，结果按种子下标存放。
// 单个种子失败只跳过该种子；索引不可用则整体返回错误。
func (e *Expansion) lookup(ctx context.Context, seeds []*core.Candidate) ([][]core.SimilarMovie, error) {
	results := make([][]core.SimilarMovie, len(seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency())
	for i, seed := range seeds {
		g.Go(func() error {
			sims, err := e.Finder.FindSimilar(gctx, seed.MovieID, e.perSeed())
			if err != nil {
				if core.IsUnavailable(err) {
					return err
				}
				e.log().Debug().Err(err).Int64("movie_id", seed.MovieID).Msg("seed lookup failed, skipped")
				return nil
			}
			if len(sims) > e.perSeed() {
				sims = sims[:e.perSeed()]
			}
			results[i] = sims
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Expansion) finish(items []*core.Candidate, outcome string) {
	metrics.RecordExpansion(outcome)
	for _, it := range items {
		it.PutLabel(labelExpansion(outcome))
	}
}

func (e *Expansion) minSocial() int {
	if e.MinSocial <= 0 {
		return DefaultMinSocial
	}
	return e.MinSocial
}

func (e *Expansion) maxSeeds() int {
	if e.MaxSeeds <= 0 {
		return DefaultMaxSeeds
	}
	return e.MaxSeeds
}

func (e *Expansion) perSeed() int {
	if e.PerSeed <= 0 {
		return DefaultPerSeed
	}
	return e.PerSeed
}

func (e *Expansion) concurrency() int {
	if e.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return e.Concurrency
}
