package rank

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/metrics"
	"github.com/rushteam/moviematch/model"
	"github.com/rushteam/moviematch/pipeline"
	"github.com/rushteam/moviematch/pkg/logging"
	"github.com/rushteam/moviematch/pkg/utils"
)

// DefaultTopK 默认返回条数。
const DefaultTopK = 10

// WeightedNode 使用 RankModel 给每个候选打分，按分数降序稳定排序并截断到 TopK。
//   - 写入 labels：rank_model
//   - 输入不被修改，打分写在副本上
//
// 任一候选打分失败时整批兜底：丢弃失败候选，按社交评分降序稳定排序，
// 分数取评分，并打上 rank_fallback 标签。
type WeightedNode struct {
	Model model.RankModel
	TopK  int

	logOnce sync.Once
	logger  zerolog.Logger
}

func (n *WeightedNode) Name() string        { return "rank.weighted" }
func (n *WeightedNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *WeightedNode) log() *zerolog.Logger {
	n.logOnce.Do(func() { n.logger = logging.Component(n.Name()) })
	return &n.logger
}

func (n *WeightedNode) Process(
	ctx context.Context,
	_ *core.RecommendContext,
	items []*core.Candidate,
) ([]*core.Candidate, error) {
	return n.Rank(ctx, items, n.TopK)
}

// Rank 以指定 topK 排序；topK <= 0 时使用 DefaultTopK。
// 模型为空时返回 core.ErrIndexUnavailable。
func (n *WeightedNode) Rank(_ context.Context, items []*core.Candidate, topK int) ([]*core.Candidate, error) {
	if n.Model == nil {
		return nil, core.ErrIndexUnavailable
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	out := make([]*core.Candidate, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	failed := 0
	for _, it := range items {
		if it == nil {
			continue
		}
		// 同一电影只保留首次出现的候选
		if _, dup := seen[it.MovieID]; dup {
			continue
		}
		seen[it.MovieID] = struct{}{}
		c := it.Clone()
		score, err := n.Model.Score(c)
		if err != nil {
			failed++
			n.log().Debug().Err(err).Int64("movie_id", c.MovieID).Msg("scoring failed")
			continue
		}
		c.Score = score
		c.PutLabel(utils.LabelRankModel, utils.Label{Value: n.Model.Name(), Source: "rank"})
		out = append(out, c)
	}

	if failed > 0 {
		metrics.RankFallbackTotal.Inc()
		n.log().Warn().Int("failed", failed).Int("candidates", len(items)).Msg("scoring failed, ranking by rating")
		return fallback(out, topK), nil
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return truncate(out, topK), nil
}

// fallback 按社交评分降序排序，分数取评分。
func fallback(items []*core.Candidate, topK int) []*core.Candidate {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Rating > items[j].Rating
	})
	items = truncate(items, topK)
	for _, c := range items {
		c.Score = c.Rating
		delete(c.Labels, utils.LabelRankModel)
		c.PutLabel(utils.LabelRankFallback, utils.Label{
			Value:  strconv.FormatFloat(c.Rating, 'f', -1, 64),
			Source: "rank",
		})
	}
	return items
}

func truncate(items []*core.Candidate, topK int) []*core.Candidate {
	if len(items) > topK {
		return items[:topK]
	}
	return items
}
