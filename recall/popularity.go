package recall

import (
	"context"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/pipeline"
	"github.com/rushteam/moviematch/snapshot"
)

// Popularity 是热门兜底召回源：按热度降序、质量降序取前 Limit 部电影。
// 同时实现 Source 与 Node，Node 形态下把热门候选追加在输入之后并去重。
type Popularity struct {
	Holder *snapshot.Holder
	Limit  int
}

func (r *Popularity) Name() string        { return "recall.popularity" }
func (r *Popularity) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *Popularity) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Candidate,
) ([]*core.Candidate, error) {
	hot, err := r.Recall(ctx, rctx)
	if err != nil {
		return nil, err
	}
	out := make([]*core.Candidate, 0, len(items)+len(hot))
	out = append(out, items...)
	out = append(out, hot...)
	return dedup(out), nil
}

// Recall 实现 Source 接口。
func (r *Popularity) Recall(ctx context.Context, _ *core.RecommendContext) ([]*core.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := r.Holder.Acquire()
	if err != nil {
		return nil, err
	}
	return popularFrom(s, r.Limit, nil), nil
}

func popularFrom(s *snapshot.Snapshot, limit int, exclude map[int64]struct{}) []*core.Candidate {
	movies := s.Popular(limit, exclude)
	out := make([]*core.Candidate, 0, len(movies))
	for _, m := range movies {
		out = append(out, popularCandidate(m))
	}
	return out
}
