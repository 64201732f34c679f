package recall

import (
	"context"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/snapshot"
)

// Source 表示一个可复用的召回源（社交/热门/...）。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error)
}

// SimilarityFinder 按电影查找相似电影。
// 未知电影返回空结果；索引未就绪返回 core.ErrIndexUnavailable。
type SimilarityFinder interface {
	FindSimilar(ctx context.Context, movieID int64, topK int) ([]core.SimilarMovie, error)
}

// SnapshotFinder 基于当前发布的快照做相似检索。
type SnapshotFinder struct {
	Holder *snapshot.Holder
}

func (f *SnapshotFinder) FindSimilar(ctx context.Context, movieID int64, topK int) ([]core.SimilarMovie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := f.Holder.Acquire()
	if err != nil {
		return nil, err
	}
	return s.FindSimilar(movieID, topK), nil
}

// similarCandidate 把相似结果转为相似扩展候选，并记录种子电影。
func similarCandidate(sm core.SimilarMovie, seedID int64, seedTitle string) *core.Candidate {
	c := core.NewCandidate(sm.Movie, core.SourceSimilarityExpansion)
	c.Similarity = sm.Similarity
	c.SimilarToID = seedID
	c.SimilarToTitle = seedTitle
	c.PutLabel(labelRecallSource(core.SourceSimilarityExpansion))
	return c
}

// popularCandidate 把热门电影转为兜底候选，相似度为占位值。
func popularCandidate(m *core.Movie) *core.Candidate {
	c := core.NewCandidate(m, core.SourcePopularityFallback)
	c.Similarity = core.PopularityPlaceholderSimilarity
	c.PutLabel(labelRecallSource(core.SourcePopularityFallback))
	return c
}

// dedup 按电影 ID 去重，先出现者保留。
func dedup(items []*core.Candidate) []*core.Candidate {
	seen := make(map[int64]struct{}, len(items))
	out := make([]*core.Candidate, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		if _, ok := seen[it.MovieID]; ok {
			continue
		}
		seen[it.MovieID] = struct{}{}
		out = append(out, it)
	}
	return out
}
