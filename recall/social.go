package recall

import (
	"context"

	"github.com/rushteam/moviematch/core"
)

// DefaultMinFriendRating 好友评分达到该值才算推荐。
const DefaultMinFriendRating = 4.0

// Social 从好友的高分观影生成社交候选。
type Social struct {
	Friends   core.SocialSource
	MinRating float64
}

func (r *Social) Name() string { return "recall.social" }

// Recall 实现 Source 接口，按 rctx.UserID 查询。
func (r *Social) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error) {
	if rctx == nil || rctx.UserID == "" {
		return nil, core.ErrUserNotFound
	}
	minRating := r.MinRating
	if minRating <= 0 {
		minRating = DefaultMinFriendRating
	}
	items, err := r.Friends.FriendRecommendations(ctx, rctx.UserID, minRating)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		it.Source = core.SourceSocial
		it.PutLabel(labelRecallSource(core.SourceSocial))
	}
	return items, nil
}
