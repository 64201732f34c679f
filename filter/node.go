package filter

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/pipeline"
	"github.com/rushteam/moviematch/pkg/logging"
	"github.com/rushteam/moviematch/pkg/utils"
)

// FilterNode 组合多个过滤器，任一过滤器返回 true 即移除该候选。
// 过滤器出错时只跳过该过滤器，不中断流程。
type FilterNode struct {
	Filters []Filter

	logger zerolog.Logger
}

// NewFilterNode 创建过滤节点。
func NewFilterNode(filters ...Filter) *FilterNode {
	return &FilterNode{
		Filters: filters,
		logger:  logging.Component("filter"),
	}
}

func (n *FilterNode) Name() string        { return "filter.node" }
func (n *FilterNode) Kind() pipeline.Kind { return pipeline.KindFilter }

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Candidate,
) ([]*core.Candidate, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	filters := make([]Filter, 0, len(n.Filters))
	for _, f := range n.Filters {
		b, ok := f.(Binder)
		if !ok {
			filters = append(filters, f)
			continue
		}
		bound, err := b.Bind(ctx, rctx)
		if err != nil {
			n.logger.Warn().Err(err).Str("filter", f.Name()).Msg("filter unavailable, skipped")
			continue
		}
		filters = append(filters, bound)
	}

	out := make([]*core.Candidate, 0, len(items))
	for _, c := range items {
		if c == nil {
			continue
		}
		reason := ""
		for _, f := range filters {
			drop, err := f.ShouldFilter(ctx, rctx, c)
			if err != nil {
				n.logger.Debug().Err(err).Str("filter", f.Name()).Int64("movie_id", c.MovieID).Msg("filter error, kept")
				continue
			}
			if drop {
				reason = f.Name()
				break
			}
		}
		if reason != "" {
			c.PutLabel(utils.LabelFiltered, utils.Label{Value: "true", Source: reason})
			continue
		}
		out = append(out, c)
	}

	if dropped := len(items) - len(out); dropped > 0 {
		n.logger.Debug().Int("in", len(items)).Int("dropped", dropped).Msg("candidates filtered")
	}
	return out, nil
}
