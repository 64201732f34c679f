package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/metrics"
)

// Pipeline 把推荐逻辑拆成可组合的 Node 链：扩展 -> 过滤 -> 排序。
type Pipeline struct {
	Nodes []Node
}

// Run 依次执行各 Node，任一 Node 出错即终止。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Candidate,
) ([]*core.Candidate, error) {
	cur := items
	for _, node := range p.Nodes {
		start := time.Now()
		next, err := node.Process(ctx, rctx, cur)
		metrics.ObserveNode(string(node.Kind()), node.Name(), time.Since(start), err)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}
